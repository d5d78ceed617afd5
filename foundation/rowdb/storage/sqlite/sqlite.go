// Package sqlite implements the ability to read and write blocks to a
// sqlite database file, one row per block.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/todochain/foundation/rowdb"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	number INTEGER PRIMARY KEY,
	hash   TEXT NOT NULL,
	data   TEXT NOT NULL
)`

// SQLite represents the serialization implementation for reading and storing
// blocks in a sqlite database. This implements the rowdb.Serializer
// interface.
type SQLite struct {
	db *sql.DB
}

// New opens (or creates) the sqlite database at the specified path. Use
// ":memory:" for a database that lives as long as the value.
func New(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and serializes
	// writers, the ledger only writes one block at a time anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Write takes the specified block and stores it in the blocks table.
func (s *SQLite) Write(block rowdb.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return err
	}

	const q = `INSERT INTO blocks (number, hash, data) VALUES (?, ?, ?)`
	if _, err := s.db.Exec(q, block.Header.Number, block.Hash(), string(data)); err != nil {
		return fmt.Errorf("insert block %d: %w", block.Header.Number, err)
	}

	return nil
}

// GetBlock locates and returns the contents of the specified block by number.
func (s *SQLite) GetBlock(num uint64) (rowdb.Block, error) {
	const q = `SELECT data FROM blocks WHERE number = ?`

	var data string
	if err := s.db.QueryRow(q, num).Scan(&data); err != nil {
		return rowdb.Block{}, err
	}

	var block rowdb.Block
	if err := json.Unmarshal([]byte(data), &block); err != nil {
		return rowdb.Block{}, fmt.Errorf("decoding block %d: %w", num, err)
	}

	return block, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 1.
func (s *SQLite) ForEach() rowdb.Iterator {
	return &sqliteIterator{storage: s}
}

// Reset removes every block from the database.
func (s *SQLite) Reset() error {
	_, err := s.db.Exec(`DELETE FROM blocks`)
	return err
}

// =============================================================================

// sqliteIterator walks the blocks table in block number order. This
// implements the rowdb.Iterator interface.
type sqliteIterator struct {
	storage *SQLite // Access to the sqlite storage API.
	current uint64  // Current block number being iterated over.
	eoc     bool    // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from the database.
func (si *sqliteIterator) Next() (rowdb.Block, error) {
	if si.eoc {
		return rowdb.Block{}, errors.New("end of chain")
	}

	si.current++
	block, err := si.storage.GetBlock(si.current)
	if errors.Is(err, sql.ErrNoRows) {
		si.eoc = true
		return rowdb.Block{}, nil
	}

	return block, err
}

// Done returns the end of chain value.
func (si *sqliteIterator) Done() bool {
	return si.eoc
}
