// Package rowdb handles the ledger side of the todo database: a chain of
// blocks, each holding one signed row transaction, and the in memory tables
// those transactions build.
package rowdb

import (
	"fmt"
	"strconv"
	"sync"
)

// EventHandler defines a function that is called when events
// occur in the processing of transactions.
type EventHandler func(v string, args ...any)

// Serializer interface represents the behavior required to be implemented by any
// package providing support for storing and reading the ledger.
type Serializer interface {
	Write(block Block) error
	GetBlock(num uint64) (Block, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (Block, error)
	Done() bool
}

// =============================================================================

// Field is a single column of a row as it's returned to clients.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Row is a row held in a table.
type Row struct {
	ID     string
	Owner  AccountID
	Fields []Field
}

// Receipt is returned once a transaction has been sealed into a block.
type Receipt struct {
	TxHash string `json:"tx_hash"`
	RowID  string `json:"row_id"`
	Block  uint64 `json:"block"`
	GasFee uint64 `json:"gas_fee"`
}

// table keeps the rows in the order they were inserted.
type table struct {
	ids    []string
	rows   map[string]Row
	nextID uint64
}

// effect is the validated outcome of a transaction before it's committed.
type effect struct {
	signer AccountID
	nonce  uint64
	fee    uint64
	table  string
	op     Op
	row    Row
}

// =============================================================================

// Database manages the tables, nonces and relay balance built from the chain.
type Database struct {
	mu sync.RWMutex

	genesis      Genesis
	latestBlock  Block
	relayBalance uint64
	nonces       map[AccountID]uint64
	tables       map[string]*table

	serializer Serializer
	evHandler  EventHandler
}

// New constructs a new database from the genesis information and replays
// every block the serializer already holds.
func New(genesis Genesis, serializer Serializer, evHandler EventHandler) (*Database, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	db := Database{
		genesis:    genesis,
		serializer: serializer,
		evHandler:  ev,
	}
	db.resetState()

	iter := serializer.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		if err := block.ValidateBlock(db.latestBlock, ev); err != nil {
			return nil, err
		}

		eff, err := db.check(block.Tx)
		if err != nil {
			return nil, fmt.Errorf("replaying block %d: %w", block.Header.Number, err)
		}

		if eff.row.ID != block.Header.RowID || eff.signer != block.Header.Signer {
			return nil, fmt.Errorf("%w: block %d header does not match its transaction", ErrChainCorrupt, block.Header.Number)
		}

		db.commit(eff)
		db.latestBlock = block
	}

	ev("rowdb: New: replayed: blocks[%d] relay[%d]", db.latestBlock.Header.Number, db.relayBalance)

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.serializer.Close()
}

// Submit validates the signed transaction, seals it into a new block and
// applies it to the tables. Nothing changes if any step fails.
func (db *Database) Submit(tx SignedTx) (Receipt, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	eff, err := db.check(tx)
	if err != nil {
		db.evHandler("rowdb: Submit: REJECTED: tx[%s]: %s", tx, err)
		return Receipt{}, err
	}

	block := newBlock(db.latestBlock, tx, eff.signer, eff.row.ID, eff.fee)
	if err := db.serializer.Write(block); err != nil {
		return Receipt{}, fmt.Errorf("%w: writing block %d: %w", ErrStorage, block.Header.Number, err)
	}

	db.commit(eff)
	db.latestBlock = block

	db.evHandler("rowdb: Submit: sealed: blk[%d] op[%s] table[%s] row[%s] fee[%d]", block.Header.Number, eff.op, eff.table, eff.row.ID, eff.fee)

	receipt := Receipt{
		TxHash: block.Header.TxHash,
		RowID:  eff.row.ID,
		Block:  block.Header.Number,
		GasFee: eff.fee,
	}

	return receipt, nil
}

// =============================================================================

// Genesis returns a copy of the genesis information.
func (db *Database) Genesis() Genesis {
	return db.genesis
}

// LatestBlock returns the latest block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// RelayBalance returns what's left of the subsidy paying for writes.
func (db *Database) RelayBalance() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.relayBalance
}

// Nonce returns the last nonce used by the account.
func (db *Database) Nonce(account AccountID) uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.nonces[account]
}

// TableIDs returns the identifiers of every row in the table.
func (db *Database) TableIDs(name string) []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tbl, exists := db.tables[name]
	if !exists {
		return []string{}
	}

	ids := make([]string, len(tbl.ids))
	copy(ids, tbl.ids)
	return ids
}

// Row returns a copy of the specified row.
func (db *Database) Row(name string, id string) (Row, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tbl, exists := db.tables[name]
	if !exists {
		return Row{}, fmt.Errorf("%w: table[%s] id[%s]", ErrNotFound, name, id)
	}

	row, exists := tbl.rows[id]
	if !exists {
		return Row{}, fmt.Errorf("%w: table[%s] id[%s]", ErrNotFound, name, id)
	}

	fields := make([]Field, len(row.Fields))
	copy(fields, row.Fields)
	row.Fields = fields

	return row, nil
}

// =============================================================================

// resetState puts the in memory state back to genesis.
func (db *Database) resetState() {
	db.latestBlock = Block{}
	db.relayBalance = db.genesis.RelayBalance
	db.nonces = make(map[AccountID]uint64)
	db.tables = make(map[string]*table)
}

// check performs the business rules for the transaction without changing
// any state. The caller must hold the write lock.
func (db *Database) check(tx SignedTx) (effect, error) {
	signer, err := tx.Validate()
	if err != nil {
		return effect{}, fmt.Errorf("invalid signature, %w", err)
	}

	if tx.ChainID != db.genesis.ChainID {
		return effect{}, fmt.Errorf("%w: got %d, exp %d", ErrWrongChain, tx.ChainID, db.genesis.ChainID)
	}

	if last := db.nonces[signer]; tx.Nonce <= last {
		return effect{}, fmt.Errorf("%w: current %d, provided %d", ErrNonce, last, tx.Nonce)
	}

	fee := db.genesis.GasFee()
	if fee > db.relayBalance {
		return effect{}, fmt.Errorf("%w: bal %d, needed %d", ErrRelayExhausted, db.relayBalance, fee)
	}

	eff := effect{
		signer: signer,
		nonce:  tx.Nonce,
		fee:    fee,
		table:  tx.Table,
		op:     tx.Op,
	}

	switch tx.Op {
	case OpInsert:
		if len(tx.Columns) == 0 || len(tx.Columns) != len(tx.Values) {
			return effect{}, fmt.Errorf("%w: columns[%d] values[%d]", ErrRowShape, len(tx.Columns), len(tx.Values))
		}

		owner := signer
		if tx.Owner != "" {
			if owner, err = ToAccountID(string(tx.Owner)); err != nil {
				return effect{}, err
			}
		}

		var nextID uint64 = 1
		if tbl, exists := db.tables[tx.Table]; exists {
			nextID = tbl.nextID
		}

		fields := make([]Field, len(tx.Columns))
		for i, col := range tx.Columns {
			fields[i] = Field{Name: col, Value: tx.Values[i]}
		}

		eff.row = Row{
			ID:     strconv.FormatUint(nextID, 10),
			Owner:  owner,
			Fields: fields,
		}

	case OpDelete:
		tbl, exists := db.tables[tx.Table]
		if !exists {
			return effect{}, fmt.Errorf("%w: table[%s] id[%s]", ErrNotFound, tx.Table, tx.RowID)
		}

		row, exists := tbl.rows[tx.RowID]
		if !exists {
			return effect{}, fmt.Errorf("%w: table[%s] id[%s]", ErrNotFound, tx.Table, tx.RowID)
		}

		if row.Owner != signer {
			return effect{}, fmt.Errorf("%w: owner %s, signer %s", ErrNotOwner, row.Owner, signer)
		}

		eff.row = row

	default:
		return effect{}, fmt.Errorf("unknown op %q", tx.Op)
	}

	return eff, nil
}

// commit applies a checked effect. The caller must hold the write lock.
func (db *Database) commit(eff effect) {
	db.relayBalance -= eff.fee
	db.nonces[eff.signer] = eff.nonce

	tbl, exists := db.tables[eff.table]
	if !exists {
		tbl = &table{rows: make(map[string]Row), nextID: 1}
		db.tables[eff.table] = tbl
	}

	switch eff.op {
	case OpInsert:
		tbl.ids = append(tbl.ids, eff.row.ID)
		tbl.rows[eff.row.ID] = eff.row
		tbl.nextID++

	case OpDelete:
		delete(tbl.rows, eff.row.ID)
		for i, id := range tbl.ids {
			if id == eff.row.ID {
				tbl.ids = append(tbl.ids[:i], tbl.ids[i+1:]...)
				break
			}
		}
	}
}
