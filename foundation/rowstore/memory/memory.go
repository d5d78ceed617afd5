// Package memory implements a remote row store that lives in process. It
// backs tests and offline demos and lets failures be injected per call.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"github.com/ardanlabs/todochain/foundation/rowstore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("row not found")

// table keeps the rows in the order they were inserted.
type table struct {
	ids  []string
	rows map[string][]rowstore.Field
}

// Store is an in memory remote row store. The error fields are checked on
// every matching call, a nil field lets the call through.
type Store struct {
	mu      sync.Mutex
	tables  map[string]*table
	nextID  uint64
	balance *big.Int
	reads   int

	// Error injection for testing.
	ConnectErr error
	ListErr    error
	ReadErr    func(table string, id string, call int) error
	WriteErr   error
	DeleteErr  error
	BalanceErr error

	// ConnectGate, when set, holds Connect until the channel is closed.
	ConnectGate chan struct{}
}

// New constructs an empty store with the specified subsidy balance.
func New(balance *big.Int) *Store {
	if balance == nil {
		balance = new(big.Int)
	}

	return &Store{
		tables:  make(map[string]*table),
		balance: new(big.Int).Set(balance),
	}
}

// Seed adds a row directly to the store and returns its identifier.
func (s *Store) Seed(name string, fields rowstore.Fields) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	columns, values := fields.Columns()
	return s.insert(name, columns, values)
}

// Drop removes a row directly from the store, as another client would.
func (s *Store) Drop(name string, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delete(name, id)
}

// Connect implements rowstore.Connector.
func (s *Store) Connect(ctx context.Context, endpoint string, cred rowstore.Credentials) (rowstore.Conn, error) {
	if s.ConnectGate != nil {
		select {
		case <-s.ConnectGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.ConnectErr != nil {
		return nil, s.ConnectErr
	}

	account := "memory"
	if cred.Key != nil {
		account = crypto.PubkeyToAddress(cred.Key.PublicKey).Hex()
	}

	return &conn{store: s, account: account}, nil
}

// =============================================================================

// insert adds a row. The caller must hold the lock.
func (s *Store) insert(name string, columns []string, values []string) string {
	tbl, exists := s.tables[name]
	if !exists {
		tbl = &table{rows: make(map[string][]rowstore.Field)}
		s.tables[name] = tbl
	}

	s.nextID++
	id := strconv.FormatUint(s.nextID, 10)

	fields := make([]rowstore.Field, len(columns))
	for i := range columns {
		fields[i] = rowstore.Field{Name: columns[i], Value: values[i]}
	}

	tbl.ids = append(tbl.ids, id)
	tbl.rows[id] = fields

	return id
}

// delete removes a row. The caller must hold the lock.
func (s *Store) delete(name string, id string) bool {
	tbl, exists := s.tables[name]
	if !exists {
		return false
	}

	if _, exists := tbl.rows[id]; !exists {
		return false
	}

	delete(tbl.rows, id)
	for i, rowID := range tbl.ids {
		if rowID == id {
			tbl.ids = append(tbl.ids[:i], tbl.ids[i+1:]...)
			break
		}
	}

	return true
}

// =============================================================================

// conn is a session with the in memory store.
type conn struct {
	store   *Store
	account string
}

// Account implements rowstore.Conn.
func (c *conn) Account() string {
	return c.account
}

// ListIdentifiers implements rowstore.Conn.
func (c *conn) ListIdentifiers(ctx context.Context, name string) ([]string, error) {
	s := c.store
	if s.ListErr != nil {
		return nil, s.ListErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, exists := s.tables[name]
	if !exists {
		return []string{}, nil
	}

	ids := make([]string, len(tbl.ids))
	copy(ids, tbl.ids)

	return ids, nil
}

// ReadRow implements rowstore.Conn.
func (c *conn) ReadRow(ctx context.Context, name string, id string) ([]rowstore.Field, error) {
	s := c.store

	s.mu.Lock()
	s.reads++
	call := s.reads
	s.mu.Unlock()

	if s.ReadErr != nil {
		if err := s.ReadErr(name, id, call); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, exists := s.tables[name]
	if !exists {
		return nil, fmt.Errorf("%w: table[%s] id[%s]", ErrNotFound, name, id)
	}

	fields, exists := tbl.rows[id]
	if !exists {
		return nil, fmt.Errorf("%w: table[%s] id[%s]", ErrNotFound, name, id)
	}

	cpy := make([]rowstore.Field, len(fields))
	copy(cpy, fields)

	return cpy, nil
}

// WriteRow implements rowstore.Conn. The token is handed out before the
// write is applied, as a chain would before mining it.
func (c *conn) WriteRow(ctx context.Context, name string, columns []string, values []string, pending func(token string)) (string, error) {
	s := c.store

	if len(columns) != len(values) {
		return "", errors.New("columns and values do not line up")
	}

	if pending != nil {
		pending("0x" + uuid.NewString())
	}

	if s.WriteErr != nil {
		return "", s.WriteErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insert(name, columns, values), nil
}

// DeleteRow implements rowstore.Conn.
func (c *conn) DeleteRow(ctx context.Context, name string, id string) error {
	s := c.store
	if s.DeleteErr != nil {
		return s.DeleteErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.delete(name, id) {
		return fmt.Errorf("%w: table[%s] id[%s]", ErrNotFound, name, id)
	}

	return nil
}

// ReadBalance implements rowstore.Conn.
func (c *conn) ReadBalance(ctx context.Context) (*big.Int, error) {
	s := c.store
	if s.BalanceErr != nil {
		return nil, s.BalanceErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return new(big.Int).Set(s.balance), nil
}

// Close implements rowstore.Conn.
func (c *conn) Close() error {
	return nil
}
