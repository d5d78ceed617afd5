// Package chain implements a remote row store backed by a rowdb node. Every
// write is a signed transaction submitted to the node's http api, reads go
// against the node's tables.
package chain

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ardanlabs/todochain/foundation/rowdb"
	"github.com/ardanlabs/todochain/foundation/rowstore"
	"github.com/ethereum/go-ethereum/crypto"
)

// Config represents the configuration required to construct a store.
type Config struct {
	Client    *http.Client
	EvHandler rowstore.EventHandler
}

// Store connects to rowdb nodes over http.
type Store struct {
	client    *http.Client
	evHandler rowstore.EventHandler
}

// New constructs a store that uses the specified http client. A nil client
// uses http.DefaultClient.
func New(cfg Config) *Store {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	return &Store{
		client:    client,
		evHandler: ev,
	}
}

// Connect implements rowstore.Connector. The endpoint is the base url of the
// node. When the credentials ask for an ephemeral key, writes are signed by
// a key generated here and rows are declared as owned by the wallet account.
func (s *Store) Connect(ctx context.Context, endpoint string, cred rowstore.Credentials) (rowstore.Conn, error) {
	if cred.Key == nil {
		return nil, errors.New("a wallet key is required")
	}

	base, err := url.Parse(endpoint)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", endpoint)
	}

	c := conn{
		client:    s.client,
		evHandler: s.evHandler,
		base:      strings.TrimSuffix(endpoint, "/"),
		account:   rowdb.PublicKeyToAccountID(cred.Key.PublicKey),
		signer:    cred.Key,
	}

	if cred.Ephemeral {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generating ephemeral key: %w", err)
		}
		c.signer = key
		c.owner = c.account
	}
	c.signerID = rowdb.PublicKeyToAccountID(c.signer.PublicKey)

	var gen rowdb.Genesis
	if err := c.do(ctx, http.MethodGet, "/v1/genesis", nil, &gen); err != nil {
		return nil, fmt.Errorf("reading genesis: %w", err)
	}
	c.chainID = gen.ChainID

	var act account
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+string(c.signerID), nil, &act); err != nil {
		return nil, fmt.Errorf("reading nonce: %w", err)
	}
	c.nonce = act.Nonce

	s.evHandler("chain: Connect: account[%s] signer[%s] chain[%d] nonce[%d]", c.account, c.signerID, c.chainID, c.nonce)

	return &c, nil
}

// =============================================================================

// account is the node's view of an account.
type account struct {
	Account string `json:"account"`
	Nonce   uint64 `json:"nonce"`
}

// tableIDs is the node's list of row identifiers.
type tableIDs struct {
	Table string   `json:"table"`
	IDs   []string `json:"ids"`
}

// row is the node's view of a row.
type row struct {
	ID     string        `json:"id"`
	Owner  string        `json:"owner"`
	Fields []rowdb.Field `json:"fields"`
}

// relayBalance is the subsidy left on the node.
type relayBalance struct {
	Balance string `json:"balance"`
}

// errorResponse is the body the node returns on failure.
type errorResponse struct {
	Error string `json:"error"`
}

// StatusError is returned when the node rejected a request.
type StatusError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (se *StatusError) Error() string {
	return fmt.Sprintf("node returned %d: %s", se.Status, se.Message)
}

// =============================================================================

// conn is a session with a single node.
type conn struct {
	client    *http.Client
	evHandler rowstore.EventHandler
	base      string
	chainID   uint16

	account  rowdb.AccountID
	owner    rowdb.AccountID
	signer   *ecdsa.PrivateKey
	signerID rowdb.AccountID

	mu     sync.Mutex
	nonce  uint64
	stale  bool
	closed bool
}

// Account implements rowstore.Conn.
func (c *conn) Account() string {
	return string(c.account)
}

// ListIdentifiers implements rowstore.Conn.
func (c *conn) ListIdentifiers(ctx context.Context, table string) ([]string, error) {
	var ids tableIDs
	if err := c.do(ctx, http.MethodGet, "/v1/tables/"+url.PathEscape(table)+"/ids", nil, &ids); err != nil {
		return nil, err
	}

	if ids.IDs == nil {
		return []string{}, nil
	}

	return ids.IDs, nil
}

// ReadRow implements rowstore.Conn.
func (c *conn) ReadRow(ctx context.Context, table string, id string) ([]rowstore.Field, error) {
	var r row
	if err := c.do(ctx, http.MethodGet, "/v1/tables/"+url.PathEscape(table)+"/rows/"+url.PathEscape(id), nil, &r); err != nil {
		return nil, err
	}

	fields := make([]rowstore.Field, len(r.Fields))
	for i, fld := range r.Fields {
		fields[i] = rowstore.Field{Name: fld.Name, Value: fld.Value}
	}

	return fields, nil
}

// WriteRow implements rowstore.Conn. The pending function receives the hash
// of the signed transaction before it's submitted.
func (c *conn) WriteRow(ctx context.Context, table string, columns []string, values []string, pending func(token string)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	build := func(nonce uint64) (rowdb.Tx, error) {
		return rowdb.NewInsertTx(c.chainID, nonce, table, columns, values, c.owner)
	}

	receipt, err := c.submit(ctx, build, pending)
	if err != nil {
		return "", err
	}

	return receipt.RowID, nil
}

// DeleteRow implements rowstore.Conn. The delete is signed by the session's
// signer, which must own the row.
func (c *conn) DeleteRow(ctx context.Context, table string, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	build := func(nonce uint64) (rowdb.Tx, error) {
		return rowdb.NewDeleteTx(c.chainID, nonce, table, id)
	}

	_, err := c.submit(ctx, build, nil)
	return err
}

// ReadBalance implements rowstore.Conn.
func (c *conn) ReadBalance(ctx context.Context) (*big.Int, error) {
	var rb relayBalance
	if err := c.do(ctx, http.MethodGet, "/v1/relay/balance", nil, &rb); err != nil {
		return nil, err
	}

	bal, ok := new(big.Int).SetString(rb.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("invalid balance %q", rb.Balance)
	}

	return bal, nil
}

// Close implements rowstore.Conn.
func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return nil
}

// =============================================================================

// submit builds the transaction with the next nonce, signs and sends it.
// The nonce only moves forward once the node accepted the transaction. A
// failed submit may still have been sealed, the node's nonce is read again
// before the next one. The caller must hold the lock.
func (c *conn) submit(ctx context.Context, build func(nonce uint64) (rowdb.Tx, error), pending func(token string)) (rowdb.Receipt, error) {
	if c.closed {
		return rowdb.Receipt{}, fmt.Errorf("%w: connection closed", rowstore.ErrSessionLost)
	}

	if c.stale {
		var act account
		if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+string(c.signerID), nil, &act); err != nil {
			return rowdb.Receipt{}, fmt.Errorf("reading nonce: %w", err)
		}

		c.evHandler("chain: submit: resynced: signer[%s] nonce[%d] was[%d]", c.signerID, act.Nonce, c.nonce)
		c.nonce = act.Nonce
		c.stale = false
	}

	tx, err := build(c.nonce + 1)
	if err != nil {
		return rowdb.Receipt{}, err
	}

	signedTx, err := tx.Sign(c.signer)
	if err != nil {
		return rowdb.Receipt{}, fmt.Errorf("signing tx: %w", err)
	}

	if pending != nil {
		pending(signedTx.Hash())
	}

	var receipt rowdb.Receipt
	if err := c.do(ctx, http.MethodPost, "/v1/tx/submit", signedTx, &receipt); err != nil {
		c.stale = true
		c.evHandler("chain: submit: ERROR: op[%s] table[%s] nonce[%d]: %s", tx.Op, tx.Table, tx.Nonce, err)
		return rowdb.Receipt{}, err
	}

	c.nonce = tx.Nonce
	c.evHandler("chain: submit: sealed: op[%s] table[%s] row[%s] blk[%d]", tx.Op, tx.Table, receipt.RowID, receipt.Block)

	return receipt, nil
}

// do performs the request against the node and decodes the response into
// result. Transport failures are reported as a lost session.
func (c *conn) do(ctx context.Context, method string, path string, body any, result any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s", rowstore.ErrSessionLost, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
			er.Error = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Status: resp.StatusCode, Message: er.Error}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// =============================================================================

// IsStatus checks if the error is a StatusError carrying the status code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == status
}
