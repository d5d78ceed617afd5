// Package rowstore keeps a local mirror of tables held by a remote row store.
//
// The mirror is only exact right after a successful Refresh. Insert and
// Remove never patch the mirror with confirmed data, the caller refreshes
// once a write completes to see its effect. Operations on one client are
// expected to be serialized by the caller: running Insert and Refresh at the
// same time is safe for memory but leaves the resulting mirror undefined.
//
// Failures are never retried. Every remote failure is returned as one of
// ConnectionError, RemoteReadError, RemoteWriteError or NotReadyError and
// leaves the mirror as it was after the last successful Refresh.
package rowstore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// EventHandler defines a function that is called when events
// occur in the processing of client operations.
type EventHandler func(v string, args ...any)

// State represents where the client is in its connection lifecycle.
type State int

// Set of client states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// InsertPolicy selects how Insert treats the mirror.
type InsertPolicy int

// Set of insert policies.
const (

	// PullThenRefresh leaves the mirror alone. Inserted rows show up on the
	// caller's next Refresh.
	PullThenRefresh InsertPolicy = iota

	// OptimisticAppend adds a pending row to the mirror as soon as the
	// remote store hands out a correlation token for the write. The pending
	// row is removed if the write fails and replaced by the next Refresh.
	OptimisticAppend
)

// String implements the fmt.Stringer interface.
func (p InsertPolicy) String() string {
	if p == OptimisticAppend {
		return "optimistic"
	}
	return "pull"
}

// ParseInsertPolicy converts a policy name into an InsertPolicy.
func ParseInsertPolicy(name string) (InsertPolicy, error) {
	switch name {
	case "pull", "":
		return PullThenRefresh, nil
	case "optimistic":
		return OptimisticAppend, nil
	}
	return PullThenRefresh, errors.New("unknown insert policy, use pull or optimistic")
}

// =============================================================================

// Config represents the configuration required to construct a client.
type Config struct {
	Connector Connector
	Policy    InsertPolicy
	EvHandler EventHandler
}

// Client presents list, insert and remove operations over a remote table
// and owns the mirror of every table it has refreshed.
type Client struct {
	connector Connector
	policy    InsertPolicy
	evHandler EventHandler

	mu      sync.Mutex
	state   State
	conn    Conn
	mirrors map[string][]Row
}

// New constructs a disconnected client.
func New(cfg Config) *Client {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	return &Client{
		connector: cfg.Connector,
		policy:    cfg.Policy,
		evHandler: ev,
		mirrors:   make(map[string][]Row),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Account returns the account of the current session.
func (c *Client) Account() (string, error) {
	conn, err := c.session("account")
	if err != nil {
		return "", err
	}
	return conn.Account(), nil
}

// Mirror returns a copy of the mirror for the specified table.
func (c *Client) Mirror(table string) []Row {
	c.mu.Lock()
	defer c.mu.Unlock()

	return cloneRows(c.mirrors[table])
}

// Connect establishes a session with the remote store. Table operations
// fail with NotReadyError until it completes. A Connect issued while
// another is in flight fails with NotReadyError, callers serialize on the
// pending connection. Connecting again once connected replaces the session
// only when the new one is established, a failed attempt leaves the
// existing session in place.
func (c *Client) Connect(ctx context.Context, endpoint string, cred Credentials) error {
	c.mu.Lock()
	if c.state == StateConnecting {
		c.mu.Unlock()
		return &NotReadyError{Op: "connect", State: StateConnecting}
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.evHandler("rowstore: Connect: started: endpoint[%s]", endpoint)

	conn, err := c.connector.Connect(ctx, endpoint, cred)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = StateDisconnected
		if c.conn != nil {
			c.state = StateConnected
		}
		c.evHandler("rowstore: Connect: ERROR: endpoint[%s]: %s", endpoint, err)
		return &ConnectionError{Endpoint: endpoint, Err: err}
	}

	prev := c.conn
	c.conn = conn
	c.state = StateConnected
	c.evHandler("rowstore: Connect: completed: account[%s]", conn.Account())

	if prev != nil {
		prev.Close()
	}

	return nil
}

// Disconnect closes the session. The mirrors are kept.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.state == StateConnected {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	return conn.Close()
}

// Refresh reads the full table from the remote store, one identifier list
// and one read per row, and replaces the table's mirror with the result. On
// failure the mirror is left untouched.
func (c *Client) Refresh(ctx context.Context, table string) ([]Row, error) {
	conn, err := c.session("refresh")
	if err != nil {
		return nil, err
	}

	ids, err := conn.ListIdentifiers(ctx, table)
	if err != nil {
		c.fault(conn, err)
		return nil, &RemoteReadError{Op: "list", Table: table, Err: err}
	}

	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		result, err := conn.ReadRow(ctx, table, id)
		if err != nil {
			c.fault(conn, err)
			return nil, &RemoteReadError{Op: "read", Table: table, Err: err}
		}

		fields := make(Fields, len(result))
		for _, fld := range result {
			fields[fld.Name] = fld.Value
		}

		rows = append(rows, Row{ID: id, Status: StatusConfirmed, Fields: fields})
	}

	c.mu.Lock()
	c.mirrors[table] = rows
	c.mu.Unlock()

	c.evHandler("rowstore: Refresh: table[%s] rows[%d]", table, len(rows))

	return cloneRows(rows), nil
}

// Insert writes a new row and returns the identifier the remote store
// assigned once the write is acknowledged. Under OptimisticAppend a pending
// row is added to the mirror while the write is in flight. An empty set of
// fields fails with ErrNoFields before anything is sent.
func (c *Client) Insert(ctx context.Context, table string, fields Fields) (string, error) {
	conn, err := c.session("insert")
	if err != nil {
		return "", err
	}

	if len(fields) == 0 {
		return "", fmt.Errorf("insert %s: %w", table, ErrNoFields)
	}

	columns, values := fields.Columns()

	var token string
	pending := func(tkn string) {
		token = tkn
		c.evHandler("rowstore: Insert: pending: table[%s] token[%s]", table, tkn)

		if c.policy != OptimisticAppend {
			return
		}

		row := Row{Token: tkn, Status: StatusPending, Fields: fields.clone()}

		c.mu.Lock()
		c.mirrors[table] = append(c.mirrors[table], row)
		c.mu.Unlock()
	}

	id, err := conn.WriteRow(ctx, table, columns, values, pending)
	if err != nil {
		if c.policy == OptimisticAppend && token != "" {
			c.updatePending(table, token, func(rows []Row, i int) []Row {
				return append(rows[:i], rows[i+1:]...)
			})
		}

		c.fault(conn, err)
		return "", &RemoteWriteError{Op: "insert", Table: table, Err: err}
	}

	if c.policy == OptimisticAppend && token != "" {
		c.updatePending(table, token, func(rows []Row, i int) []Row {
			rows[i].ID = id
			return rows
		})
	}

	c.evHandler("rowstore: Insert: acknowledged: table[%s] id[%s]", table, id)

	return id, nil
}

// Remove deletes the specified row. The mirror is not changed, the row
// disappears on the caller's next Refresh.
func (c *Client) Remove(ctx context.Context, table string, id string) error {
	conn, err := c.session("remove")
	if err != nil {
		return err
	}

	if err := conn.DeleteRow(ctx, table, id); err != nil {
		c.fault(conn, err)
		return &RemoteWriteError{Op: "remove", Table: table, ID: id, Err: err}
	}

	c.evHandler("rowstore: Remove: acknowledged: table[%s] id[%s]", table, id)

	return nil
}

// Balance returns the subsidy balance paying for writes. The value is
// advisory: a failure here never changes the client's state or mirrors.
func (c *Client) Balance(ctx context.Context) (*big.Int, error) {
	conn, err := c.session("balance")
	if err != nil {
		return nil, err
	}

	bal, err := conn.ReadBalance(ctx)
	if err != nil {
		return nil, &RemoteReadError{Op: "balance", Err: err}
	}

	return bal, nil
}

// =============================================================================

// session returns the connection for a table operation or a NotReadyError.
func (c *Client) session(op string) (Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return nil, &NotReadyError{Op: op, State: c.state}
	}

	return c.conn, nil
}

// fault drops the session when the failure says it can't be used anymore.
func (c *Client) fault(conn Conn, err error) {
	if !errors.Is(err, ErrSessionLost) {
		return
	}

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.state == StateConnected {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	c.evHandler("rowstore: fault: session lost: %s", err)
	conn.Close()
}

// updatePending applies fn to the pending row carrying the token, if a
// refresh hasn't already replaced it.
func (c *Client) updatePending(table string, token string, fn func(rows []Row, i int) []Row) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := c.mirrors[table]
	for i, row := range rows {
		if row.Pending() && row.Token == token {
			c.mirrors[table] = fn(rows, i)
			return
		}
	}
}
