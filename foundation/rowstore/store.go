package rowstore

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
)

// ErrSessionLost is wrapped by a Conn into any failure that leaves the
// session unusable, such as a transport failure or an expired login. The
// client drops the session when it sees it.
var ErrSessionLost = errors.New("session lost")

// ErrNoFields is returned when an insert carries no fields. It's checked
// locally and never reaches the remote store.
var ErrNoFields = errors.New("no fields to write")

// Credentials identify the user to the remote store.
type Credentials struct {
	Key       *ecdsa.PrivateKey // Wallet key the rows are written for.
	Ephemeral bool              // Sign writes with a throwaway key generated per session.
}

// Field is a single (name, value) pair as the remote store returns it.
type Field struct {
	Name  string
	Value string
}

// Connector establishes sessions with a remote row store.
type Connector interface {
	Connect(ctx context.Context, endpoint string, cred Credentials) (Conn, error)
}

// Conn is an authenticated session with a remote row store.
type Conn interface {

	// Account returns the account the session acts for.
	Account() string

	// ListIdentifiers returns the identifier of every row in the table.
	ListIdentifiers(ctx context.Context, table string) ([]string, error)

	// ReadRow returns the fields of the specified row.
	ReadRow(ctx context.Context, table string, id string) ([]Field, error)

	// WriteRow inserts a row and returns its identifier once the write is
	// confirmed. The pending function is called with the correlation token
	// of the write before confirmation.
	WriteRow(ctx context.Context, table string, columns []string, values []string, pending func(token string)) (string, error)

	// DeleteRow deletes the specified row.
	DeleteRow(ctx context.Context, table string, id string) error

	// ReadBalance returns the subsidy balance paying for writes, in wei.
	ReadBalance(ctx context.Context) (*big.Int, error)

	// Close releases the session.
	Close() error
}
