package rowdb

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/todochain/foundation/signature"
)

// Op names the change a transaction makes to a table.
type Op string

// Set of operations the ledger accepts.
const (
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// =============================================================================

// Tx is the change a user wants applied to a table.
type Tx struct {
	ChainID uint16    `json:"chain_id"`          // Ethereum: The chain id the transaction was built for.
	Nonce   uint64    `json:"nonce"`             // Ethereum: Unique id for the transaction supplied by the signer.
	Table   string    `json:"table"`             // Table the change applies to.
	Op      Op        `json:"op"`                // Insert or delete.
	RowID   string    `json:"row_id,omitempty"`  // Row being deleted.
	Columns []string  `json:"columns,omitempty"` // Column names for an insert.
	Values  []string  `json:"values,omitempty"`  // Column values for an insert, same order as Columns.
	Owner   AccountID `json:"owner,omitempty"`   // Account owning an inserted row, the signer when empty.
}

// NewInsertTx constructs a transaction that inserts a row.
func NewInsertTx(chainID uint16, nonce uint64, table string, columns []string, values []string, owner AccountID) (Tx, error) {
	if len(columns) == 0 || len(columns) != len(values) {
		return Tx{}, fmt.Errorf("%w: columns[%d] values[%d]", ErrRowShape, len(columns), len(values))
	}

	if owner != "" && !owner.IsAccountID() {
		return Tx{}, errors.New("owner account is not properly formatted")
	}

	tx := Tx{
		ChainID: chainID,
		Nonce:   nonce,
		Table:   table,
		Op:      OpInsert,
		Columns: columns,
		Values:  values,
		Owner:   owner,
	}

	return tx, nil
}

// NewDeleteTx constructs a transaction that deletes a row.
func NewDeleteTx(chainID uint16, nonce uint64, table string, rowID string) (Tx, error) {
	if rowID == "" {
		return Tx{}, errors.New("row id is required")
	}

	tx := Tx{
		ChainID: chainID,
		Nonce:   nonce,
		Table:   table,
		Op:      OpDelete,
		RowID:   rowID,
	}

	return tx, nil
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {
	v, r, s, err := signature.Sign(tx, privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Tx: tx,
		V:  v,
		R:  r,
		S:  s,
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. This is how clients
// provide transactions for inclusion into the ledger.
type SignedTx struct {
	Tx
	V *big.Int `json:"v"` // Ethereum: Recovery identifier, either 29 or 30 with rowdbID.
	R *big.Int `json:"r"` // Ethereum: First coordinate of the ECDSA signature.
	S *big.Int `json:"s"` // Ethereum: Second coordinate of the ECDSA signature.
}

// Validate verifies the transaction has a proper signature and returns the
// account that signed it.
func (tx SignedTx) Validate() (AccountID, error) {
	if tx.Table == "" {
		return "", errors.New("table is required")
	}

	switch tx.Op {
	case OpInsert, OpDelete:
	default:
		return "", fmt.Errorf("unknown op %q", tx.Op)
	}

	if err := signature.VerifySignature(tx.V, tx.R, tx.S); err != nil {
		return "", err
	}

	return tx.FromAccount()
}

// FromAccount extracts the account id that signed the transaction.
func (tx SignedTx) FromAccount() (AccountID, error) {
	address, err := signature.FromAddress(tx.Tx, tx.V, tx.R, tx.S)
	return AccountID(address), err
}

// Hash returns the hash of the signed transaction. Clients see this value
// before the ledger confirms the write.
func (tx SignedTx) Hash() string {
	return signature.Hash(tx)
}

// SignatureString returns the signature as a string.
func (tx SignedTx) SignatureString() string {
	return signature.SignatureString(tx.V, tx.R, tx.S)
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	from, err := tx.FromAccount()
	if err != nil {
		from = "unknown"
	}

	return fmt.Sprintf("%s:%d", from, tx.Nonce)
}
