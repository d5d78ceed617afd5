package rowdb

import "errors"

// Set of error variables for ledger failures. Handlers map these onto
// http status codes.
var (
	ErrNotFound       = errors.New("row not found")
	ErrWrongChain     = errors.New("transaction for wrong chain")
	ErrNonce          = errors.New("nonce too small")
	ErrRelayExhausted = errors.New("relay balance exhausted")
	ErrNotOwner       = errors.New("signer does not own row")
	ErrRowShape       = errors.New("columns and values do not line up")
	ErrChainCorrupt   = errors.New("stored chain is corrupt")
	ErrStorage        = errors.New("block storage failed")
)
