package rowdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/todochain/foundation/signature"
)

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64    `json:"number"`          // Ethereum: Block number in the chain.
	PrevBlockHash string    `json:"prev_block_hash"` // Bitcoin: Hash of the previous block in the chain.
	TimeStamp     uint64    `json:"timestamp"`       // Bitcoin: Time the block was sealed.
	TxHash        string    `json:"tx_hash"`         // Hash of the single transaction in the block.
	Signer        AccountID `json:"signer"`          // Account that signed the transaction.
	RowID         string    `json:"row_id"`          // Row inserted or deleted by the transaction.
	GasFee        uint64    `json:"gas_fee"`         // Fee taken from the relay balance.
}

// Block seals a single accepted transaction into the chain.
type Block struct {
	Header BlockHeader `json:"header"`
	Tx     SignedTx    `json:"tx"`
}

// newBlock constructs the block that follows prevBlock.
func newBlock(prevBlock Block, tx SignedTx, signer AccountID, rowID string, gasFee uint64) Block {
	return Block{
		Header: BlockHeader{
			Number:        prevBlock.Header.Number + 1,
			PrevBlockHash: prevBlock.Hash(),
			TimeStamp:     uint64(time.Now().UTC().UnixMilli()),
			TxHash:        tx.Hash(),
			Signer:        signer,
			RowID:         rowID,
			GasFee:        gasFee,
		},
		Tx: tx,
	}
}

// Hash returns the unique hash for the block. The zero block, which only
// exists in memory before the first write, hashes to ZeroHash.
func (b Block) Hash() string {
	if b.Header.Number == 0 {
		return signature.ZeroHash
	}

	return signature.Hash(b.Header)
}

// ValidateBlock takes a block read back from storage and validates it
// follows prevBlock and carries the transaction it claims.
func (b Block) ValidateBlock(prevBlock Block, evHandler EventHandler) error {
	evHandler("rowdb: ValidateBlock: validate: blk[%d]: chain is not forked", b.Header.Number)

	nextNumber := prevBlock.Header.Number + 1
	if b.Header.Number != nextNumber {
		return fmt.Errorf("%w: block number %d, expected %d", ErrChainCorrupt, b.Header.Number, nextNumber)
	}

	evHandler("rowdb: ValidateBlock: validate: blk[%d]: parent hash does match parent block", b.Header.Number)

	if b.Header.PrevBlockHash != prevBlock.Hash() {
		return fmt.Errorf("%w: parent block hash doesn't match our known parent", ErrChainCorrupt)
	}

	evHandler("rowdb: ValidateBlock: validate: blk[%d]: tx hash does match transaction", b.Header.Number)

	if b.Header.TxHash != b.Tx.Hash() {
		return fmt.Errorf("%w: transaction hash doesn't match block header", ErrChainCorrupt)
	}

	if b.Header.TimeStamp < prevBlock.Header.TimeStamp {
		return errors.New("block timestamp is before parent block")
	}

	return nil
}
