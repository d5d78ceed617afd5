package ledgergrp

import (
	"math/big"
	"strconv"

	"github.com/ardanlabs/todochain/foundation/rowdb"
)

type account struct {
	Account string `json:"account"`
	Name    string `json:"name"`
	Nonce   uint64 `json:"nonce"`
}

type relay struct {
	Balance string `json:"balance"`
	GasFee  uint64 `json:"gas_fee"`
	Writes  uint64 `json:"writes_left"`
	Block   uint64 `json:"block"`
}

// submitTx is the signed transaction as it arrives on the wire.
type submitTx struct {
	ChainID uint16   `json:"chain_id" validate:"required"`
	Nonce   uint64   `json:"nonce" validate:"required"`
	Table   string   `json:"table" validate:"required,column"`
	Op      string   `json:"op" validate:"required,oneof=insert delete"`
	RowID   string   `json:"row_id" validate:"required_if=Op delete"`
	Columns []string `json:"columns" validate:"required_if=Op insert,dive,column"`
	Values  []string `json:"values" validate:"required_if=Op insert"`
	Owner   string   `json:"owner" validate:"omitempty,eth_addr"`
	V       *big.Int `json:"v" validate:"required"`
	R       *big.Int `json:"r" validate:"required"`
	S       *big.Int `json:"s" validate:"required"`
}

func toSignedTx(tx submitTx) rowdb.SignedTx {
	return rowdb.SignedTx{
		Tx: rowdb.Tx{
			ChainID: tx.ChainID,
			Nonce:   tx.Nonce,
			Table:   tx.Table,
			Op:      rowdb.Op(tx.Op),
			RowID:   tx.RowID,
			Columns: tx.Columns,
			Values:  tx.Values,
			Owner:   rowdb.AccountID(tx.Owner),
		},
		V: tx.V,
		R: tx.R,
		S: tx.S,
	}
}

func toRelay(db *rowdb.Database) relay {
	bal := db.RelayBalance()
	fee := db.Genesis().GasFee()

	var writes uint64
	if fee > 0 {
		writes = bal / fee
	}

	return relay{
		Balance: strconv.FormatUint(bal, 10),
		GasFee:  fee,
		Writes:  writes,
		Block:   db.LatestBlock().Header.Number,
	}
}
