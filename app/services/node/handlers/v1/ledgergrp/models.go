package ledgergrp

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/iprotocol/blockchain/foundation/blockchain/database"
	"github.com/iprotocol/blockchain/foundation/blockchain/genesis"
	"github.com/iprotocol/blockchain/foundation/blockchain/signature"
	"github.com/iprotocol/blockchain/foundation/blockchain/state"
)

// NewTx is what a client posts to submit a signed transaction.
type NewTx struct {
	ID        signature.Digest   `json:"id"`
	From      hexutil.Bytes      `json:"from" validate:"required"`
	To        database.AccountID `json:"to" validate:"required"`
	Amount    uint64             `json:"amount"`
	Fee       uint64             `json:"fee" validate:"required"`
	Nonce     uint64             `json:"nonce"`
	TimeStamp uint64             `json:"timestamp" validate:"required"`
	Signature hexutil.Bytes      `json:"signature" validate:"required"`
}

func (ntx NewTx) toTx() database.Tx {
	return database.Tx{
		ID:        ntx.ID,
		From:      ntx.From,
		To:        ntx.To,
		Amount:    ntx.Amount,
		Fee:       ntx.Fee,
		Nonce:     ntx.Nonce,
		TimeStamp: ntx.TimeStamp,
		Signature: ntx.Signature,
	}
}

type submitted struct {
	Status string           `json:"status"`
	ID     signature.Digest `json:"id"`
}

type status struct {
	state.Status
	Genesis genesis.Genesis `json:"genesis"`
}

type validation struct {
	Valid  bool    `json:"valid"`
	Height *uint64 `json:"height,omitempty"`
	Error  string  `json:"error,omitempty"`
}

type tx struct {
	database.Tx
	FromAccount database.AccountID `json:"from_account"`
}

func toTxs(trans []database.Tx) []tx {
	out := make([]tx, len(trans))
	for i, tran := range trans {
		out[i] = tx{
			Tx:          tran,
			FromAccount: tran.FromAccount(),
		}
	}
	return out
}
