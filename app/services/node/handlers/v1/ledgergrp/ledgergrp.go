// Package ledgergrp maintains the group of handlers for ledger access.
package ledgergrp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iprotocol/blockchain/business/sys/metrics"
	"github.com/iprotocol/blockchain/business/web/errs"
	"github.com/iprotocol/blockchain/foundation/blockchain/database"
	"github.com/iprotocol/blockchain/foundation/blockchain/state"
	"github.com/iprotocol/blockchain/foundation/events"
	"github.com/iprotocol/blockchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	State   *state.State
	Metrics *metrics.Metrics
	Evts    *events.Events
	WS      websocket.Upgrader
}

// SubmitTransaction adds a new signed transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var ntx NewTx
	if err := web.Decode(r, &ntx); err != nil {
		if web.IsFieldErrors(err) {
			return err
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tx := ntx.toTx()

	h.Log.Infow("submit tran", "traceid", v.TraceID, "tx", tx, "id", tx.ID)

	err = h.State.SubmitTransaction(tx)
	h.Metrics.TxSubmitted(err)
	if err != nil {
		return err
	}

	resp := submitted{
		Status: "transaction added to mempool",
		ID:     tx.ID,
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// Mempool returns the set of uncommitted transactions in arrival order.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toTxs(h.State.RetrieveMempool()), http.StatusOK)
}

// Mine mines the pending transactions into a new block and waits for the
// result. The request is cancelled if the client goes away.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	t := time.Now()
	block, err := h.State.MinePendingTransactions(ctx)
	if err != nil {
		return err
	}
	h.Metrics.BlockMined(time.Since(t))

	return web.Respond(ctx, w, database.NewBlockData(block), http.StatusCreated)
}

// SignalMining asks the background worker to start a mining operation.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.State.Worker == nil {
		return errs.NewTrusted(errors.New("background mining is not enabled"), http.StatusConflict)
	}

	h.State.Worker.SignalStartMining()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "mining signalled",
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// Status returns the current status of the ledger.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := status{
		Status:  h.State.Status(),
		Genesis: h.State.RetrieveGenesis(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Accounts returns the nonce information for every account that has sent a
// transaction, or for the single account in the path.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "account")
	if id == "" {
		return web.Respond(ctx, w, h.State.RetrieveAccounts(), http.StatusOK)
	}

	accountID, err := database.ToAccountID(id)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	account, err := h.State.RetrieveAccount(accountID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return web.Respond(ctx, w, account, http.StatusOK)
}

// Block returns the block at the height in the path. The height can be
// the word latest.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	height, err := parseHeight(web.Param(r, "height"))
	if err != nil {
		return err
	}

	block, err := h.State.RetrieveBlock(height)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, database.NewBlockData(block), http.StatusOK)
}

// BlocksByHeight returns all the blocks based on the specified to/from
// values. Missing values default to the genesis block and the latest block.
func (h Handlers) BlocksByHeight(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var from uint64
	if s := web.Param(r, "from"); s != "" {
		var err error
		if from, err = parseHeight(s); err != nil {
			return err
		}
	}

	to, err := parseHeight(web.Param(r, "to"))
	if err != nil {
		return err
	}

	if from != state.QueryLatest && to != state.QueryLatest && from > to {
		return errs.NewTrusted(errors.New("from greater than to"), http.StatusBadRequest)
	}

	blocks := h.State.RetrieveBlocks(from, to)
	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blockData := make([]database.BlockData, len(blocks))
	for i, block := range blocks {
		blockData[i] = database.NewBlockData(block)
	}

	return web.Respond(ctx, w, blockData, http.StatusOK)
}

// Validate runs a full validation of the chain and reports the first
// failing height.
func (h Handlers) Validate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	err := h.State.Validate()
	h.Metrics.ChainValidated(err)

	if err == nil {
		return web.Respond(ctx, w, validation{Valid: true}, http.StatusOK)
	}

	resp := validation{
		Error: err.Error(),
	}

	var chainErr *state.ChainError
	if errors.As(err, &chainErr) {
		resp.Height = &chainErr.Height
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Need this to handle CORS on the websocket.
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// This upgrades the HTTP connection to a websocket connection.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// This provides a channel for receiving events from the blockchain.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Block waiting for events from the blockchain or ticker.
	for {
		select {
		case msg, wd := <-ch:

			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// =============================================================================

func parseHeight(s string) (uint64, error) {
	if s == "" || s == "latest" {
		return state.QueryLatest, nil
	}

	height, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errs.NewTrusted(fmt.Errorf("invalid height %q", s), http.StatusBadRequest)
	}

	return height, nil
}
