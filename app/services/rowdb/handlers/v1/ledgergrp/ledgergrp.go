// Package ledgergrp maintains the group of handlers for submitting
// transactions and reading ledger state.
package ledgergrp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/todochain/business/sys/validate"
	"github.com/ardanlabs/todochain/business/web/errs"
	"github.com/ardanlabs/todochain/business/web/metrics"
	"github.com/ardanlabs/todochain/foundation/events"
	"github.com/ardanlabs/todochain/foundation/nameservice"
	"github.com/ardanlabs/todochain/foundation/rowdb"
	"github.com/ardanlabs/todochain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log  *zap.SugaredLogger
	DB   *rowdb.Database
	NS   *nameservice.NameService
	WS   websocket.Upgrader
	Evts *events.Events
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.DB.Genesis(), http.StatusOK)
}

// Account returns the last nonce the account used.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := rowdb.ToAccountID(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	act := account{
		Account: string(accountID),
		Name:    h.NS.Lookup(accountID),
		Nonce:   h.DB.Nonce(accountID),
	}

	return web.Respond(ctx, w, act, http.StatusOK)
}

// RelayBalance returns what's left of the subsidy paying for writes.
func (h Handlers) RelayBalance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toRelay(h.DB), http.StatusOK)
}

// Submit seals a signed transaction into the ledger and returns its receipt.
func (h Handlers) Submit(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx submitTx
	if err := web.Decode(r, &tx); err != nil {
		return errs.NewTrustedf(http.StatusBadRequest, "unable to decode payload: %s", err)
	}

	if err := validate.Check(tx); err != nil {
		return fmt.Errorf("validating data: %w", err)
	}

	signedTx := toSignedTx(tx)

	h.Log.Infow("submit tx", "traceid", v.TraceID, "from:nonce", signedTx, "op", signedTx.Op, "table", signedTx.Table, "row", signedTx.RowID, "sig", signedTx.SignatureString())

	receipt, err := h.DB.Submit(signedTx)
	if err != nil {
		return toTrusted(err)
	}

	metrics.AddWrites(ctx)

	return web.Respond(ctx, w, receipt, http.StatusOK)
}

// Events handles a web socket to provide ledger events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
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

// toTrusted maps ledger failures onto the status the client sees. Storage
// failures stay untrusted and are reported as a 500.
func toTrusted(err error) error {
	switch {
	case errors.Is(err, rowdb.ErrStorage):
		return err
	case errors.Is(err, rowdb.ErrNotFound):
		return errs.NewTrusted(err, http.StatusNotFound)
	case errors.Is(err, rowdb.ErrNotOwner):
		return errs.NewTrusted(err, http.StatusForbidden)
	case errors.Is(err, rowdb.ErrRelayExhausted):
		return errs.NewTrusted(err, http.StatusPaymentRequired)
	case errors.Is(err, rowdb.ErrNonce):
		return errs.NewTrusted(err, http.StatusConflict)
	}
	return errs.NewTrusted(err, http.StatusBadRequest)
}
