// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/iprotocol/blockchain/app/services/node/handlers/v1/ledgergrp"
	"github.com/iprotocol/blockchain/business/sys/metrics"
	"github.com/iprotocol/blockchain/foundation/blockchain/state"
	"github.com/iprotocol/blockchain/foundation/events"
	"github.com/iprotocol/blockchain/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *zap.SugaredLogger
	State   *state.State
	Metrics *metrics.Metrics
	Evts    *events.Events
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	lgh := ledgergrp.Handlers{
		Log:     cfg.Log,
		State:   cfg.State,
		Metrics: cfg.Metrics,
		Evts:    cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", lgh.Events)
	app.Handle(http.MethodGet, version, "/status", lgh.Status)
	app.Handle(http.MethodGet, version, "/accounts/list", lgh.Accounts)
	app.Handle(http.MethodGet, version, "/accounts/list/:account", lgh.Accounts)
	app.Handle(http.MethodGet, version, "/blocks/list", lgh.BlocksByHeight)
	app.Handle(http.MethodGet, version, "/blocks/list/:from/:to", lgh.BlocksByHeight)
	app.Handle(http.MethodGet, version, "/blocks/:height", lgh.Block)
	app.Handle(http.MethodGet, version, "/chain/validate", lgh.Validate)
	app.Handle(http.MethodGet, version, "/tx/uncommitted/list", lgh.Mempool)
	app.Handle(http.MethodPost, version, "/tx/submit", lgh.SubmitTransaction)
	app.Handle(http.MethodPost, version, "/mining/mine", lgh.Mine)
	app.Handle(http.MethodPost, version, "/mining/signal", lgh.SignalMining)
}
