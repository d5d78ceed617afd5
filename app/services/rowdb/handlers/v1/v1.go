// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/todochain/app/services/rowdb/handlers/v1/ledgergrp"
	"github.com/ardanlabs/todochain/app/services/rowdb/handlers/v1/tablegrp"
	"github.com/ardanlabs/todochain/foundation/events"
	"github.com/ardanlabs/todochain/foundation/nameservice"
	"github.com/ardanlabs/todochain/foundation/rowdb"
	"github.com/ardanlabs/todochain/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log  *zap.SugaredLogger
	DB   *rowdb.Database
	NS   *nameservice.NameService
	Evts *events.Events
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	lgh := ledgergrp.Handlers{
		Log:  cfg.Log,
		DB:   cfg.DB,
		NS:   cfg.NS,
		Evts: cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/genesis", lgh.Genesis)
	app.Handle(http.MethodGet, version, "/accounts/:account", lgh.Account)
	app.Handle(http.MethodGet, version, "/relay/balance", lgh.RelayBalance)
	app.Handle(http.MethodPost, version, "/tx/submit", lgh.Submit)
	app.Handle(http.MethodGet, version, "/events", lgh.Events)

	tgh := tablegrp.Handlers{
		Log: cfg.Log,
		DB:  cfg.DB,
		NS:  cfg.NS,
	}

	app.Handle(http.MethodGet, version, "/tables/:table/ids", tgh.IDs)
	app.Handle(http.MethodGet, version, "/tables/:table/rows/:id", tgh.Row)
}
