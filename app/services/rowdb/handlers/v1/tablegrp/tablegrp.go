// Package tablegrp maintains the group of handlers for reading tables.
package tablegrp

import (
	"context"
	"errors"
	"net/http"

	"github.com/ardanlabs/todochain/business/web/errs"
	"github.com/ardanlabs/todochain/foundation/nameservice"
	"github.com/ardanlabs/todochain/foundation/rowdb"
	"github.com/ardanlabs/todochain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of table endpoints.
type Handlers struct {
	Log *zap.SugaredLogger
	DB  *rowdb.Database
	NS  *nameservice.NameService
}

// IDs returns the identifier of every row in the table. An unknown table
// has no rows.
func (h Handlers) IDs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	table := web.Param(r, "table")

	resp := tableIDs{
		Table: table,
		IDs:   h.DB.TableIDs(table),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Row returns the specified row.
func (h Handlers) Row(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	table := web.Param(r, "table")
	id := web.Param(r, "id")

	dbRow, err := h.DB.Row(table, id)
	if err != nil {
		if errors.Is(err, rowdb.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, toRow(dbRow, h.NS), http.StatusOK)
}
