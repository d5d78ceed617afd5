package tablegrp

import (
	"github.com/ardanlabs/todochain/foundation/nameservice"
	"github.com/ardanlabs/todochain/foundation/rowdb"
)

type tableIDs struct {
	Table string   `json:"table"`
	IDs   []string `json:"ids"`
}

type row struct {
	ID     string        `json:"id"`
	Owner  string        `json:"owner"`
	Name   string        `json:"owner_name"`
	Fields []rowdb.Field `json:"fields"`
}

func toRow(r rowdb.Row, ns *nameservice.NameService) row {
	return row{
		ID:     r.ID,
		Owner:  string(r.Owner),
		Name:   ns.Lookup(r.Owner),
		Fields: r.Fields,
	}
}
