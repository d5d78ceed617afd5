package validate_test

import (
	"testing"

	"github.com/ardanlabs/todochain/business/sys/validate"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type model struct {
	Table   string   `json:"table" validate:"required,column"`
	Columns []string `json:"columns" validate:"required,dive,column"`
	Owner   string   `json:"owner" validate:"omitempty,eth_addr"`
}

func Test_Check(t *testing.T) {
	type table struct {
		name   string
		val    model
		fields []string
	}

	tt := []table{
		{name: "valid", val: model{Table: "todo", Columns: []string{"task", "done_at"}, Owner: "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"}},
		{name: "missing", val: model{}, fields: []string{"table", "columns"}},
		{name: "column", val: model{Table: "to do", Columns: []string{"ta-sk"}}, fields: []string{"table", "columns[0]"}},
		{name: "owner", val: model{Table: "todo", Columns: []string{"task"}, Owner: "kennedy"}, fields: []string{"owner"}},
	}

	t.Log("Given the need to validate request models.")
	{
		for _, tst := range tt {
			f := func(t *testing.T) {
				err := validate.Check(tst.val)
				if len(tst.fields) == 0 {
					if err != nil {
						t.Fatalf("\t%s\tTest %s:\tShould pass validation: %v", failed, tst.name, err)
					}
					t.Logf("\t%s\tTest %s:\tShould pass validation.", success, tst.name)
					return
				}

				if !validate.IsFieldErrors(err) {
					t.Fatalf("\t%s\tTest %s:\tShould get field errors: %v", failed, tst.name, err)
				}

				fields := validate.GetFieldErrors(err).Fields()
				if len(fields) != len(tst.fields) {
					t.Fatalf("\t%s\tTest %s:\tShould flag %d fields, got %v", failed, tst.name, len(tst.fields), fields)
				}
				for _, name := range tst.fields {
					if _, exists := fields[name]; !exists {
						t.Fatalf("\t%s\tTest %s:\tShould flag field %q, got %v", failed, tst.name, name, fields)
					}
				}
				t.Logf("\t%s\tTest %s:\tShould flag the bad fields.", success, tst.name)
			}

			t.Run(tst.name, f)
		}
	}
}
