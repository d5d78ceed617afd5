package rowstore

import "sort"

// Status tells a confirmed row apart from one still waiting on its write.
type Status int

// Set of row states.
const (
	StatusConfirmed Status = iota
	StatusPending
)

// String implements the fmt.Stringer interface.
func (s Status) String() string {
	if s == StatusPending {
		return "pending"
	}
	return "confirmed"
}

// Fields maps a column name to its value.
type Fields map[string]string

// Columns returns the column names in sorted order with their values in
// the same order.
func (f Fields) Columns() (columns []string, values []string) {
	columns = make([]string, 0, len(f))
	for name := range f {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	values = make([]string, len(columns))
	for i, name := range columns {
		values[i] = f[name]
	}

	return columns, values
}

// clone returns a copy of the fields.
func (f Fields) clone() Fields {
	cpy := make(Fields, len(f))
	for k, v := range f {
		cpy[k] = v
	}
	return cpy
}

// Row is a row as the client last saw it. A confirmed row always carries
// the identifier the remote store assigned. A pending row carries the
// correlation token of its write and, once acknowledged, its identifier.
type Row struct {
	ID     string
	Token  string
	Status Status
	Fields Fields
}

// Pending reports whether the row is still waiting on a refresh.
func (r Row) Pending() bool {
	return r.Status == StatusPending
}

// cloneRows returns a deep copy of the rows so callers never share the
// mirror's memory.
func cloneRows(rows []Row) []Row {
	cpy := make([]Row, len(rows))
	for i, row := range rows {
		row.Fields = row.Fields.clone()
		cpy[i] = row
	}
	return cpy
}
