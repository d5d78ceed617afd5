package rowstore_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ardanlabs/todochain/foundation/rowstore"
	"github.com/ardanlabs/todochain/foundation/rowstore/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const table = "todo"

// =============================================================================

func Test_Scenario(t *testing.T) {
	t.Log("Given the need to list, insert and remove todos through a client.")
	{
		ctx := context.Background()
		client, _ := connected(t, rowstore.PullThenRefresh)

		rows, err := client.Refresh(ctx, table)
		if err != nil || len(rows) != 0 {
			t.Fatalf("\t%s\tShould start with an empty table: %v %v", failed, rows, err)
		}
		t.Logf("\t%s\tShould start with an empty table.", success)

		id, err := client.Insert(ctx, table, rowstore.Fields{"task": "buy milk"})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to insert a row: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to insert a row.", success)

		if mirror := client.Mirror(table); len(mirror) != 0 {
			t.Fatalf("\t%s\tShould not touch the mirror before a refresh: %v", failed, mirror)
		}
		t.Logf("\t%s\tShould not touch the mirror before a refresh.", success)

		rows, err = client.Refresh(ctx, table)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to refresh: %v", failed, err)
		}
		if len(rows) != 1 || rows[0].ID != id || rows[0].Fields["task"] != "buy milk" || rows[0].Pending() {
			t.Fatalf("\t%s\tShould see exactly the inserted row: %+v", failed, rows)
		}
		t.Logf("\t%s\tShould see exactly the inserted row.", success)

		if err := client.Remove(ctx, table, id); err != nil {
			t.Fatalf("\t%s\tShould be able to remove the row: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to remove the row.", success)

		rows, err = client.Refresh(ctx, table)
		if err != nil || len(rows) != 0 {
			t.Fatalf("\t%s\tShould see an empty table after the remove: %v %v", failed, rows, err)
		}
		t.Logf("\t%s\tShould see an empty table after the remove.", success)
	}
}

func Test_RefreshExact(t *testing.T) {
	t.Log("Given the need for a refresh to mirror the table exactly.")
	{
		ctx := context.Background()
		client, store := connected(t, rowstore.PullThenRefresh)

		a := store.Seed(table, rowstore.Fields{"task": "a"})
		b := store.Seed(table, rowstore.Fields{"task": "b", "done": "false"})
		store.Seed("other", rowstore.Fields{"task": "elsewhere"})

		if _, err := client.Refresh(ctx, table); err != nil {
			t.Fatalf("\t%s\tShould be able to refresh: %v", failed, err)
		}

		store.Drop(table, a)
		c := store.Seed(table, rowstore.Fields{"task": "c"})

		rows, err := client.Refresh(ctx, table)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to refresh again: %v", failed, err)
		}

		got := make(map[string]rowstore.Fields)
		for _, row := range rows {
			got[row.ID] = row.Fields
		}

		if len(rows) != 2 || got[b]["done"] != "false" || got[c]["task"] != "c" {
			t.Fatalf("\t%s\tShould hold only rows b and c: %+v", failed, rows)
		}
		if _, exists := got[a]; exists {
			t.Fatalf("\t%s\tShould not keep the dropped row.", failed)
		}
		t.Logf("\t%s\tShould hold exactly the rows in the table.", success)

		rows[0].Fields["task"] = "changed"
		if client.Mirror(table)[0].Fields["task"] == "changed" {
			t.Fatalf("\t%s\tShould not share mirror memory with the caller.", failed)
		}
		t.Logf("\t%s\tShould not share mirror memory with the caller.", success)
	}
}

func Test_RefreshFailure(t *testing.T) {
	t.Log("Given the need to leave the mirror alone when a refresh fails.")
	{
		ctx := context.Background()
		client, store := connected(t, rowstore.PullThenRefresh)

		for i := range 4 {
			store.Seed(table, rowstore.Fields{"task": fmt.Sprintf("task %d", i)})
		}

		before, err := client.Refresh(ctx, table)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to refresh: %v", failed, err)
		}

		store.Seed(table, rowstore.Fields{"task": "new"})

		// Fail the third read of the next refresh.
		boom := errors.New("revert")
		store.ReadErr = func(tbl string, id string, call int) error {
			if call == len(before)+3 {
				return boom
			}
			return nil
		}

		_, err = client.Refresh(ctx, table)
		if !rowstore.IsRemoteReadError(err) || !errors.Is(err, boom) {
			t.Fatalf("\t%s\tShould get a remote read error: %v", failed, err)
		}
		t.Logf("\t%s\tShould get a remote read error.", success)

		after := client.Mirror(table)
		if len(after) != len(before) {
			t.Fatalf("\t%s\tShould keep the mirror from the last refresh: %d rows, exp %d", failed, len(after), len(before))
		}
		for i := range before {
			if after[i].ID != before[i].ID || after[i].Fields["task"] != before[i].Fields["task"] {
				t.Fatalf("\t%s\tShould keep the mirror from the last refresh: %+v", failed, after)
			}
		}
		t.Logf("\t%s\tShould keep the mirror from the last refresh.", success)

		if client.State() != rowstore.StateConnected {
			t.Fatalf("\t%s\tShould stay connected after a non fatal failure.", failed)
		}
		t.Logf("\t%s\tShould stay connected after a non fatal failure.", success)
	}
}

func Test_NotReady(t *testing.T) {
	t.Log("Given the need to reject operations without a session.")
	{
		ctx := context.Background()
		store := memory.New(big.NewInt(1))
		client := rowstore.New(rowstore.Config{Connector: store})

		ops := map[string]func() error{
			"refresh": func() error { _, err := client.Refresh(ctx, table); return err },
			"insert":  func() error { _, err := client.Insert(ctx, table, rowstore.Fields{"task": "x"}); return err },
			"remove":  func() error { return client.Remove(ctx, table, "1") },
			"balance": func() error { _, err := client.Balance(ctx); return err },
		}

		for name, op := range ops {
			if err := op(); !rowstore.IsNotReady(err) {
				t.Fatalf("\t%s\tShould reject %s before connect: %v", failed, name, err)
			}
		}
		t.Logf("\t%s\tShould reject every operation before connect.", success)

		// Hold the connect open to look at the connecting state.
		store.ConnectGate = make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- client.Connect(ctx, "memory", rowstore.Credentials{})
		}()

		for client.State() != rowstore.StateConnecting {
			time.Sleep(time.Millisecond)
		}

		for name, op := range ops {
			if err := op(); !rowstore.IsNotReady(err) {
				t.Fatalf("\t%s\tShould reject %s while connecting: %v", failed, name, err)
			}
		}
		t.Logf("\t%s\tShould reject every operation while connecting.", success)

		if err := client.Connect(ctx, "memory", rowstore.Credentials{}); !rowstore.IsNotReady(err) {
			t.Fatalf("\t%s\tShould reject a second connect while one is pending: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a second connect while one is pending.", success)

		close(store.ConnectGate)
		if err := <-done; err != nil {
			t.Fatalf("\t%s\tShould be able to finish connecting: %v", failed, err)
		}

		if mirror := client.Mirror(table); len(mirror) != 0 {
			t.Fatalf("\t%s\tShould still have an empty mirror: %v", failed, mirror)
		}
		t.Logf("\t%s\tShould still have an empty mirror.", success)
	}
}

func Test_ConnectFailure(t *testing.T) {
	t.Log("Given the need to report a failed connect.")
	{
		store := memory.New(nil)
		store.ConnectErr = errors.New("wallet refused")
		client := rowstore.New(rowstore.Config{Connector: store})

		err := client.Connect(context.Background(), "memory", rowstore.Credentials{})
		if !rowstore.IsConnectionError(err) {
			t.Fatalf("\t%s\tShould get a connection error: %v", failed, err)
		}
		t.Logf("\t%s\tShould get a connection error.", success)

		if client.State() != rowstore.StateDisconnected {
			t.Fatalf("\t%s\tShould be disconnected: %s", failed, client.State())
		}
		t.Logf("\t%s\tShould be disconnected.", success)
	}
}

func Test_SessionLost(t *testing.T) {
	t.Log("Given the need to drop a session after a fatal failure.")
	{
		ctx := context.Background()
		client, store := connected(t, rowstore.PullThenRefresh)
		store.Seed(table, rowstore.Fields{"task": "a"})

		if _, err := client.Refresh(ctx, table); err != nil {
			t.Fatalf("\t%s\tShould be able to refresh: %v", failed, err)
		}

		store.ListErr = fmt.Errorf("%w: connection refused", rowstore.ErrSessionLost)

		if _, err := client.Refresh(ctx, table); !errors.Is(err, rowstore.ErrSessionLost) {
			t.Fatalf("\t%s\tShould see the session loss: %v", failed, err)
		}

		if client.State() != rowstore.StateDisconnected {
			t.Fatalf("\t%s\tShould be disconnected: %s", failed, client.State())
		}
		t.Logf("\t%s\tShould be disconnected.", success)

		if len(client.Mirror(table)) != 1 {
			t.Fatalf("\t%s\tShould keep the last known mirror.", failed)
		}
		t.Logf("\t%s\tShould keep the last known mirror.", success)

		if _, err := client.Insert(ctx, table, rowstore.Fields{"task": "b"}); !rowstore.IsNotReady(err) {
			t.Fatalf("\t%s\tShould need a new connect: %v", failed, err)
		}
		t.Logf("\t%s\tShould need a new connect.", success)
	}
}

func Test_BalanceAdvisory(t *testing.T) {
	t.Log("Given the need for balance failures to never affect table operations.")
	{
		ctx := context.Background()
		client, store := connected(t, rowstore.PullThenRefresh)

		bal, err := client.Balance(ctx)
		if err != nil || bal.Cmp(big.NewInt(1_000)) != 0 {
			t.Fatalf("\t%s\tShould read the balance: %v %v", failed, bal, err)
		}
		t.Logf("\t%s\tShould read the balance.", success)

		id, err := client.Insert(ctx, table, rowstore.Fields{"task": "a"})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to insert: %v", failed, err)
		}
		if _, err := client.Refresh(ctx, table); err != nil {
			t.Fatalf("\t%s\tShould be able to refresh: %v", failed, err)
		}

		store.BalanceErr = fmt.Errorf("%w: relay hub unreachable", rowstore.ErrSessionLost)
		if _, err := client.Balance(ctx); !rowstore.IsRemoteReadError(err) {
			t.Fatalf("\t%s\tShould get a remote read error: %v", failed, err)
		}
		t.Logf("\t%s\tShould get a remote read error.", success)

		if client.State() != rowstore.StateConnected {
			t.Fatalf("\t%s\tShould still be connected.", failed)
		}
		if mirror := client.Mirror(table); len(mirror) != 1 || mirror[0].ID != id {
			t.Fatalf("\t%s\tShould keep the mirror: %+v", failed, mirror)
		}
		if _, err := client.Insert(ctx, table, rowstore.Fields{"task": "b"}); err != nil {
			t.Fatalf("\t%s\tShould still be able to insert: %v", failed, err)
		}
		if rows, err := client.Refresh(ctx, table); err != nil || len(rows) != 2 {
			t.Fatalf("\t%s\tShould still be able to refresh: %v %v", failed, rows, err)
		}
		t.Logf("\t%s\tShould keep working after the balance failure.", success)
	}
}

func Test_OptimisticAppend(t *testing.T) {
	t.Log("Given the need to show a pending row while its write is in flight.")
	{
		ctx := context.Background()
		store := memory.New(nil)

		spy := &spyConnector{inner: store}
		client := rowstore.New(rowstore.Config{Connector: spy, Policy: rowstore.OptimisticAppend})
		spy.client = client

		if err := client.Connect(ctx, "memory", rowstore.Credentials{}); err != nil {
			t.Fatalf("\t%s\tShould be able to connect: %v", failed, err)
		}

		id, err := client.Insert(ctx, table, rowstore.Fields{"task": "buy milk"})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to insert: %v", failed, err)
		}

		if len(spy.seen) != 1 || !spy.seen[0].Pending() || spy.seen[0].ID != "" || spy.seen[0].Token == "" {
			t.Fatalf("\t%s\tShould see a pending row before the ack: %+v", failed, spy.seen)
		}
		t.Logf("\t%s\tShould see a pending row before the ack.", success)

		mirror := client.Mirror(table)
		if len(mirror) != 1 || !mirror[0].Pending() || mirror[0].ID != id || mirror[0].Token != spy.seen[0].Token {
			t.Fatalf("\t%s\tShould record the id on the pending row: %+v", failed, mirror)
		}
		t.Logf("\t%s\tShould record the id on the pending row.", success)

		rows, err := client.Refresh(ctx, table)
		if err != nil || len(rows) != 1 || rows[0].Pending() || rows[0].ID != id {
			t.Fatalf("\t%s\tShould replace the pending row on refresh: %+v %v", failed, rows, err)
		}
		t.Logf("\t%s\tShould replace the pending row on refresh.", success)

		store.WriteErr = errors.New("out of gas")
		if _, err := client.Insert(ctx, table, rowstore.Fields{"task": "walk dog"}); !rowstore.IsRemoteWriteError(err) {
			t.Fatalf("\t%s\tShould get a remote write error: %v", failed, err)
		}

		if len(spy.seen) != 2 {
			t.Fatalf("\t%s\tShould have shown the failed write as pending: %+v", failed, spy.seen)
		}

		mirror = client.Mirror(table)
		if len(mirror) != 1 || mirror[0].ID != id || mirror[0].Pending() {
			t.Fatalf("\t%s\tShould roll back the pending row: %+v", failed, mirror)
		}
		t.Logf("\t%s\tShould roll back the pending row.", success)
	}
}

func Test_InsertNoFields(t *testing.T) {
	t.Log("Given the need to reject an insert without fields locally.")
	{
		ctx := context.Background()
		client, store := connected(t, rowstore.OptimisticAppend)
		store.WriteErr = fmt.Errorf("%w: should not be called", rowstore.ErrSessionLost)

		_, err := client.Insert(ctx, table, rowstore.Fields{})
		if !errors.Is(err, rowstore.ErrNoFields) {
			t.Fatalf("\t%s\tShould get ErrNoFields: %v", failed, err)
		}
		t.Logf("\t%s\tShould get ErrNoFields.", success)

		if rowstore.IsRemoteWriteError(err) {
			t.Fatalf("\t%s\tShould not report a remote write failure: %v", failed, err)
		}
		t.Logf("\t%s\tShould not report a remote write failure.", success)

		if client.State() != rowstore.StateConnected {
			t.Fatalf("\t%s\tShould stay connected: %s", failed, client.State())
		}
		t.Logf("\t%s\tShould stay connected.", success)

		if mirror := client.Mirror(table); len(mirror) != 0 {
			t.Fatalf("\t%s\tShould leave the mirror untouched: %+v", failed, mirror)
		}
		t.Logf("\t%s\tShould leave the mirror untouched.", success)
	}
}

func Test_Reconnect(t *testing.T) {
	t.Log("Given the need to replace a working session only with a working one.")
	{
		ctx := context.Background()
		store := memory.New(big.NewInt(1_000))
		store.Seed(table, rowstore.Fields{"task": "a"})
		conns := closeConnector{inner: store}

		client := rowstore.New(rowstore.Config{
			Connector: &conns,
			EvHandler: func(v string, args ...any) { t.Logf(v, args...) },
		})

		if err := client.Connect(ctx, "memory", rowstore.Credentials{}); err != nil {
			t.Fatalf("\t%s\tShould be able to connect: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to connect.", success)

		store.ConnectErr = errors.New("wallet refused")

		if err := client.Connect(ctx, "memory", rowstore.Credentials{}); !rowstore.IsConnectionError(err) {
			t.Fatalf("\t%s\tShould get a connection error on the second connect: %v", failed, err)
		}
		t.Logf("\t%s\tShould get a connection error on the second connect.", success)

		if client.State() != rowstore.StateConnected {
			t.Fatalf("\t%s\tShould still be connected: %s", failed, client.State())
		}
		t.Logf("\t%s\tShould still be connected.", success)

		if conns.opened[0].closed {
			t.Fatalf("\t%s\tShould not close the working session.", failed)
		}
		t.Logf("\t%s\tShould not close the working session.", success)

		if rows, err := client.Refresh(ctx, table); err != nil || len(rows) != 1 {
			t.Fatalf("\t%s\tShould still be able to refresh: %v %v", failed, rows, err)
		}
		t.Logf("\t%s\tShould still be able to refresh.", success)

		store.ConnectErr = nil

		if err := client.Connect(ctx, "memory", rowstore.Credentials{}); err != nil {
			t.Fatalf("\t%s\tShould be able to connect again: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to connect again.", success)

		if len(conns.opened) != 2 || !conns.opened[0].closed || conns.opened[1].closed {
			t.Fatalf("\t%s\tShould close only the replaced session.", failed)
		}
		t.Logf("\t%s\tShould close only the replaced session.", success)
	}
}

func Test_InsertPolicy(t *testing.T) {
	type table struct {
		name   string
		policy rowstore.InsertPolicy
		err    bool
	}

	tt := []table{
		{name: "pull", policy: rowstore.PullThenRefresh},
		{name: "", policy: rowstore.PullThenRefresh},
		{name: "optimistic", policy: rowstore.OptimisticAppend},
		{name: "eager", err: true},
	}

	t.Log("Given the need to parse insert policies from configuration.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling policy %q.", testID, tst.name)
				{
					policy, err := rowstore.ParseInsertPolicy(tst.name)
					if (err != nil) != tst.err {
						t.Fatalf("\t%s\tTest %d:\tShould parse the policy: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould parse the policy.", success, testID)

					if err == nil && policy != tst.policy {
						t.Fatalf("\t%s\tTest %d:\tShould get back %s, got %s", failed, testID, tst.policy, policy)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the expected policy.", success, testID)
				}
			}

			t.Run(fmt.Sprintf("policy-%d", testID), f)
		}
	}
}

// =============================================================================

func connected(t *testing.T, policy rowstore.InsertPolicy) (*rowstore.Client, *memory.Store) {
	store := memory.New(big.NewInt(1_000))

	client := rowstore.New(rowstore.Config{
		Connector: store,
		Policy:    policy,
		EvHandler: func(v string, args ...any) { t.Logf(v, args...) },
	})

	if err := client.Connect(context.Background(), "memory", rowstore.Credentials{}); err != nil {
		t.Fatalf("Should be able to connect: %v", err)
	}

	return client, store
}

// spyConnector records the mirror at the moment each write hands out its
// correlation token.
type spyConnector struct {
	inner  *memory.Store
	client *rowstore.Client
	seen   []rowstore.Row
}

func (s *spyConnector) Connect(ctx context.Context, endpoint string, cred rowstore.Credentials) (rowstore.Conn, error) {
	conn, err := s.inner.Connect(ctx, endpoint, cred)
	if err != nil {
		return nil, err
	}
	return &spyConn{Conn: conn, spy: s}, nil
}

type spyConn struct {
	rowstore.Conn
	spy *spyConnector
}

func (c *spyConn) WriteRow(ctx context.Context, tbl string, columns []string, values []string, pending func(token string)) (string, error) {
	return c.Conn.WriteRow(ctx, tbl, columns, values, func(token string) {
		pending(token)
		mirror := c.spy.client.Mirror(tbl)
		c.spy.seen = append(c.spy.seen, mirror[len(mirror)-1])
	})
}

// closeConnector records every session it hands out and whether it was
// closed.
type closeConnector struct {
	inner  *memory.Store
	opened []*closeConn
}

func (cc *closeConnector) Connect(ctx context.Context, endpoint string, cred rowstore.Credentials) (rowstore.Conn, error) {
	conn, err := cc.inner.Connect(ctx, endpoint, cred)
	if err != nil {
		return nil, err
	}

	c := closeConn{Conn: conn}
	cc.opened = append(cc.opened, &c)
	return &c, nil
}

type closeConn struct {
	rowstore.Conn
	closed bool
}

func (c *closeConn) Close() error {
	c.closed = true
	return c.Conn.Close()
}
