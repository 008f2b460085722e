// Package testutil provides a database/sql driver that emulates the single
// state table of the postgres snapshot store.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
)

var stubSeq atomic.Int64

// StubConn keeps bucket payloads in memory. Upserts issued inside a
// transaction become visible on Commit and are dropped on Rollback.
type StubConn struct {
	Execs      []string
	State      map[string][]byte
	RowsErr    error
	FailExec   bool
	FailBegin  bool
	FailUpsert bool
	FailCommit bool

	pending map[string][]byte
	inTx    bool
}

// NewStubDB registers a fresh driver and returns a sql.DB bound to it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{State: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	return db, conn
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements not supported")
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger. FailExec doubles as a connection failure.
func (c *StubConn) Ping(context.Context) error {
	if c.FailExec {
		return errors.New("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("begin fail")
	}
	c.inTx = true
	c.pending = make(map[string][]byte)
	return stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, errors.New("exec fail")
	}
	verb := statementVerb(query)
	switch verb {
	case "CREATE":
		return driver.RowsAffected(0), nil
	case "INSERT":
		if c.FailUpsert {
			return nil, errors.New("upsert fail")
		}
		bucket, payload, err := bucketArgs(args)
		if err != nil {
			return nil, err
		}
		if c.inTx {
			c.pending[bucket] = payload
		} else {
			c.State[bucket] = payload
		}
		return driver.RowsAffected(1), nil
	case "DELETE":
		bucket, _, err := bucketArgs(append(args, driver.NamedValue{Value: []byte(nil)}))
		if err != nil {
			return nil, err
		}
		delete(c.State, bucket)
		return driver.RowsAffected(1), nil
	default:
		return nil, fmt.Errorf("unsupported statement %q", verb)
	}
}

// QueryContext implements driver.QueryerContext. Rows are returned in bucket
// order.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if statementVerb(query) != "SELECT" {
		return nil, fmt.Errorf("unsupported query %q", query)
	}
	if c.FailExec {
		return nil, errors.New("query fail")
	}
	names := make([]string, 0, len(c.State))
	for name := range c.State {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := &stubRows{err: c.RowsErr}
	for _, name := range names {
		rows.rows = append(rows.rows, []driver.Value{name, c.State[name]})
	}
	return rows, nil
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	c := t.conn
	c.inTx = false
	defer func() { c.pending = nil }()
	if c.FailCommit {
		return errors.New("commit fail")
	}
	for bucket, payload := range c.pending {
		c.State[bucket] = payload
	}
	return nil
}

func (t stubTx) Rollback() error {
	t.conn.inTx = false
	t.conn.pending = nil
	return nil
}

type stubRows struct {
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func statementVerb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func bucketArgs(args []driver.NamedValue) (string, []byte, error) {
	if len(args) < 2 {
		return "", nil, fmt.Errorf("expected bucket and payload args, got %d", len(args))
	}
	bucket, ok := args[0].Value.(string)
	if !ok {
		return "", nil, fmt.Errorf("bucket arg has type %T", args[0].Value)
	}
	payload, _ := args[1].Value.([]byte)
	return bucket, append([]byte(nil), payload...), nil
}
