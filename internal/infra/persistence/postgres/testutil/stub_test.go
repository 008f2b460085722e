package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

const upsert = "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"

func TestStubUpsertsAndQueriesBuckets(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	for _, payload := range []string{`[]`, `[{"id":"1"}]`} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "issues"}, {Value: []byte(payload)}}); err != nil {
			t.Fatalf("ExecContext upsert: %v", err)
		}
	}
	if len(conn.State) != 1 {
		t.Fatalf("expected one bucket after upsert, got %v", conn.State)
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "issues" || string(dest[1].([]byte)) != `[{"id":"1"}]` {
		t.Fatalf("unexpected row values: %v", dest)
	}

	if _, err := conn.ExecContext(ctx, "DELETE FROM state WHERE bucket=$1", []driver.NamedValue{{Value: "issues"}}); err != nil {
		t.Fatalf("ExecContext delete: %v", err)
	}
	if len(conn.State) != 0 {
		t.Fatalf("expected delete to clear bucket")
	}
}

func TestStubTransactionsStageWrites(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "links"}, {Value: []byte(`[]`)}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, ok := conn.State["links"]; ok {
		t.Fatalf("write visible before commit")
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(conn.State) != 0 {
		t.Fatalf("rollback kept writes: %v", conn.State)
	}

	tx, _ = conn.Begin()
	_, _ = conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "links"}, {Value: []byte(`[]`)}})
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if string(conn.State["links"]) != `[]` {
		t.Fatalf("commit lost write: %v", conn.State)
	}
}

func TestStubFailureSwitches(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailExec = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	if _, err := conn.ExecContext(ctx, "CREATE TABLE x", nil); err == nil {
		t.Fatalf("expected exec failure")
	}
	conn.FailExec = false
	conn.FailUpsert = true
	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "issues"}, {Value: []byte(`[]`)}}); err == nil {
		t.Fatalf("expected upsert failure")
	}
	conn.FailUpsert = false
	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: 7}, {Value: []byte(`[]`)}}); err == nil {
		t.Fatalf("expected bucket type failure")
	}
	conn.FailBegin = true
	if _, err := conn.Begin(); err == nil {
		t.Fatalf("expected begin failure")
	}
	conn.FailBegin = false
	conn.FailCommit = true
	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Commit(); err == nil {
		t.Fatalf("expected commit failure")
	}
	if _, err := conn.QueryContext(ctx, "UPDATE state", nil); err == nil {
		t.Fatalf("expected failure for non-select query")
	}
	if _, err := conn.ExecContext(ctx, "TRUNCATE state", nil); err == nil {
		t.Fatalf("expected failure for unsupported statement")
	}
}
