package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"boardcore/internal/infra/persistence/postgres/testutil"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Fatalf("unexpected driver %s", driverName)
		}
		return db, nil
	})
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreCreatesStateTable(t *testing.T) {
	store, conn := openStub(t)
	if store.DB() == nil {
		t.Fatalf("expected db handle")
	}
	if len(conn.Execs) == 0 || !strings.Contains(conn.Execs[0], "CREATE TABLE IF NOT EXISTS state") {
		t.Fatalf("expected state table DDL, got %v", conn.Execs)
	}
}

func TestSaveAndLoadBuckets(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	if err := store.SaveBuckets(ctx, map[string][]byte{"issues": []byte(`[]`), "links": []byte(`[]`)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveBuckets(ctx, map[string][]byte{"issues": []byte(`[{"id":"1"}]`)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(conn.State) != 2 {
		t.Fatalf("expected upserts to keep one row per bucket, got %v", conn.State)
	}
	got, err := store.LoadBuckets(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got["issues"]) != `[{"id":"1"}]` || string(got["links"]) != `[]` {
		t.Fatalf("unexpected buckets %q", got)
	}
}

func TestLoadSkipsEmptyPayloadAndReportsRowErrors(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	conn.State["issues"] = []byte(`[]`)
	conn.State["empty"] = []byte{}
	got, err := store.LoadBuckets(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("unexpected load %q %v", got, err)
	}
	conn.RowsErr = errors.New("boom")
	if _, err := store.LoadBuckets(ctx); err == nil || !strings.Contains(err.Error(), "iterate state") {
		t.Fatalf("expected iterate error, got %v", err)
	}
}

func TestSaveFailures(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)

	conn.FailBegin = true
	if err := store.SaveBuckets(ctx, map[string][]byte{"issues": []byte(`[]`)}); err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin failure, got %v", err)
	}
	conn.FailBegin = false

	conn.FailUpsert = true
	if err := store.SaveBuckets(ctx, map[string][]byte{"issues": []byte(`[]`)}); err == nil || !strings.Contains(err.Error(), "upsert issues") {
		t.Fatalf("expected upsert failure, got %v", err)
	}
	conn.FailUpsert = false
	if _, ok := conn.State["issues"]; ok {
		t.Fatalf("failed upsert must roll back")
	}

	conn.FailCommit = true
	if err := store.SaveBuckets(ctx, map[string][]byte{"issues": []byte(`[]`)}); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit failure, got %v", err)
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil {
		t.Fatalf("expected ping failure")
	}
}
