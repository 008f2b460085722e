package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"boardcore/pkg/domain"
)

const updates = `{"id":"2","key":"acme/app#2","number":2,"title":"API","repository":{"name":"app","owner":{"login":"acme"}}}
{"id":"1","key":"acme/app#1","number":1,"title":"UI","body":"depends on #2","repository":{"name":"app","owner":{"login":"acme"}},"labels":[{"name":"ready"}]}
`

// setupEnv points storage and blobs at a temp dir so invocations share state.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BOARDCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("BOARDCORE_SQLITE_PATH", filepath.Join(dir, "board.db"))
	t.Setenv("BOARDCORE_BLOB_DRIVER", "fs")
	t.Setenv("BOARDCORE_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("BOARDCORE_COLUMNS_FILE", "")
	return dir
}

func invoke(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func mustInvoke(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := invoke(t, stdin, args...)
	if err != nil {
		t.Fatalf("boardcore %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestApplyPersistsAcrossInvocations(t *testing.T) {
	setupEnv(t)
	out := mustInvoke(t, updates, "apply", "-")
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 || !strings.HasPrefix(lines[1], "acme/app#1\tReady\t") {
		t.Fatalf("unexpected apply output %q", out)
	}

	out = mustInvoke(t, "", "board")
	if !strings.Contains(out, "Ready (1)") || !strings.Contains(out, "Inbox (1)") || !strings.Contains(out, "acme/app#1") {
		t.Fatalf("unexpected board %q", out)
	}

	out = mustInvoke(t, "", "board", "--json")
	var board map[string][]domain.BoardIssue
	if err := json.Unmarshal([]byte(out), &board); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	if len(board["Ready"]) != 1 || len(board["Ready"][0].Links) != 1 {
		t.Fatalf("unexpected json board %+v", board)
	}
}

func TestMoveRemoveAndChanges(t *testing.T) {
	setupEnv(t)
	mustInvoke(t, updates, "apply", "-")

	var feed changesOutput
	if err := json.Unmarshal([]byte(mustInvoke(t, "", "changes")), &feed); err != nil {
		t.Fatalf("decode changes: %v", err)
	}
	if len(feed.Changes) == 0 || feed.Cursor == "" {
		t.Fatalf("unexpected feed %+v", feed)
	}

	out := mustInvoke(t, "", "move", "2", "--column", "Backlog")
	if !strings.HasPrefix(out, "acme/app#2\tBacklog\t") {
		t.Fatalf("unexpected move output %q", out)
	}

	// the feed survives between invocations through the snapshot store
	var since changesOutput
	if err := json.Unmarshal([]byte(mustInvoke(t, "", "changes", "--since", feed.Cursor)), &since); err != nil {
		t.Fatalf("decode changes: %v", err)
	}
	if len(since.Changes) != 1 || since.Cursor == feed.Cursor {
		t.Fatalf("unexpected feed after move %+v", since)
	}
	if got := since.Changes[0]; got.Type != domain.ChangeUpdate || got.Issue.Issue.ID != "2" || got.Issue.Issue.Column != "Backlog" {
		t.Fatalf("unexpected change %+v", got)
	}

	out = mustInvoke(t, "", "remove", "2")
	if strings.TrimSpace(out) != "removed 2" {
		t.Fatalf("unexpected remove output %q", out)
	}
	if _, err := invoke(t, "", "remove", "2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := invoke(t, "", "move", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSnapshotExportImport(t *testing.T) {
	dir := setupEnv(t)
	mustInvoke(t, updates, "apply", "-")
	path := filepath.Join(dir, "snap.json")
	mustInvoke(t, "", "snapshot", "export", path)
	mustInvoke(t, "", "remove", "1")

	out := mustInvoke(t, "", "snapshot", "import", path)
	if strings.TrimSpace(out) != "imported 2 issues" {
		t.Fatalf("unexpected import output %q", out)
	}
	if out := mustInvoke(t, "", "snapshot", "export"); !strings.Contains(out, `"acme/app#1"`) {
		t.Fatalf("export missing issue: %s", out)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("[]"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := invoke(t, "", "snapshot", "import", bad); !errors.Is(err, domain.ErrMalformedSnapshot) {
		t.Fatalf("expected malformed snapshot, got %v", err)
	}
}

func TestArchivePutListRestore(t *testing.T) {
	setupEnv(t)
	mustInvoke(t, updates, "apply", "-")
	key := strings.TrimSpace(mustInvoke(t, "", "archive", "put"))
	if !strings.HasPrefix(key, "snapshots/") {
		t.Fatalf("unexpected key %q", key)
	}
	if out := mustInvoke(t, "", "archive", "list"); !strings.Contains(out, key) {
		t.Fatalf("archive missing from list: %q", out)
	}
	mustInvoke(t, "", "remove", "1")
	mustInvoke(t, "", "remove", "2")
	out := mustInvoke(t, "", "archive", "restore", key)
	if strings.TrimSpace(out) != "restored 2 issues" {
		t.Fatalf("unexpected restore output %q", out)
	}
}

func TestInvalidInvocations(t *testing.T) {
	setupEnv(t)
	if _, err := invoke(t, "{", "apply", "-"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := invoke(t, `{"id":"x"}`, "apply", "-"); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected missing field, got %v", err)
	}
	if _, err := invoke(t, "", "board", "--log-level", "loud"); err == nil {
		t.Fatalf("expected invalid log level error")
	}
	t.Setenv("BOARDCORE_STORAGE_DRIVER", "bogus")
	if _, err := invoke(t, "", "board"); err == nil {
		t.Fatalf("expected storage driver error")
	}
}
