package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	t.Setenv("BOARDCORE_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil || store.Driver() != DriverMemory {
		t.Fatalf("memory driver: %v %v", store, err)
	}

	t.Setenv("BOARDCORE_BLOB_DRIVER", "")
	t.Setenv("BOARDCORE_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(ctx)
	if err != nil || store.Driver() != DriverFilesystem {
		t.Fatalf("default driver: %v %v", store, err)
	}

	t.Setenv("BOARDCORE_BLOB_DRIVER", "s3")
	t.Setenv("BOARDCORE_BLOB_S3_BUCKET", "")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("expected missing bucket error")
	}

	t.Setenv("BOARDCORE_BLOB_DRIVER", "tape")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestWrappersShareContract(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, store := range []Store{NewMemory(), fsStore, NewMockS3ForTests()} {
		t.Run(string(store.Driver()), func(t *testing.T) {
			meta := map[string]string{"cursor": "7841317"}
			if _, err := store.Put(ctx, "snapshots/a.json.zst", bytes.NewReader([]byte("payload")), PutOptions{ContentType: "application/zstd", Metadata: meta}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "snapshots/a.json.zst", bytes.NewReader(nil), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			info, rc, err := store.Get(ctx, "snapshots/a.json.zst")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			body, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(body) != "payload" || info.Metadata["cursor"] != "7841317" {
				t.Fatalf("unexpected blob %q %+v", body, info)
			}
			if _, err := store.Head(ctx, "snapshots/missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			list, err := store.List(ctx, "snapshots/")
			if err != nil || len(list) != 1 {
				t.Fatalf("list: %v %+v", err, list)
			}
			if ok, err := store.Delete(ctx, "snapshots/a.json.zst"); err != nil || !ok {
				t.Fatalf("delete: %v %v", ok, err)
			}
			if ok, _ := store.Delete(ctx, "snapshots/a.json.zst"); ok {
				t.Fatalf("second delete should report missing")
			}
		})
	}
}
