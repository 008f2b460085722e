package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"boardcore/internal/blob"
	"boardcore/internal/infra/persistence/memory"
)

func TestCheckpointArchivesAndPersists(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	snapshots := memory.NewStore()
	svc := newTestService(WithSnapshotStore(snapshots), WithArchiver(NewArchiver(blobs, nil)))
	if _, err := svc.SubmitUpdate(ctx, issueUpdate("1", 1, "")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	saves := snapshots.Saves()

	info, err := svc.Checkpoint(ctx)
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if snapshots.Saves() != saves+1 {
		t.Fatalf("checkpoint did not persist")
	}
	cursor := svc.Store().ChangeCursor()
	if !strings.HasPrefix(info.Key, "snapshots/"+cursor+"-") || !strings.HasSuffix(info.Key, ".json.zst") {
		t.Fatalf("unexpected archive key %s", info.Key)
	}
	if info.ContentType != "application/zstd" || len(info.Metadata[MetaDigest]) != 64 || info.Metadata[MetaCursor] != cursor {
		t.Fatalf("unexpected archive info %+v", info)
	}

	archives, err := svc.Archives(ctx)
	if err != nil || len(archives) != 1 || archives[0].Key != info.Key {
		t.Fatalf("unexpected archive list %+v %v", archives, err)
	}

	if _, err := svc.RemoveIssue(ctx, "1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.RestoreArchive(ctx, info.Key); err != nil {
		t.Fatalf("restore archive: %v", err)
	}
	if _, ok := svc.Store().IssueByID("1"); !ok {
		t.Fatalf("archive did not restore issue")
	}
}

func TestArchiveRestoreVerifiesDigest(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	a := NewArchiver(blobs, nil)
	s := newTestStore()
	mustSubmit(t, s, issueUpdate("1", 1, ""))

	payload := archiveEncoder.EncodeAll([]byte(`{"issues":[]}`), nil)
	if _, err := blobs.Put(ctx, "snapshots/tampered.json.zst", bytes.NewReader(payload), blob.PutOptions{
		Metadata: map[string]string{MetaDigest: strings.Repeat("0", 64)},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := a.Restore(ctx, s, "snapshots/tampered.json.zst"); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("tampered archive modified the store")
	}

	if _, err := blobs.Put(ctx, "snapshots/garbage.json.zst", strings.NewReader("not zstd"), blob.PutOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := a.Restore(ctx, s, "snapshots/garbage.json.zst"); err == nil {
		t.Fatalf("expected decompression error")
	}
	if err := a.Restore(ctx, s, "snapshots/missing.json.zst"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	list, err := a.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 archives, got %+v %v", list, err)
	}
}
