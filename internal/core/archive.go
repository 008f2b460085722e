package core

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"boardcore/internal/blob"
)

const (
	archivePrefix      = "snapshots/"
	archiveSuffix      = ".json.zst"
	archiveContentType = "application/zstd"

	// Metadata keys written on every archive.
	MetaDigest = "blake3"
	MetaCursor = "cursor"
)

// ErrDigestMismatch is returned when an archive's content does not match the
// digest recorded in its metadata.
var ErrDigestMismatch = errors.New("archive digest mismatch")

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
var (
	archiveEncoder *zstd.Encoder
	archiveDecoder *zstd.Decoder
)

func init() {
	var err error
	archiveEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("core: zstd encoder initialization failed: " + err.Error())
	}
	archiveDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("core: zstd decoder initialization failed: " + err.Error())
	}
}

// Archiver writes compressed, content-addressed snapshots of a Store to a
// blob store and restores them.
type Archiver struct {
	blobs  blob.Store
	logger Logger
}

// NewArchiver builds an archiver on top of blobs. A nil logger discards.
func NewArchiver(blobs blob.Store, logger Logger) *Archiver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Archiver{blobs: blobs, logger: logger}
}

// Put serializes store, compresses the snapshot and writes it under
// snapshots/<cursor>-<uuid>.json.zst.
func (a *Archiver) Put(ctx context.Context, store *Store) (blob.Info, error) {
	cursor := store.ChangeCursor()
	data, err := store.Serialize(ctx)
	if err != nil {
		return blob.Info{}, fmt.Errorf("serialize: %w", err)
	}
	digest := blake3.Sum256(data)
	key := archivePrefix + cursor + "-" + uuid.NewString() + archiveSuffix
	info, err := a.blobs.Put(ctx, key, bytes.NewReader(archiveEncoder.EncodeAll(data, nil)), blob.PutOptions{
		ContentType: archiveContentType,
		Metadata: map[string]string{
			MetaDigest: hex.EncodeToString(digest[:]),
			MetaCursor: cursor,
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("put archive %s: %w", key, err)
	}
	a.logger.Info("snapshot archived", "key", key, "bytes", len(data), "compressed", info.Size)
	return info, nil
}

// Restore reads the archive at key, checks its digest and restores store
// from it.
func (a *Archiver) Restore(ctx context.Context, store *Store, key string) error {
	info, rc, err := a.blobs.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get archive %s: %w", key, err)
	}
	compressed, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return fmt.Errorf("read archive %s: %w", key, err)
	}
	data, err := archiveDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("decompress archive %s: %w", key, err)
	}
	digest := blake3.Sum256(data)
	if want := info.Metadata[MetaDigest]; want != "" && want != hex.EncodeToString(digest[:]) {
		return fmt.Errorf("archive %s: %w", key, ErrDigestMismatch)
	}
	if err := store.Restore(ctx, data); err != nil {
		return err
	}
	a.logger.Info("snapshot restored from archive", "key", key, "cursor", info.Metadata[MetaCursor])
	return nil
}

// List returns the stored archives, oldest first.
func (a *Archiver) List(ctx context.Context) ([]blob.Info, error) {
	infos, err := a.blobs.List(ctx, archivePrefix)
	if err != nil {
		return nil, err
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, archiveSuffix) {
			out = append(out, info)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastModified.Before(out[j].LastModified) })
	return out, nil
}
