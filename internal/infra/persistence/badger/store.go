// Package badger persists snapshot buckets in an embedded BadgerDB.
package badger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"boardcore/pkg/domain"
)

var _ domain.SnapshotStore = (*Store)(nil)

var bucketPrefix = []byte("bucket/")

// Store is a BadgerDB-backed domain.SnapshotStore.
type Store struct {
	db *badger.DB
}

// NewStore opens a database in dir. An empty dir opens an in-memory database.
// Badger's internal logging is routed to logger when non-nil and discarded
// otherwise.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	}
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else {
		opts = opts.WithSyncWrites(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// LoadBuckets reads every stored bucket.
func (s *Store) LoadBuckets(ctx context.Context) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(bucketPrefix); it.ValidForPrefix(bucketPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			payload, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", item.Key(), err)
			}
			out[string(item.Key()[len(bucketPrefix):])] = payload
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveBuckets upserts the given buckets in one transaction.
func (s *Store) SaveBuckets(ctx context.Context, buckets map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for bucket, payload := range buckets {
			key := append(append([]byte(nil), bucketPrefix...), bucket...)
			if err := txn.Set(key, append([]byte(nil), payload...)); err != nil {
				return fmt.Errorf("set %s: %w", bucket, err)
			}
		}
		return nil
	})
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
