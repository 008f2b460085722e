package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"boardcore/internal/blob"
	"boardcore/internal/updates"
	"boardcore/pkg/domain"
)

// ErrNoArchiver is returned by archive operations on a service built without
// WithArchiver.
var ErrNoArchiver = errors.New("no archiver configured")

const (
	// changeLogPriority loads a persisted change feed before the restored
	// snapshot is persisted again.
	changeLogPriority = 500
	// persistPriority runs snapshot persistence after default listeners.
	persistPriority = 100
)

// SnapshotChanges is the snapshot field holding the change feed of a service
// with a snapshot store.
const SnapshotChanges = "changes"

// Service wraps a Store with tracing, metrics and logging around every
// operation, and keeps an optional SnapshotStore in sync with it.
type Service struct {
	store     *Store
	snapshots domain.SnapshotStore
	archiver  *Archiver
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	clock     Clock
}

// NewService constructs a service and its store from opts.
func NewService(opts ...Option) *Service {
	o := buildOptions(opts)
	svc := &Service{
		store:     newStore(o),
		snapshots: o.snapshots,
		archiver:  o.archiver,
		logger:    o.logger,
		metrics:   o.metrics,
		tracer:    o.tracer,
		clock:     o.clock,
	}
	if svc.snapshots != nil {
		svc.store.On(EventSerialize, svc.saveChangeLog)
		svc.store.On(EventRestored, svc.loadChangeLog, changeLogPriority)
		for _, event := range []string{EventIssuesUpdated, EventRemoved, EventRestored} {
			svc.store.On(event, svc.persistListener, persistPriority)
		}
	}
	return svc
}

// Store returns the underlying store.
func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	err := fn(ctx)
	s.metrics.Observe(ctx, op, err == nil, s.clock.Now().Sub(start))
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "error", err)
	}
	span.End(err)
	return err
}

// SubmitUpdate submits u and returns the committed issue.
func (s *Service) SubmitUpdate(ctx context.Context, u domain.Update) (domain.Issue, error) {
	var issue domain.Issue
	err := s.run(ctx, "submit_update", func(ctx context.Context) error {
		var err error
		issue, err = s.store.SubmitUpdate(ctx, u)
		return err
	})
	return issue, err
}

// SubmitUpdates submits the patches fn returns for the live issues in one run.
func (s *Service) SubmitUpdates(ctx context.Context, fn func(domain.Issue) (domain.Update, bool)) ([]domain.Issue, error) {
	var issues []domain.Issue
	err := s.run(ctx, "submit_updates", func(ctx context.Context) error {
		var err error
		issues, err = s.store.SubmitUpdates(ctx, fn)
		return err
	})
	return issues, err
}

// SetOrder moves issueID between two neighbours.
func (s *Service) SetOrder(ctx context.Context, issueID string, beforeID, afterID *string, column string) (domain.Issue, error) {
	var issue domain.Issue
	err := s.run(ctx, "set_order", func(ctx context.Context) error {
		var err error
		issue, err = s.store.SetOrder(ctx, issueID, beforeID, afterID, column)
		return err
	})
	return issue, err
}

// RemoveIssue removes the issue with id.
func (s *Service) RemoveIssue(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.run(ctx, "remove_issue", func(ctx context.Context) error {
		var err error
		removed, err = s.store.RemoveIssue(ctx, id)
		return err
	})
	return removed, err
}

// Export returns the serialized snapshot.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.run(ctx, "export", func(ctx context.Context) error {
		var err error
		data, err = s.store.Serialize(ctx)
		return err
	})
	return data, err
}

// Import restores the store from a serialized snapshot.
func (s *Service) Import(ctx context.Context, data []byte) error {
	return s.run(ctx, "import", func(ctx context.Context) error {
		return s.store.Restore(ctx, data)
	})
}

// Load restores the store from the snapshot store. It is a no-op without a
// snapshot store or when nothing was saved yet.
func (s *Service) Load(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	return s.run(ctx, "load", func(ctx context.Context) error {
		buckets, err := s.snapshots.LoadBuckets(ctx)
		if err != nil {
			return fmt.Errorf("load buckets: %w", err)
		}
		if len(buckets) == 0 {
			return nil
		}
		fields := make(map[string]json.RawMessage, len(buckets))
		for name, payload := range buckets {
			if !json.Valid(payload) {
				return fmt.Errorf("%w: bucket %s", domain.ErrMalformedSnapshot, name)
			}
			fields[name] = payload
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
		}
		return s.store.Restore(ctx, data)
	})
}

// Checkpoint persists the current snapshot and, when an archiver is
// configured, archives it concurrently. The returned info describes the
// archive and is zero without an archiver.
func (s *Service) Checkpoint(ctx context.Context) (blob.Info, error) {
	var info blob.Info
	err := s.run(ctx, "checkpoint", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		if s.snapshots != nil {
			g.Go(func() error { return s.persist(gctx) })
		}
		if s.archiver != nil {
			g.Go(func() error {
				var err error
				info, err = s.archiver.Put(gctx, s.store)
				return err
			})
		}
		return g.Wait()
	})
	return info, err
}

// Archive writes a compressed snapshot through the configured archiver.
func (s *Service) Archive(ctx context.Context) (blob.Info, error) {
	if s.archiver == nil {
		return blob.Info{}, ErrNoArchiver
	}
	var info blob.Info
	err := s.run(ctx, "archive", func(ctx context.Context) error {
		var err error
		info, err = s.archiver.Put(ctx, s.store)
		return err
	})
	return info, err
}

// RestoreArchive restores the store from the archive stored under key.
func (s *Service) RestoreArchive(ctx context.Context, key string) error {
	if s.archiver == nil {
		return ErrNoArchiver
	}
	return s.run(ctx, "restore_archive", func(ctx context.Context) error {
		return s.archiver.Restore(ctx, s.store, key)
	})
}

// Archives lists the stored archives.
func (s *Service) Archives(ctx context.Context) ([]blob.Info, error) {
	if s.archiver == nil {
		return nil, ErrNoArchiver
	}
	return s.archiver.List(ctx)
}

// Close releases the snapshot store.
func (s *Service) Close() error {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Close()
}

// saveChangeLog adds the change feed to every snapshot so that cursors
// survive a restart.
func (s *Service) saveChangeLog(_ context.Context, data any) error {
	ev, ok := data.(*SerializeEvent)
	if !ok {
		return nil
	}
	raw, err := json.Marshal(s.store.ChangeLogState())
	if err != nil {
		return fmt.Errorf("encode changes: %w", err)
	}
	ev.Data[SnapshotChanges] = raw
	return nil
}

// loadChangeLog restores the change feed when the snapshot carries one.
func (s *Service) loadChangeLog(_ context.Context, data any) error {
	ev, ok := data.(*RestoredEvent)
	if !ok {
		return nil
	}
	raw, ok := ev.Data[SnapshotChanges]
	if !ok || string(raw) == "null" {
		return nil
	}
	var st updates.State[domain.ChangeEntry]
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("%w: changes: %v", domain.ErrMalformedSnapshot, err)
	}
	return s.store.LoadChangeLog(st)
}

func (s *Service) persistListener(ctx context.Context, _ any) error {
	if err := s.persist(ctx); err != nil {
		s.logger.Error("snapshot persist failed", "error", err)
		return err
	}
	return nil
}

// persist writes every snapshot field as a bucket. Standard fields missing
// from the snapshot are written as null so stale values are overwritten.
func (s *Service) persist(ctx context.Context) error {
	data, err := s.store.Serialize(ctx)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	buckets := map[string][]byte{
		SnapshotIssues:   []byte("null"),
		SnapshotLinks:    []byte("null"),
		SnapshotLastSync: []byte("null"),
	}
	for name, raw := range fields {
		buckets[name] = raw
	}
	if err := s.snapshots.SaveBuckets(ctx, buckets); err != nil {
		return fmt.Errorf("save buckets: %w", err)
	}
	s.logger.Debug("snapshot persisted", "buckets", len(buckets))
	return nil
}
