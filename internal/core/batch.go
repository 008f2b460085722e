package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"boardcore/pkg/domain"
)

// run is the single active processing slot. Every caller whose update was
// queued while the run was active waits on done and shares err.
type run struct {
	id      string
	done    chan struct{}
	err     error
	results map[string]domain.Issue
}

func (r *run) wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitUpdate queues u and waits for the run that includes it. The returned
// issue is the state committed by that run. ctx bounds the wait only: an
// accepted update is processed even if the caller gives up.
func (s *Store) SubmitUpdate(ctx context.Context, u domain.Update) (domain.Issue, error) {
	if u.ID == "" {
		return domain.Issue{}, domain.ErrInvalidUpdate
	}
	r := s.enqueue(ctx, u)
	if err := r.wait(ctx); err != nil {
		return domain.Issue{}, err
	}
	issue, ok := r.results[u.ID]
	if !ok {
		return domain.Issue{}, fmt.Errorf("issue %s: %w", u.ID, domain.ErrNotFound)
	}
	return issue.Clone(), nil
}

// SubmitUpdates calls fn for every live issue and submits the returned
// patches into a single run. The patch id is forced to the visited issue.
func (s *Store) SubmitUpdates(ctx context.Context, fn func(domain.Issue) (domain.Update, bool)) ([]domain.Issue, error) {
	var pending []domain.Update
	for _, issue := range s.Issues() {
		u, ok := fn(issue)
		if !ok {
			continue
		}
		u.ID = issue.ID
		pending = append(pending, u)
	}
	if len(pending) == 0 {
		return nil, nil
	}
	r := s.enqueue(ctx, pending...)
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Issue, 0, len(pending))
	for _, u := range pending {
		if issue, ok := r.results[u.ID]; ok {
			out = append(out, issue.Clone())
		}
	}
	return out, nil
}

// enqueue appends updates to the shared queue and returns the run that will
// drain them, starting one when none is active.
func (s *Store) enqueue(ctx context.Context, pending ...domain.Update) *run {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	s.queue = append(s.queue, pending...)
	r := s.active
	if r == nil {
		r = &run{
			id:      uuid.NewString(),
			done:    make(chan struct{}),
			results: make(map[string]domain.Issue),
		}
		s.active = r
		go s.process(context.WithoutCancel(ctx), r)
	}
	for _, u := range pending {
		s.logger.Debug("update queued", "issue", u.ID, "run", r.id)
	}
	return r
}

// process drains the queue into r until it is empty. Updates queued while a
// batch is running are picked up by the next iteration of the same run. A
// failure rejects every caller of r and drops whatever is still queued.
func (s *Store) process(ctx context.Context, r *run) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	started := s.clock.Now()
	processed := 0
	for {
		s.qmu.Lock()
		pending := s.queue
		s.queue = nil
		if len(pending) == 0 {
			s.active = nil
			s.qmu.Unlock()
			break
		}
		s.qmu.Unlock()

		published, err := s.runBatch(ctx, r.id, pending)
		if err != nil {
			s.qmu.Lock()
			dropped := len(s.queue)
			s.queue = nil
			s.active = nil
			s.qmu.Unlock()
			s.logger.Error("update run failed", "run", r.id, "error", err, "dropped", dropped)
			r.err = err
			close(r.done)
			return
		}
		for _, issue := range published {
			r.results[issue.ID] = issue
		}
		processed += len(pending)
	}
	s.logger.Info("updates processed", "run", r.id, "count", processed, "duration", s.clock.Now().Sub(started))
	close(r.done)
}
