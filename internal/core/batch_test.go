package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"boardcore/pkg/domain"
)

// holdFirstRun blocks the first update of the store until release is closed
// and reports when it is being processed.
func holdFirstRun(s *Store) (started <-chan struct{}, release chan struct{}) {
	begin := make(chan struct{})
	release = make(chan struct{})
	s.Once(EventUpdateIssue, func(context.Context, any) error {
		close(begin)
		<-release
		return nil
	})
	return begin, release
}

func waitQueued(t *testing.T, s *Store, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.qmu.Lock()
		queued := len(s.queue)
		s.qmu.Unlock()
		if queued >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d queued updates", n)
}

func TestUpdatesQueuedDuringARunJoinIt(t *testing.T) {
	s := newTestStore()
	var (
		mu   sync.Mutex
		runs = map[string]int{}
	)
	s.On(EventIssuesUpdated, func(_ context.Context, data any) error {
		mu.Lock()
		runs[data.(*BatchEvent).RunID]++
		mu.Unlock()
		return nil
	})
	started, release := holdFirstRun(s)

	ctx := context.Background()
	errs := make(chan error, 3)
	go func() {
		_, err := s.SubmitUpdate(ctx, issueUpdate("1", 1, ""))
		errs <- err
	}()
	<-started
	for _, u := range []domain.Update{issueUpdate("2", 2, ""), issueUpdate("3", 3, "")} {
		go func() {
			_, err := s.SubmitUpdate(ctx, u)
			errs <- err
		}()
	}
	waitQueued(t, s, 2)
	close(release)

	for i := 0; i < 3; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if len(runs) != 1 {
		t.Fatalf("expected a single run, got %v", runs)
	}
	for _, batches := range runs {
		if batches != 2 {
			t.Fatalf("expected two batches in the run, got %d", batches)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 issues, got %d", s.Len())
	}
}

func TestFailedBatchRejectsEveryCallerOfTheRun(t *testing.T) {
	s := newTestStore()
	started, release := holdFirstRun(s)

	ctx := context.Background()
	errs := make(chan error, 3)
	go func() {
		_, err := s.SubmitUpdate(ctx, issueUpdate("1", 1, ""))
		errs <- err
	}()
	<-started
	go func() {
		_, err := s.SubmitUpdate(ctx, issueUpdate("2", 2, ""))
		errs <- err
	}()
	waitQueued(t, s, 1)
	go func() {
		_, err := s.SubmitUpdate(ctx, domain.Update{ID: "3", Repository: acme()})
		errs <- err
	}()
	waitQueued(t, s, 2)
	close(release)

	for i := 0; i < 3; i++ {
		if err := <-errs; !errors.Is(err, domain.ErrMissingField) {
			t.Fatalf("expected ErrMissingField, got %v", err)
		}
	}
	if _, ok := s.IssueByID("2"); ok {
		t.Fatalf("failed batch must not commit")
	}

	// the store keeps serving after a failed run
	mustSubmit(t, s, issueUpdate("4", 4, ""))
}

func TestCallerContextOnlyBoundsTheWait(t *testing.T) {
	s := newTestStore()
	started, release := holdFirstRun(s)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := s.SubmitUpdate(ctx, issueUpdate("1", 1, ""))
		errs <- err
	}()
	<-started
	cancel()
	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	close(release)

	// the abandoned update is still committed by the run
	mustSubmit(t, s, issueUpdate("2", 2, ""))
	if _, ok := s.IssueByID("1"); !ok {
		t.Fatalf("accepted update was dropped")
	}
}

func TestConcurrentSubmitters(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := domain.IssueKey("acme", "app", n)
			if _, err := s.SubmitUpdate(ctx, issueUpdate(id, n, "")); err != nil {
				t.Errorf("submit %d: %v", n, err)
			}
			_ = s.Board()
			_ = s.ChangesSince("")
		}(i)
	}
	wg.Wait()
	if s.Len() != 20 {
		t.Fatalf("expected 20 issues, got %d", s.Len())
	}
	issues := s.Issues()
	for i := 1; i < len(issues); i++ {
		if issues[i-1].Order > issues[i].Order {
			t.Fatalf("issues out of order at %d", i)
		}
	}
}
