package core

import (
	"context"
	"fmt"
	"time"

	"boardcore/internal/order"
	"boardcore/pkg/domain"
)

// batchContext overlays the issue table for one pass over the queue. Issues
// touched in the batch shadow their committed versions.
type batchContext struct {
	runID   string
	ids     []string
	touched map[string]domain.Issue
	byKey   map[string]string

	explicitColumn map[string]bool
	explicitOrder  map[string]bool

	staged map[string][]domain.Link
}

func newBatchContext(runID string) *batchContext {
	return &batchContext{
		runID:          runID,
		touched:        make(map[string]domain.Issue),
		byKey:          make(map[string]string),
		explicitColumn: make(map[string]bool),
		explicitOrder:  make(map[string]bool),
		staged:         make(map[string][]domain.Link),
	}
}

func (bc *batchContext) touch(issue domain.Issue) {
	prev, seen := bc.touched[issue.ID]
	if !seen {
		bc.ids = append(bc.ids, issue.ID)
	} else if prev.Key != issue.Key && bc.byKey[prev.Key] == issue.ID {
		delete(bc.byKey, prev.Key)
	}
	bc.touched[issue.ID] = issue
	bc.byKey[issue.Key] = issue.ID
}

// stage is one step of the update pipeline. Every touched issue passes
// through a stage before the next stage starts.
type stage struct {
	name string
	run  func(s *Store, ctx context.Context, bc *batchContext) error
}

var pipeline = []stage{
	{name: "derive links", run: (*Store).deriveLinks},
	{name: "compute order", run: (*Store).computeOrder},
	{name: "flush issues", run: (*Store).flushIssues},
	{name: "flush links", run: (*Store).flushLinks},
	{name: "publish", run: (*Store).publish},
}

// runBatch applies pending in FIFO order and runs the pipeline. Stages that
// already committed are not rolled back when a later stage fails.
func (s *Store) runBatch(ctx context.Context, runID string, pending []domain.Update) ([]domain.Issue, error) {
	bc := newBatchContext(runID)
	for _, u := range pending {
		if err := s.applyUpdate(ctx, bc, u); err != nil {
			return nil, err
		}
	}
	for _, st := range pipeline {
		if err := st.run(s, ctx, bc); err != nil {
			return nil, fmt.Errorf("%s: %w", st.name, err)
		}
	}
	published := make([]domain.Issue, 0, len(bc.ids))
	for _, id := range bc.ids {
		published = append(published, bc.touched[id])
	}
	return published, nil
}

// lookup resolves id against the batch first, then the committed table.
func (s *Store) lookup(bc *batchContext, id string) (domain.Issue, bool) {
	if issue, ok := bc.touched[id]; ok {
		return issue, true
	}
	return s.committed(id)
}

// committed resolves id against the committed table only.
func (s *Store) committed(id string) (domain.Issue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(id)
}

func (s *Store) lookupKey(bc *batchContext, key string) (domain.Issue, bool) {
	if id, ok := bc.byKey[key]; ok {
		return bc.touched[id], true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return domain.Issue{}, false
	}
	return s.byID[id], true
}

func (s *Store) applyUpdate(ctx context.Context, bc *batchContext, u domain.Update) error {
	if u.ID == "" {
		return domain.ErrInvalidUpdate
	}
	existing, found := s.lookup(bc, u.ID)
	updated := u.Apply(existing)
	if u.UpdatedAt == nil {
		updated.UpdatedAt = s.clock.Now().UTC().Format(time.RFC3339)
	}
	if updated.Key == "" {
		return domain.FieldError{IssueID: u.ID, Field: "key"}
	}
	if updated.Repository.IsZero() {
		return domain.FieldError{IssueID: u.ID, Field: "repository"}
	}
	if u.Labels != nil {
		for i := range updated.Labels {
			if s.columns.IsColumnLabel(updated.Labels[i].Name) {
				updated.Labels[i].ColumnLabel = true
			}
		}
	}

	ev := &IssueEvent{Update: u, Updated: updated}
	if found {
		prev := existing.Clone()
		ev.Existing = &prev
	}
	if err := s.bus.Emit(ctx, EventUpdateIssue, ev); err != nil {
		return err
	}

	if u.Column != nil {
		bc.explicitColumn[u.ID] = true
	}
	if u.Order != nil {
		bc.explicitOrder[u.ID] = true
	}
	bc.touch(ev.Updated)
	s.logger.Debug("update processed", "issue", ev.Updated.Key, "run", bc.runID)
	return nil
}

// deriveLinks stages the outgoing link set of every updated issue. References
// that resolve to neither the batch nor the table are dropped.
func (s *Store) deriveLinks(_ context.Context, bc *batchContext) error {
	for _, id := range bc.ids {
		issue := bc.touched[id]
		seen := make(map[string]bool)
		staged := []domain.Link{}
		for _, ref := range s.refs.FindReferences(issue) {
			owner, repo := ref.Owner, ref.Repo
			if owner == "" {
				owner = issue.Repository.Owner.Login
			}
			if repo == "" {
				repo = issue.Repository.Name
			}
			if owner == issue.Repository.Owner.Login && repo == issue.Repository.Name && ref.Number == issue.Number {
				continue
			}
			key := domain.IssueKey(owner, repo, ref.Number)
			target, ok := s.lookupKey(bc, key)
			if !ok || target.ID == issue.ID {
				s.logger.Debug("unresolved reference", "issue", issue.Key, "ref", key, "type", ref.Type)
				continue
			}
			link := s.links.CreateLink(issue.ID, target.ID, ref.Type, ref.Attrs)
			if seen[link.Key] {
				continue
			}
			seen[link.Key] = true
			staged = append(staged, link)
		}
		bc.staged[id] = staged
	}
	return nil
}

// computeOrder resolves the column of every issue whose update did not set
// one and derives an order for every issue whose update did not set one.
// Explicit values always win. Link neighbours are read from the committed
// table, so the result does not depend on the position of a neighbour in
// the batch.
func (s *Store) computeOrder(ctx context.Context, bc *batchContext) error {
	// first tracks the front of the board including issues placed by this
	// stage so far. Explicit orders do not move it.
	s.mu.RLock()
	first := s.firstLocked()
	s.mu.RUnlock()
	for _, id := range bc.ids {
		issue := bc.touched[id]
		if !bc.explicitColumn[id] {
			column, err := s.columns.ResolveColumn(ctx, issue)
			if err != nil {
				return fmt.Errorf("resolve column for %s: %w", issue.Key, err)
			}
			issue.Column = column
		}
		if !bc.explicitOrder[id] {
			s.mu.RLock()
			var current *domain.Issue
			if committed, ok := s.byID[id]; ok {
				current = &committed
			}
			neighbours := append(append([]domain.Link(nil), bc.staged[id]...), s.links.GetInverse(id)...)
			s.mu.RUnlock()

			issue.Order = s.order.Semantic(order.Input{
				Issue:   issue,
				Current: current,
				Links:   neighbours,
				First:   first,
				Sorting: s.columns.IsSortingColumn(issue.Column),
				Lookup:  s.committed,
			})
			if first == nil || issue.Order < first.Order {
				placed := issue
				first = &placed
			}
		}
		bc.touched[id] = issue
	}
	return nil
}

func (s *Store) flushIssues(_ context.Context, bc *batchContext) error {
	s.mu.Lock()
	for _, id := range bc.ids {
		s.putLocked(bc.touched[id])
	}
	s.mu.Unlock()
	for _, id := range bc.ids {
		issue := bc.touched[id]
		s.logger.Debug("issue updated", "issue", issue.Key, "column", issue.Column, "order", issue.Order)
	}
	return nil
}

// flushLinks replaces the outgoing links of every updated issue and touches
// each issue whose inverse link set was affected: old and new targets and the
// sources of pre-existing inbound links.
func (s *Store) flushLinks(_ context.Context, bc *batchContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected []string
	added, removed := 0, 0
	for _, id := range bc.ids {
		staged, ok := bc.staged[id]
		if !ok {
			continue
		}
		for _, link := range s.links.RemoveBySource(id) {
			affected = append(affected, link.TargetID)
			removed++
		}
		for _, link := range s.links.GetInverse(id) {
			affected = append(affected, link.TargetID)
		}
		for _, link := range staged {
			s.links.AddLink(link)
			affected = append(affected, link.TargetID)
			added++
		}
		s.linked.Invalidate(id)
	}
	s.linked.Invalidate(affected...)
	for _, id := range affected {
		if _, seen := bc.touched[id]; seen {
			continue
		}
		if issue, ok := s.byID[id]; ok {
			bc.touch(issue)
		}
	}
	s.logger.Debug("links flushed", "run", bc.runID, "added", added, "removed", removed, "touched", len(bc.ids))
	return nil
}

// publish appends one change-feed entry per touched issue, superseding the
// issue's previous entry, and invalidates the board.
func (s *Store) publish(ctx context.Context, bc *batchContext) error {
	s.mu.RLock()
	changes := make([]domain.ChangeEntry, 0, len(bc.ids))
	touched := make([]domain.Issue, 0, len(bc.ids))
	for _, id := range bc.ids {
		issue, ok := s.byID[id]
		if !ok {
			continue
		}
		touched = append(touched, issue.Clone())
		changes = append(changes, domain.ChangeEntry{
			Type:  domain.ChangeUpdate,
			Issue: domain.BoardIssue{Issue: issue.Clone(), Links: s.linkedLocked(id)},
		})
	}
	s.mu.RUnlock()

	for _, change := range changes {
		s.log.Append(change.Issue.Issue.ID, change)
	}
	s.invalidateBoard()
	return s.bus.Emit(ctx, EventIssuesUpdated, &BatchEvent{RunID: bc.runID, Touched: touched})
}
