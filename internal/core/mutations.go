package core

import (
	"context"
	"fmt"
	"sort"

	"boardcore/pkg/domain"
)

// SetOrder moves an issue between two neighbours. beforeID names the issue
// that must follow it, afterID the issue that must precede it; either may be
// nil or unknown. An empty column keeps the issue's current column.
func (s *Store) SetOrder(ctx context.Context, issueID string, beforeID, afterID *string, column string) (domain.Issue, error) {
	s.mu.RLock()
	issue, ok := s.byID[issueID]
	before := s.orderOfLocked(beforeID)
	after := s.orderOfLocked(afterID)
	s.mu.RUnlock()
	if !ok {
		return domain.Issue{}, fmt.Errorf("issue %s: %w", issueID, domain.ErrNotFound)
	}
	if column == "" {
		column = issue.Column
	}
	current := issue.Order
	next := s.order.Compute(before, after, &current)
	return s.SubmitUpdate(ctx, domain.Update{ID: issueID, Column: &column, Order: &next})
}

func (s *Store) orderOfLocked(id *string) *float64 {
	if id == nil {
		return nil
	}
	issue, ok := s.byID[*id]
	if !ok {
		return nil
	}
	o := issue.Order
	return &o
}

// RemoveIssue drops an issue from the live table and its outgoing links from
// the graph. A remove entry carrying id, key and repository is appended to the
// change feed, and every issue whose linked view changed is republished.
func (s *Store) RemoveIssue(ctx context.Context, id string) (bool, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	issue, ok := s.deleteLocked(id)
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	affected := make(map[string]bool)
	for _, link := range s.links.GetInverse(id) {
		affected[link.TargetID] = true
	}
	for _, link := range s.links.RemoveBySource(id) {
		affected[link.TargetID] = true
	}
	s.linked.Invalidate(id)

	ids := make([]string, 0, len(affected))
	for other := range affected {
		if _, live := s.byID[other]; live {
			ids = append(ids, other)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return s.byID[ids[i]].Order < s.byID[ids[j]].Order })
	s.linked.Invalidate(ids...)

	changes := []domain.ChangeEntry{{
		Type: domain.ChangeRemove,
		Issue: domain.BoardIssue{
			Issue: domain.Issue{ID: issue.ID, Key: issue.Key, Repository: issue.Repository},
			Links: []domain.LinkedIssue{},
		},
	}}
	for _, other := range ids {
		changes = append(changes, domain.ChangeEntry{
			Type:  domain.ChangeUpdate,
			Issue: domain.BoardIssue{Issue: s.byID[other].Clone(), Links: s.linkedLocked(other)},
		})
	}
	s.mu.Unlock()

	for _, change := range changes {
		s.log.Append(change.Issue.Issue.ID, change)
	}
	s.invalidateBoard()
	s.logger.Info("remove", "issue", issue.Key, "republished", len(ids))
	if err := s.bus.Emit(ctx, EventRemoved, &RemovedEvent{Issue: issue}); err != nil {
		return true, err
	}
	return true, nil
}
