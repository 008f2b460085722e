package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"boardcore/internal/links"
	"boardcore/internal/updates"
	"boardcore/pkg/domain"
)

// Top-level snapshot fields written by the store. Listeners of
// EventSerialize may add more.
const (
	SnapshotIssues   = "issues"
	SnapshotLinks    = "links"
	SnapshotLastSync = "lastSync"
)

// Serialize encodes the live issues, the last sync time and the link graph
// as a JSON object.
func (s *Store) Serialize(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	issues := s.issuesLocked()
	graph, err := s.links.MarshalJSON()
	var lastSync *time.Time
	if s.lastSync != nil {
		t := *s.lastSync
		lastSync = &t
	}
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("encode links: %w", err)
	}

	encoded, err := json.Marshal(issues)
	if err != nil {
		return nil, fmt.Errorf("encode issues: %w", err)
	}
	data := map[string]json.RawMessage{
		SnapshotIssues: encoded,
		SnapshotLinks:  graph,
	}
	if lastSync != nil {
		raw, err := json.Marshal(lastSync)
		if err != nil {
			return nil, fmt.Errorf("encode last sync: %w", err)
		}
		data[SnapshotLastSync] = raw
	}

	ev := &SerializeEvent{Data: data}
	if err := s.bus.Emit(ctx, EventSerialize, ev); err != nil {
		return nil, err
	}
	return json.Marshal(ev.Data)
}

// Restore replaces the live issues, link graph and last sync time with the
// decoded snapshot. Any decoding problem fails the whole restore with
// domain.ErrMalformedSnapshot and leaves the store untouched. The change
// feed is kept so existing cursors stay valid.
func (s *Store) Restore(ctx context.Context, data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
	}
	if fields == nil {
		return fmt.Errorf("%w: not an object", domain.ErrMalformedSnapshot)
	}

	var issues []domain.Issue
	if raw, ok := fields[SnapshotIssues]; ok {
		if err := json.Unmarshal(raw, &issues); err != nil {
			return fmt.Errorf("%w: issues: %v", domain.ErrMalformedSnapshot, err)
		}
	}
	byID := make(map[string]domain.Issue, len(issues))
	list := make([]string, 0, len(issues))
	for i, issue := range issues {
		if issue.ID == "" {
			return fmt.Errorf("%w: issue %d has no id", domain.ErrMalformedSnapshot, i)
		}
		if _, dup := byID[issue.ID]; !dup {
			list = append(list, issue.ID)
		}
		byID[issue.ID] = issue
	}
	byKey := make(map[string]string, len(byID))
	for _, id := range list {
		byKey[byID[id].Key] = id
	}
	sort.SliceStable(list, func(i, j int) bool { return byID[list[i]].Order < byID[list[j]].Order })

	graph := links.NewGraph()
	if raw, ok := fields[SnapshotLinks]; ok && string(raw) != "null" {
		if err := graph.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("%w: links: %v", domain.ErrMalformedSnapshot, err)
		}
	}

	var lastSync *time.Time
	if raw, ok := fields[SnapshotLastSync]; ok && string(raw) != "null" {
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("%w: lastSync: %v", domain.ErrMalformedSnapshot, err)
		}
		lastSync = &t
	}

	s.wmu.Lock()
	s.mu.Lock()
	s.byID = byID
	s.byKey = byKey
	s.list = list
	s.links = graph
	s.lastSync = lastSync
	s.linked.Reset()
	s.mu.Unlock()
	s.invalidateBoard()
	s.wmu.Unlock()

	s.logger.Debug("restore complete", "issues", len(list), "links", graph.Len())
	return s.bus.Emit(ctx, EventRestored, &RestoredEvent{Data: fields})
}

// ChangeLogState captures the change feed, cursors and superseded entries
// included.
func (s *Store) ChangeLogState() updates.State[domain.ChangeEntry] {
	return s.log.State()
}

// LoadChangeLog replaces the change feed with st. Cursors handed out before
// st was captured stay valid against the loaded feed.
func (s *Store) LoadChangeLog(st updates.State[domain.ChangeEntry]) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.log.Load(st); err != nil {
		return fmt.Errorf("%w: changes: %v", domain.ErrMalformedSnapshot, err)
	}
	s.logger.Debug("change feed loaded", "cursor", s.log.Head())
	return nil
}
