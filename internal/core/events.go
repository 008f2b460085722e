package core

import (
	"context"
	"encoding/json"

	"boardcore/internal/events"
	"boardcore/pkg/domain"
)

// Events emitted by the store.
const (
	EventUpdateIssue   = "updateIssue"
	EventIssuesUpdated = "issuesUpdated"
	EventSerialize     = "serialize"
	EventRestored      = "restored"
	EventRemoved       = "removed"
)

// IssueEvent is the payload of EventUpdateIssue. Existing is nil for new
// issues. Listeners may modify Updated before the pipeline stages run.
type IssueEvent struct {
	Existing *domain.Issue
	Update   domain.Update
	Updated  domain.Issue
}

// BatchEvent is the payload of EventIssuesUpdated and lists every issue
// published by a run.
type BatchEvent struct {
	RunID   string
	Touched []domain.Issue
}

// SerializeEvent is the payload of EventSerialize. Listeners add top-level
// snapshot fields to Data.
type SerializeEvent struct {
	Data map[string]json.RawMessage
}

// RestoredEvent is the payload of EventRestored.
type RestoredEvent struct {
	Data map[string]json.RawMessage
}

// RemovedEvent is the payload of EventRemoved.
type RemovedEvent struct {
	Issue domain.Issue
}

// Listener handles an emitted event.
type Listener = events.Listener

// On subscribes fn to event. Listeners run in descending priority order; the
// returned function unsubscribes.
func (s *Store) On(event string, fn Listener, priority ...int) func() {
	return s.bus.On(event, fn, priority...)
}

// Once subscribes fn for a single delivery.
func (s *Store) Once(event string, fn Listener, priority ...int) func() {
	return s.bus.Once(event, fn, priority...)
}

// Emit runs the listeners of event in sequence and stops at the first error.
func (s *Store) Emit(ctx context.Context, event string, data any) error {
	return s.bus.Emit(ctx, event, data)
}
