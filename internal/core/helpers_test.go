package core

import (
	"context"
	"testing"
	"time"

	"boardcore/pkg/domain"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(opts ...Option) *Store {
	return NewStore(append([]Option{WithClock(ClockFunc(func() time.Time { return fixedNow }))}, opts...)...)
}

func acme() *domain.Repository {
	return &domain.Repository{Name: "app", Owner: domain.Owner{Login: "acme"}}
}

// issueUpdate builds a complete patch for acme/app#number.
func issueUpdate(id string, number int, body string) domain.Update {
	return domain.Update{
		ID:         id,
		Key:        domain.String(domain.IssueKey("acme", "app", number)),
		Number:     domain.Int(number),
		Title:      domain.String("issue " + id),
		Body:       domain.String(body),
		Repository: acme(),
	}
}

func mustSubmit(t *testing.T, s *Store, u domain.Update) domain.Issue {
	t.Helper()
	issue, err := s.SubmitUpdate(context.Background(), u)
	if err != nil {
		t.Fatalf("submit %s: %v", u.ID, err)
	}
	return issue
}

func linkTypes(views []domain.LinkedIssue) map[string]domain.LinkType {
	out := make(map[string]domain.LinkType, len(views))
	for _, v := range views {
		out[v.Target.ID] = v.Type
	}
	return out
}
