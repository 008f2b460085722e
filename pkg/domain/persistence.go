package domain

import "context"

// Column describes a board lane.
type Column struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Sorting bool   `json:"sorting,omitempty" yaml:"sorting,omitempty"`
	Closed  bool   `json:"closed,omitempty" yaml:"closed,omitempty"`
}

// ColumnResolver decides which column an issue belongs to. ResolveColumn may
// consult external state and therefore takes a context.
type ColumnResolver interface {
	ResolveColumn(ctx context.Context, issue Issue) (string, error)
	IsColumnLabel(name string) bool
	IsSortingColumn(name string) bool
	FindColumn(name string) (Column, bool)
}

// ReferenceExtractor finds link references in an issue's content.
type ReferenceExtractor interface {
	FindReferences(issue Issue) []Reference
}

// SnapshotStore is a minimal abstraction over durable backends. A board
// snapshot is stored as one payload per top-level field (bucket).
type SnapshotStore interface {
	LoadBuckets(ctx context.Context) (map[string][]byte, error)
	SaveBuckets(ctx context.Context, buckets map[string][]byte) error
	Close() error
}
