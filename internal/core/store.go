package core

import (
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"boardcore/internal/events"
	"boardcore/internal/links"
	"boardcore/internal/order"
	"boardcore/internal/updates"
	"boardcore/pkg/domain"
)

const defaultLogSeed = updates.DefaultSeed

// Store is the in-memory issue store. Writes are funnelled through a single
// batch run at a time; reads never wait for a run and observe either the
// state before or after each commit stage.
type Store struct {
	// wmu serializes writers: batch runs, removals and restores.
	wmu sync.Mutex

	mu       sync.RWMutex
	byID     map[string]domain.Issue
	byKey    map[string]string
	list     []string
	links    *links.Graph
	lastSync *time.Time

	linked   *links.Cache
	boardGen atomic.Uint64
	board    atomic.Pointer[boardCache]

	log *updates.Log[domain.ChangeEntry]

	columns domain.ColumnResolver
	refs    domain.ReferenceExtractor
	order   *order.Engine
	bus     *events.Bus
	logger  Logger
	clock   Clock

	qmu    sync.Mutex
	queue  []domain.Update
	active *run
}

type boardCache struct {
	gen     uint64
	columns map[string][]domain.BoardIssue
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	return newStore(buildOptions(opts))
}

func newStore(o options) *Store {
	return &Store{
		byID:    make(map[string]domain.Issue),
		byKey:   make(map[string]string),
		links:   links.NewGraph(),
		linked:  links.NewCache(),
		log:     updates.New[domain.ChangeEntry](o.seed),
		columns: o.columns,
		refs:    o.references,
		order:   order.NewEngine(o.constants),
		bus:     events.NewBus(),
		logger:  o.logger,
		clock:   o.clock,
	}
}

// Read helpers ---------------------------------------------------------------

// IssueByID returns the live issue with the given id.
func (s *Store) IssueByID(id string) (domain.Issue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.byID[id]
	if !ok {
		return domain.Issue{}, false
	}
	return issue.Clone(), true
}

// IssueByKey returns the live issue with the given owner/repo#number key.
func (s *Store) IssueByKey(key string) (domain.Issue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return domain.Issue{}, false
	}
	return s.byID[id].Clone(), true
}

// Issues returns every live issue sorted by order.
func (s *Store) Issues() []domain.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.issuesLocked()
}

func (s *Store) issuesLocked() []domain.Issue {
	out := make([]domain.Issue, 0, len(s.list))
	for _, id := range s.list {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Len returns the number of live issues.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

// Linked returns the resolved outgoing and inverse links of an issue.
func (s *Store) Linked(id string) []domain.LinkedIssue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.linkedLocked(id))
}

// Board groups the live issues by column, each column ordered by order. The
// result is cached until the next publish, removal or restore; callers must
// treat the issues as read-only.
func (s *Store) Board() map[string][]domain.BoardIssue {
	if c := s.board.Load(); c != nil && c.gen == s.boardGen.Load() {
		return copyBoard(c.columns)
	}

	s.mu.RLock()
	gen := s.boardGen.Load()
	columns := make(map[string][]domain.BoardIssue)
	for _, id := range s.list {
		issue := s.byID[id]
		columns[issue.Column] = append(columns[issue.Column], domain.BoardIssue{
			Issue: issue.Clone(),
			Links: s.linkedLocked(id),
		})
	}
	s.mu.RUnlock()

	s.board.Store(&boardCache{gen: gen, columns: columns})
	return copyBoard(columns)
}

// ChangeCursor returns the cursor of the most recent change-feed entry.
func (s *Store) ChangeCursor() string {
	return s.log.Head()
}

// ChangesSince returns the live change-feed entries published after cursor.
// Unknown cursors replay the whole feed.
func (s *Store) ChangesSince(cursor string) []domain.ChangeEntry {
	entries := s.log.ReplaySince(cursor)
	out := make([]domain.ChangeEntry, 0, len(entries))
	for _, e := range entries {
		change := e.Payload
		change.ID = e.ID
		out = append(out, change)
	}
	return out
}

// LastSync returns the last upstream synchronisation time, if recorded.
func (s *Store) LastSync() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSync == nil {
		return nil
	}
	t := *s.lastSync
	return &t
}

// SetLastSync records the last upstream synchronisation time.
func (s *Store) SetLastSync(t time.Time) {
	s.mu.Lock()
	t = t.UTC()
	s.lastSync = &t
	s.mu.Unlock()
}

// Table helpers (callers hold s.mu) -------------------------------------------

func (s *Store) lookupLocked(id string) (domain.Issue, bool) {
	issue, ok := s.byID[id]
	return issue, ok
}

func (s *Store) linkedLocked(id string) []domain.LinkedIssue {
	return s.linked.Get(id, func() []domain.LinkedIssue {
		return s.links.Linked(id, s.lookupLocked)
	})
}

func (s *Store) firstLocked() *domain.Issue {
	if len(s.list) == 0 {
		return nil
	}
	first := s.byID[s.list[0]]
	return &first
}

// putLocked replaces the record with issue.ID and keeps list sorted by order.
// Ties are placed after existing issues with the same order.
func (s *Store) putLocked(issue domain.Issue) {
	if prev, ok := s.byID[issue.ID]; ok {
		s.unlistLocked(issue.ID)
		if prev.Key != issue.Key && s.byKey[prev.Key] == issue.ID {
			delete(s.byKey, prev.Key)
		}
	}
	s.byID[issue.ID] = issue
	s.byKey[issue.Key] = issue.ID

	idx := sort.Search(len(s.list), func(i int) bool {
		return s.byID[s.list[i]].Order > issue.Order
	})
	s.list = slices.Insert(s.list, idx, issue.ID)
}

func (s *Store) deleteLocked(id string) (domain.Issue, bool) {
	issue, ok := s.byID[id]
	if !ok {
		return domain.Issue{}, false
	}
	s.unlistLocked(id)
	delete(s.byID, id)
	if s.byKey[issue.Key] == id {
		delete(s.byKey, issue.Key)
	}
	return issue, true
}

func (s *Store) unlistLocked(id string) {
	if i := slices.Index(s.list, id); i >= 0 {
		s.list = slices.Delete(s.list, i, i+1)
	}
}

func (s *Store) invalidateBoard() {
	s.boardGen.Add(1)
}

func copyBoard(in map[string][]domain.BoardIssue) map[string][]domain.BoardIssue {
	out := make(map[string][]domain.BoardIssue, len(in))
	for col, issues := range in {
		out[col] = slices.Clone(issues)
	}
	return out
}
