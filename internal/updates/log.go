// Package updates implements the append-only change log that backs cursor
// based polling of board changes.
package updates

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// DefaultSeed is the first id handed out by a new log.
const DefaultSeed = 7841316

// Entry is a replayed log record.
type Entry[T any] struct {
	ID      string
	Payload T
}

// Log stores entries in an arena. Entries are never removed; appending an
// entry with a tracking key tombstones the previous entry with that key so it
// is skipped on replay while cursors pointing at it stay valid.
//
// Log is safe for concurrent use.
type Log[T any] struct {
	mu        sync.RWMutex
	counter   int64
	ids       []string
	keys      []string
	payloads  []T
	tombstone []bool
	index     map[string]int
	tracked   map[string]int
}

// New constructs a log whose first id is seed. A sentinel head entry is
// appended so that its id can serve as the "from the beginning" cursor.
func New[T any](seed int64) *Log[T] {
	l := &Log[T]{
		counter: seed,
		index:   make(map[string]int),
		tracked: make(map[string]int),
	}
	var zero T
	l.Append("", zero)
	return l
}

// Append adds payload after the current tail and returns its id. A non-empty
// trackingKey supersedes the previous entry appended with the same key.
func (l *Log[T]) Append(trackingKey string, payload T) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := strconv.FormatInt(l.counter, 10)
	l.counter++

	idx := len(l.ids)
	l.ids = append(l.ids, id)
	l.keys = append(l.keys, trackingKey)
	l.payloads = append(l.payloads, payload)
	l.tombstone = append(l.tombstone, false)
	l.index[id] = idx

	if trackingKey != "" {
		if prev, ok := l.tracked[trackingKey]; ok {
			l.tombstone[prev] = true
		}
		l.tracked[trackingKey] = idx
	}
	return id
}

// Head returns the id of the most recent entry.
func (l *Log[T]) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ids[len(l.ids)-1]
}

// ReplaySince returns the live entries appended strictly after cursor, in
// append order. Unknown cursors replay from the sentinel head.
func (l *Log[T]) ReplaySince(cursor string) []Entry[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start, ok := l.index[cursor]
	if !ok {
		start = 0
	}
	out := make([]Entry[T], 0, len(l.ids)-start-1)
	for i := start + 1; i < len(l.ids); i++ {
		if l.tombstone[i] {
			continue
		}
		out = append(out, Entry[T]{ID: l.ids[i], Payload: l.payloads[i]})
	}
	return out
}

// Len returns the number of entries including the sentinel and tombstones.
func (l *Log[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// State is the serializable form of a Log. Payloads of superseded entries
// are not kept since replay never returns them.
type State[T any] struct {
	Next    int64           `json:"next"`
	Entries []StateEntry[T] `json:"entries"`
}

// StateEntry is one entry of a State.
type StateEntry[T any] struct {
	ID         string `json:"id"`
	Key        string `json:"key,omitempty"`
	Superseded bool   `json:"superseded,omitempty"`
	Payload    *T     `json:"payload,omitempty"`
}

// ErrInvalidState is returned when a State cannot be loaded.
var ErrInvalidState = errors.New("invalid log state")

// State captures the log, sentinel included.
func (l *Log[T]) State() State[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := State[T]{Next: l.counter, Entries: make([]StateEntry[T], len(l.ids))}
	for i, id := range l.ids {
		e := StateEntry[T]{ID: id, Key: l.keys[i], Superseded: l.tombstone[i]}
		if !e.Superseded && i > 0 {
			p := l.payloads[i]
			e.Payload = &p
		}
		st.Entries[i] = e
	}
	return st
}

// FromState rebuilds a log from a captured State.
func FromState[T any](st State[T]) (*Log[T], error) {
	l := &Log[T]{}
	if err := l.Load(st); err != nil {
		return nil, err
	}
	return l, nil
}

// Load replaces the contents of l with st. The first entry is taken as the
// sentinel head. On error l is left unchanged.
func (l *Log[T]) Load(st State[T]) error {
	if len(st.Entries) == 0 {
		return fmt.Errorf("%w: no sentinel entry", ErrInvalidState)
	}
	n := len(st.Entries)
	var (
		ids       = make([]string, n)
		keys      = make([]string, n)
		payloads  = make([]T, n)
		tombstone = make([]bool, n)
		index     = make(map[string]int, n)
		tracked   = make(map[string]int)
	)
	for i, e := range st.Entries {
		if e.ID == "" {
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidState, i)
		}
		if _, dup := index[e.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidState, e.ID)
		}
		ids[i], keys[i], tombstone[i] = e.ID, e.Key, e.Superseded
		index[e.ID] = i
		if e.Payload != nil {
			payloads[i] = *e.Payload
		}
		if e.Key != "" && !e.Superseded {
			if prev, ok := tracked[e.Key]; ok {
				return fmt.Errorf("%w: key %s live at %s and %s", ErrInvalidState, e.Key, ids[prev], e.ID)
			}
			tracked[e.Key] = i
		}
	}
	next := st.Next
	if last, err := strconv.ParseInt(ids[n-1], 10, 64); err == nil && next <= last {
		next = last + 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.counter = next
	l.ids, l.keys, l.payloads, l.tombstone = ids, keys, payloads, tombstone
	l.index, l.tracked = index, tracked
	return nil
}
