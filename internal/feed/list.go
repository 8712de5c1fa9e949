// Package feed keeps client-side lists in step with the realtime change feed
// and pages through server listings.
package feed

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Mode decides where newly inserted rows land.
type Mode int

const (
	// Prepend puts new rows first (thread and notification feeds).
	Prepend Mode = iota
	// Append puts new rows last (posts and comments inside a thread).
	Append
)

// Change types carried by the realtime feed.
const (
	Insert = "INSERT"
	Update = "UPDATE"
	Delete = "DELETE"
)

// Change is one row change as delivered by the realtime endpoint.
type Change struct {
	Type            string          `json:"eventType"`
	Table           string          `json:"table"`
	New             json.RawMessage `json:"new,omitempty"`
	Old             json.RawMessage `json:"old,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// List is an ordered, id-keyed collection mutated by change events.
// It is safe for concurrent use; concurrent changes resolve last-writer-wins.
type List[T any, K comparable] struct {
	mu     sync.RWMutex
	mode   Mode
	key    func(T) K
	decode func(json.RawMessage) (T, error)
	items  []T
}

// Option configures a List.
type Option[T any, K comparable] func(*List[T, K])

// WithDecoder sets how inserted rows are turned into T. The default is
// json.Unmarshal.
func WithDecoder[T any, K comparable](fn func(json.RawMessage) (T, error)) Option[T, K] {
	return func(l *List[T, K]) { l.decode = fn }
}

// NewList creates an empty list keyed by key.
func NewList[T any, K comparable](mode Mode, key func(T) K, opts ...Option[T, K]) *List[T, K] {
	l := &List[T, K]{
		mode: mode,
		key:  key,
		decode: func(raw json.RawMessage) (T, error) {
			var v T
			err := json.Unmarshal(raw, &v)
			return v, err
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Items returns a snapshot of the list in display order.
func (l *List[T, K]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of rows held.
func (l *List[T, K]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Replace swaps the whole list, as when page 0 is (re)loaded.
func (l *List[T, K]) Replace(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items[:0:0], items...)
}

// Extend adds a later page at the end of the list. Rows already present
// (pushed by the realtime feed meanwhile) are updated in place.
func (l *List[T, K]) Extend(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, it := range items {
		if i := l.indexLocked(l.key(it)); i >= 0 {
			l.items[i] = it
			continue
		}
		l.items = append(l.items, it)
	}
}

// InsertLocal adds an optimistic row before the server confirms it. The
// echoed INSERT later merges into it instead of duplicating it.
func (l *List[T, K]) InsertLocal(row T) {
	l.ApplyInsert(row)
}

// ApplyInsert adds row according to the list's mode. A row whose id is
// already present replaces that entry in place.
func (l *List[T, K]) ApplyInsert(row T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexLocked(l.key(row)); i >= 0 {
		l.items[i] = row
		return
	}
	if l.mode == Prepend {
		l.items = append([]T{row}, l.items...)
		return
	}
	l.items = append(l.items, row)
}

// ApplyUpdate shallow-merges the fields present in patch into the row with the
// same id. Fields absent from patch, such as joined relations, keep their
// values. It reports whether a row matched.
func (l *List[T, K]) ApplyUpdate(patch json.RawMessage) (bool, error) {
	partial, err := l.decode(patch)
	if err != nil {
		return false, fmt.Errorf("decode update: %w", err)
	}
	id := l.key(partial)

	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(id)
	if i < 0 {
		return false, nil
	}
	merged, err := mergeJSON(l.items[i], patch)
	if err != nil {
		return false, err
	}
	l.items[i] = merged
	return true, nil
}

// ApplyDelete removes the row with id. It reports whether a row matched.
func (l *List[T, K]) ApplyDelete(id K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(id)
	if i < 0 {
		return false
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return true
}

// Apply dispatches a change event to the matching operation.
func (l *List[T, K]) Apply(c Change) error {
	switch c.Type {
	case Insert:
		row, err := l.decode(c.New)
		if err != nil {
			return fmt.Errorf("decode insert: %w", err)
		}
		l.ApplyInsert(row)
	case Update:
		if _, err := l.ApplyUpdate(c.New); err != nil {
			return err
		}
	case Delete:
		row, err := l.decode(c.Old)
		if err != nil {
			return fmt.Errorf("decode delete: %w", err)
		}
		l.ApplyDelete(l.key(row))
	default:
		return fmt.Errorf("unknown change type %q", c.Type)
	}
	return nil
}

func (l *List[T, K]) indexLocked(id K) int {
	for i := range l.items {
		if l.key(l.items[i]) == id {
			return i
		}
	}
	return -1
}

// mergeJSON overlays the top-level keys of patch onto the JSON form of base.
func mergeJSON[T any](base T, patch json.RawMessage) (T, error) {
	var out T
	b, err := json.Marshal(base)
	if err != nil {
		return out, fmt.Errorf("encode row: %w", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return out, fmt.Errorf("row is not an object: %w", err)
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return out, fmt.Errorf("patch is not an object: %w", err)
	}
	for k, v := range overlay {
		fields[k] = v
	}
	b, err = json.Marshal(fields)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}
