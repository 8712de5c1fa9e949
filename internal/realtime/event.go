// Package realtime carries row change events from writers to websocket subscribers.
package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// EventType is the kind of row change.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is one row change. New is empty for deletes, Old is empty for inserts.
type Event struct {
	Type            EventType       `json:"eventType" msgpack:"type"`
	Table           string          `json:"table" msgpack:"table"`
	New             json.RawMessage `json:"new,omitempty" msgpack:"new"`
	Old             json.RawMessage `json:"old,omitempty" msgpack:"old"`
	CommitTimestamp time.Time       `json:"commit_timestamp" msgpack:"ts"`
}

// NewEvent builds an event, encoding rows as JSON. Either row may be nil.
func NewEvent(t EventType, table string, newRow, oldRow any) (Event, error) {
	evt := Event{Type: t, Table: table, CommitTimestamp: time.Now().UTC()}
	var err error
	if newRow != nil {
		if evt.New, err = json.Marshal(newRow); err != nil {
			return Event{}, fmt.Errorf("marshal new row: %w", err)
		}
	}
	if oldRow != nil {
		if evt.Old, err = json.Marshal(oldRow); err != nil {
			return Event{}, fmt.Errorf("marshal old row: %w", err)
		}
	}
	return evt, nil
}

// Row returns the row the event describes: New, or Old for deletes.
func (e Event) Row() json.RawMessage {
	if len(e.New) > 0 {
		return e.New
	}
	return e.Old
}

// Encode serializes the event for the Redis bus.
func (e Event) Encode() ([]byte, error) {
	return msgpack.Marshal(&e)
}

// DecodeEvent parses an event read from the Redis bus.
func DecodeEvent(b []byte) (Event, error) {
	var e Event
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}

// Filter restricts a table subscription to rows whose Column equals Value.
type Filter struct {
	Column string
	Value  string
}

// String renders the filter in column=eq.value form.
func (f Filter) String() string {
	return f.Column + "=eq." + f.Value
}

// ParseFilter parses "column=eq.value". An empty string yields nil.
func ParseFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	col, val, ok := strings.Cut(s, "=eq.")
	if !ok || col == "" || val == "" || !isIdent(col) {
		return nil, fmt.Errorf("invalid filter %q: want column=eq.value", s)
	}
	return &Filter{Column: col, Value: val}, nil
}

func isIdent(s string) bool {
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

const channelPrefix = "realtime:"

// Channel derives the bus channel for a table and optional filter.
func Channel(table string, f *Filter) string {
	if f == nil {
		return channelPrefix + table
	}
	return channelPrefix + table + ":" + f.String()
}

// FilterColumns are the row columns that fan out to filtered channels.
var FilterColumns = []string{"thread_id", "post_id", "user_id"}

// Channels lists every channel an event is published on: the table channel
// plus one filtered channel per FilterColumns entry present in the row.
func (e Event) Channels() []string {
	channels := []string{Channel(e.Table, nil)}
	row := e.Row()
	if len(row) == 0 {
		return channels
	}

	dec := json.NewDecoder(bytes.NewReader(row))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return channels
	}
	for _, col := range FilterColumns {
		v, ok := fields[col]
		if !ok || v == nil {
			continue
		}
		channels = append(channels, Channel(e.Table, &Filter{Column: col, Value: scalar(v)}))
	}
	return channels
}

func scalar(v any) string {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
