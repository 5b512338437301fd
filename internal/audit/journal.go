package audit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/veilbase/sealstore/internal/vault"
)

// Package audit records vault notifications in an in-memory journal and
// provides a small filter language to query them. Filters can also be
// rendered as CQL against the Cassandra archive's events table, so the same
// expression works against the live journal and the durable history.

// Journal accumulates vault events in arrival order
type Journal struct {
	events []vault.Event
	mu     sync.RWMutex
}

// NewJournal creates an empty journal
func NewJournal() *Journal {
	return &Journal{}
}

// Listener returns an EventListener that appends into the journal
func (j *Journal) Listener() vault.EventListener {
	return func(_ context.Context, ev vault.Event) {
		j.mu.Lock()
		defer j.mu.Unlock()
		j.events = append(j.events, ev)
	}
}

// Events returns a copy of all recorded events
func (j *Journal) Events() []vault.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]vault.Event, len(j.events))
	copy(out, j.events)
	return out
}

// Filter selects journal events. Zero-valued fields match everything.
type Filter struct {
	Type    vault.EventType
	Key     *vault.Key
	Request *vault.RequestID
	Since   time.Time
}

// ParseFilter parses a filter expression of space-separated field=value
// terms, e.g. `type=value_published key=3 since=2026-01-02T15:04:05Z`
func ParseFilter(expr string) (*Filter, error) {
	f := &Filter{}
	terms := strings.Fields(strings.TrimSpace(expr))
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty filter")
	}

	for _, term := range terms {
		field, value, found := strings.Cut(term, "=")
		if !found || value == "" {
			return nil, fmt.Errorf("invalid term: %s", term)
		}
		switch field {
		case "type":
			f.Type = vault.EventType(value)
		case "key":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid key %q: %w", value, err)
			}
			key := vault.Key(n)
			f.Key = &key
		case "request":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid request %q: %w", value, err)
			}
			id := vault.RequestID(n)
			f.Request = &id
		case "since":
			ts, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, fmt.Errorf("invalid since %q: %w", value, err)
			}
			f.Since = ts
		default:
			return nil, fmt.Errorf("unknown field: %s", field)
		}
	}
	return f, nil
}

// TranslateToCQL renders the filter as a CQL statement over the archive's
// events table
func TranslateToCQL(f *Filter) (string, []interface{}, error) {
	var conditions []string
	var args []interface{}

	if f.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Key != nil {
		conditions = append(conditions, "keys CONTAINS ?")
		args = append(args, int64(*f.Key))
	}
	if f.Request != nil {
		conditions = append(conditions, "request_id = ?")
		args = append(args, int64(*f.Request))
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "emitted_at >= ?")
		args = append(args, f.Since)
	}
	if len(conditions) == 0 {
		return "", nil, fmt.Errorf("filter matches everything")
	}

	cql := fmt.Sprintf("SELECT id, type, caller, request_id, keys, emitted_at FROM events WHERE %s ALLOW FILTERING",
		strings.Join(conditions, " AND "))
	return cql, args, nil
}

// Query evaluates the filter against the journal
func (j *Journal) Query(f *Filter) []vault.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []vault.Event
	for _, ev := range j.events {
		if matches(f, ev) {
			out = append(out, ev)
		}
	}
	return out
}

func matches(f *Filter, ev vault.Event) bool {
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	if f.Key != nil && !containsKey(ev.Keys, *f.Key) {
		return false
	}
	if f.Request != nil && ev.RequestID != *f.Request {
		return false
	}
	if !f.Since.IsZero() && ev.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

func containsKey(keys []vault.Key, key vault.Key) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
