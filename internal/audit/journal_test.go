package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	archivemock "github.com/veilbase/sealstore/internal/archive/mock"
	oraclemock "github.com/veilbase/sealstore/internal/oracle/mock"
	"github.com/veilbase/sealstore/internal/vault"
)

func TestJournalRecordsVaultEvents(t *testing.T) {
	ctx := context.Background()
	oracle := oraclemock.NewOracle("oracle-test", 0)
	v, err := vault.NewSealedVault(oracle, archivemock.NewArchive(), vault.DefaultConfig(), "tester", nil)
	if err != nil {
		t.Fatalf("Failed to create vault: %v", err)
	}
	defer v.Close()

	journal := NewJournal()
	v.RegisterListener(journal.Listener())

	if err := v.Publish(ctx, 1, []byte{1}); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}
	if err := v.PublishBatch(ctx, []vault.Key{2, 3}, [][]byte{{2}, {3}}); err != nil {
		t.Fatalf("Failed to publish batch: %v", err)
	}

	events := journal.Events()
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	if events[0].Type != vault.EventValueStored || events[2].Type != vault.EventBatchStored {
		t.Errorf("Unexpected event order: %v, %v", events[0].Type, events[2].Type)
	}
	if events[2].Caller != "tester" {
		t.Errorf("Expected caller tester, got %s", events[2].Caller)
	}
	if len(events[2].Keys) != 2 {
		t.Errorf("Expected 2 keys on batch event, got %v", events[2].Keys)
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("type=value_published key=3 request=7 since=2026-01-02T15:04:05Z")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if f.Type != vault.EventValuePublished {
		t.Errorf("Unexpected type: %s", f.Type)
	}
	if f.Key == nil || *f.Key != 3 {
		t.Errorf("Unexpected key: %v", f.Key)
	}
	if f.Request == nil || *f.Request != 7 {
		t.Errorf("Unexpected request: %v", f.Request)
	}
	if f.Since.Year() != 2026 {
		t.Errorf("Unexpected since: %v", f.Since)
	}
}

func TestParseFilterRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "type", "key=abc", "since=yesterday", "owner=bob"}
	for _, expr := range cases {
		if _, err := ParseFilter(expr); err == nil {
			t.Errorf("Expected error for %q", expr)
		}
	}
}

func TestTranslateToCQL(t *testing.T) {
	key := vault.Key(3)
	f := &Filter{Type: vault.EventBatchStored, Key: &key}

	cql, args, err := TranslateToCQL(f)
	if err != nil {
		t.Fatalf("Failed to translate: %v", err)
	}
	if !strings.Contains(cql, "type = ?") || !strings.Contains(cql, "keys CONTAINS ?") {
		t.Errorf("Unexpected CQL: %s", cql)
	}
	if len(args) != 2 {
		t.Errorf("Expected 2 args, got %d", len(args))
	}

	if _, _, err := TranslateToCQL(&Filter{}); err == nil {
		t.Error("Expected error for unconstrained filter")
	}
}

func TestQueryFiltersEvents(t *testing.T) {
	journal := NewJournal()
	listener := journal.Listener()
	ctx := context.Background()

	listener(ctx, vault.Event{ID: "a", Type: vault.EventValueStored, Keys: []vault.Key{1}, Timestamp: time.Now()})
	listener(ctx, vault.Event{ID: "b", Type: vault.EventValuePublished, Keys: []vault.Key{1}, Timestamp: time.Now()})
	listener(ctx, vault.Event{ID: "c", Type: vault.EventBatchStored, Keys: []vault.Key{2, 3}, RequestID: 7, Timestamp: time.Now()})

	f, err := ParseFilter("type=batch_stored")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	got := journal.Query(f)
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("Expected single batch event, got %v", got)
	}

	f, err = ParseFilter("key=1")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if got := journal.Query(f); len(got) != 2 {
		t.Errorf("Expected 2 events for key 1, got %d", len(got))
	}

	f, err = ParseFilter("request=7")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if got := journal.Query(f); len(got) != 1 || got[0].ID != "c" {
		t.Errorf("Expected request 7 to match event c, got %v", got)
	}
}
