package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Document{}); err != nil {
		t.Fatalf("failed to migrate document schema: %v", err)
	}
	documentStore, err := NewStore(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1700000000, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return documentStore
}

func TestLoadMissingKeyLeavesZeroValue(t *testing.T) {
	documentStore := newTestStore(t)

	var records []string
	if err := documentStore.Load(context.Background(), "users", &records); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty sequence for missing key, got %v", records)
	}

	_, found, err := documentStore.Get(context.Background(), "users")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found {
		t.Fatal("expected missing key to report not found")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	documentStore := newTestStore(t)

	saved := map[string][]string{"alice_bob": {"hi"}}
	if err := documentStore.Save(context.Background(), "chats", saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded := map[string][]string{}
	if err := documentStore.Load(context.Background(), "chats", &loaded); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded["alice_bob"]) != 1 || loaded["alice_bob"][0] != "hi" {
		t.Fatalf("unexpected round trip result: %v", loaded)
	}
}

func TestSetOverwritesExistingDocument(t *testing.T) {
	documentStore := newTestStore(t)

	if err := documentStore.Set(context.Background(), "doc", json.RawMessage(`"first"`)); err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	if err := documentStore.Set(context.Background(), "doc", json.RawMessage(`"second"`)); err != nil {
		t.Fatalf("second set failed: %v", err)
	}

	raw, found, err := documentStore.Get(context.Background(), "doc")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found || string(raw) != `"second"` {
		t.Fatalf("expected overwritten value, got %q (found=%v)", raw, found)
	}
}

func TestRemoveDeletesOnlyTargetKey(t *testing.T) {
	documentStore := newTestStore(t)

	if err := documentStore.Save(context.Background(), "keep", "kept"); err != nil {
		t.Fatalf("save keep failed: %v", err)
	}
	if err := documentStore.Save(context.Background(), "drop", "dropped"); err != nil {
		t.Fatalf("save drop failed: %v", err)
	}
	if err := documentStore.Remove(context.Background(), "drop"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	_, found, err := documentStore.Get(context.Background(), "drop")
	if err != nil {
		t.Fatalf("get removed failed: %v", err)
	}
	if found {
		t.Fatal("expected removed key to be absent")
	}
	_, found, err = documentStore.Get(context.Background(), "keep")
	if err != nil {
		t.Fatalf("get sibling failed: %v", err)
	}
	if !found {
		t.Fatal("expected sibling key to survive removal")
	}
}

func TestUpdateAppliesMutationTransactionally(t *testing.T) {
	documentStore := newTestStore(t)

	appendEntry := func(entry string) error {
		return documentStore.Update(context.Background(), "log", func(raw json.RawMessage) (any, error) {
			var entries []string
			if raw != nil {
				if err := json.Unmarshal(raw, &entries); err != nil {
					return nil, err
				}
			}
			return append(entries, entry), nil
		})
	}

	if err := appendEntry("one"); err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	if err := appendEntry("two"); err != nil {
		t.Fatalf("second update failed: %v", err)
	}

	var entries []string
	if err := documentStore.Load(context.Background(), "log", &entries); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(entries) != 2 || entries[0] != "one" || entries[1] != "two" {
		t.Fatalf("expected both updates to land in order, got %v", entries)
	}
}

func TestUpdateMutationErrorLeavesDocumentUnchanged(t *testing.T) {
	documentStore := newTestStore(t)

	if err := documentStore.Save(context.Background(), "doc", "before"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	err := documentStore.Update(context.Background(), "doc", func(json.RawMessage) (any, error) {
		return nil, context.Canceled
	})
	if err == nil {
		t.Fatal("expected mutation error to propagate")
	}

	var value string
	if err := documentStore.Load(context.Background(), "doc", &value); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if value != "before" {
		t.Fatalf("expected document unchanged after failed update, got %q", value)
	}
}

func TestKeysFiltersByPrefix(t *testing.T) {
	documentStore := newTestStore(t)

	for _, key := range []string{"acceptedPlaydate_bob", "acceptedPlaydate_alice", "users"} {
		if err := documentStore.Save(context.Background(), key, "x"); err != nil {
			t.Fatalf("save %q failed: %v", key, err)
		}
	}

	keys, err := documentStore.Keys(context.Background(), "acceptedPlaydate_")
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "acceptedPlaydate_alice" || keys[1] != "acceptedPlaydate_bob" {
		t.Fatalf("unexpected prefixed keys: %v", keys)
	}
}
