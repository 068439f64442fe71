package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreInsertFindUpdate(t *testing.T) {
	memory := NewMemoryStore()
	ctx := context.Background()

	id, err := memory.InsertOne(ctx, "incident_report", map[string]any{"Owner": "alice", "Risk_Level": "low"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a generated id")
	}

	documents, err := memory.Find(ctx, "incident_report")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(documents) != 1 || documents[0].ID != id {
		t.Fatalf("unexpected scan result: %#v", documents)
	}
	if documents[0].Body["Risk_Level"] != "low" {
		t.Fatalf("unexpected body: %#v", documents[0].Body)
	}
	if len(documents[0].Raw) == 0 {
		t.Fatalf("expected raw JSON alongside the decoded body")
	}

	if _, err := memory.UpdateOne(ctx, "incident_report", id, map[string]any{"Owner": "alice", "Risk_Level": "high"}, false); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	documents, err = memory.Find(ctx, "incident_report")
	if err != nil {
		t.Fatalf("find after update failed: %v", err)
	}
	if documents[0].Body["Risk_Level"] != "high" {
		t.Fatalf("expected replaced body, got %#v", documents[0].Body)
	}
}

func TestMemoryStoreUpdateUnknownID(t *testing.T) {
	memory := NewMemoryStore()
	ctx := context.Background()

	_, err := memory.UpdateOne(ctx, "incident_report", "ghost", map[string]any{}, false)
	var storageError *StorageError
	if !errors.As(err, &storageError) {
		t.Fatalf("expected a StorageError, got %v", err)
	}
	if !errors.Is(err, ErrUnknownDocument) {
		t.Fatalf("expected unknown-document cause, got %v", err)
	}

	id, err := memory.UpdateOne(ctx, "incident_report", "ghost", map[string]any{"Owner": "alice"}, true)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if id != "ghost" {
		t.Fatalf("upsert must keep the caller-provided id, got %q", id)
	}
}

func TestMemoryStoreRejectsEmptyCollection(t *testing.T) {
	memory := NewMemoryStore()
	if _, err := memory.InsertOne(context.Background(), "", map[string]any{}); err == nil {
		t.Fatalf("expected an error for an empty collection name")
	}
	if _, err := memory.Find(context.Background(), ""); err == nil {
		t.Fatalf("expected an error for an empty collection name")
	}
}

func TestMemoryStoreIsolatesCollections(t *testing.T) {
	memory := NewMemoryStore()
	ctx := context.Background()

	if _, err := memory.InsertOne(ctx, "incident_report", map[string]any{"Owner": "alice"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	documents, err := memory.Find(ctx, "site_survey")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(documents) != 0 {
		t.Fatalf("expected empty collection, got %d documents", len(documents))
	}
}
