package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "store.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&DocumentRow{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func TestGormStoreRoundTrip(t *testing.T) {
	db := openTestDatabase(t)
	current := time.Unix(1700000000, 0).UTC()
	gormStore, err := NewGormStore(GormStoreConfig{
		Database: db,
		Clock:    func() time.Time { return current },
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()

	id, err := gormStore.InsertOne(ctx, "incident_report", map[string]any{
		"Owner":      "alice",
		"Risk_Level": "low",
		"Crew_Size":  int64(4),
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	documents, err := gormStore.Find(ctx, "incident_report")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(documents) != 1 || documents[0].ID != id {
		t.Fatalf("unexpected scan result: %#v", documents)
	}
	if documents[0].Body["Owner"] != "alice" {
		t.Fatalf("unexpected body: %#v", documents[0].Body)
	}
	// Numbers come back as float64 after the JSON round trip.
	if documents[0].Body["Crew_Size"] != float64(4) {
		t.Fatalf("expected float64 crew size, got %T", documents[0].Body["Crew_Size"])
	}

	current = current.Add(time.Minute)
	if _, err := gormStore.UpdateOne(ctx, "incident_report", id, map[string]any{
		"Owner":      "alice",
		"Risk_Level": "high",
	}, false); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	documents, err = gormStore.Find(ctx, "incident_report")
	if err != nil {
		t.Fatalf("find after update failed: %v", err)
	}
	if documents[0].Body["Risk_Level"] != "high" {
		t.Fatalf("expected replaced body, got %#v", documents[0].Body)
	}
	if _, present := documents[0].Body["Crew_Size"]; present {
		t.Fatalf("update must replace the whole body, got %#v", documents[0].Body)
	}
}

func TestGormStoreUpsertSemantics(t *testing.T) {
	db := openTestDatabase(t)
	gormStore, err := NewGormStore(GormStoreConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()

	if _, err := gormStore.UpdateOne(ctx, "incident_report", "ghost", map[string]any{}, false); err == nil {
		t.Fatalf("expected unknown id to fail without upsert")
	}

	id, err := gormStore.UpdateOne(ctx, "incident_report", "ghost", map[string]any{"Owner": "alice"}, true)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if id != "ghost" {
		t.Fatalf("upsert must keep the caller-provided id, got %q", id)
	}

	documents, err := gormStore.Find(ctx, "incident_report")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(documents) != 1 {
		t.Fatalf("expected one document, got %d", len(documents))
	}
}
