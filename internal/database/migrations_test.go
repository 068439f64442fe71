package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/quarryworks/formledger/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsBackfillsRowTimestamps(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&store.DocumentRow{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	row := store.DocumentRow{
		ID:               "doc-1",
		Collection:       "incident_report",
		BodyJSON:         `{"Owner":"alice"}`,
		UpdatedAtSeconds: 0,
	}
	if err := database.Create(&row).Error; err != nil {
		testContext.Fatalf("failed to insert row: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored store.DocumentRow
	if err := database.Where("id = ?", row.ID).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload row: %v", err)
	}
	if stored.UpdatedAtSeconds == 0 {
		testContext.Fatalf("expected row timestamp to be backfilled")
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillDocumentRowTimestamps).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}
