package database

import (
	"errors"
	"time"

	"github.com/quarryworks/formledger/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillDocumentRowTimestamps = "2026-03-18_backfill_document_row_timestamps"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillDocumentRowTimestamps, apply: backfillDocumentRowTimestamps},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows written before the updated_at_s column existed carry a zero stamp,
// which breaks the collection scan ordering. Backfill them with now.
func backfillDocumentRowTimestamps(db *gorm.DB) error {
	return db.Model(&store.DocumentRow{}).
		Where("updated_at_s = 0").
		Update("updated_at_s", time.Now().UTC().Unix()).Error
}
