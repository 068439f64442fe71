package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxIdentifierLength = 190

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// DocumentRow is the relational backing for one stored document. Documents
// are kept as opaque JSON bodies so the relational schema never has to track
// per-form fields.
type DocumentRow struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null"`
	Collection       string `gorm:"column:collection;size:190;not null;index:idx_document_rows_collection"`
	BodyJSON         string `gorm:"column:body_json;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (DocumentRow) TableName() string {
	return "document_rows"
}

// GormStoreConfig describes the dependencies of the SQL-backed store.
type GormStoreConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// GormStore implements Store on top of a GORM handle. Every call runs as its
// own short statement; no session state is held between operations.
type GormStore struct {
	db         *gorm.DB
	idProvider IDProvider
	clock      func() time.Time
	logger     *zap.Logger
}

// NewGormStore constructs a SQL-backed document store.
func NewGormStore(cfg GormStoreConfig) (*GormStore, error) {
	if cfg.Database == nil {
		return nil, newStorageError("store.new.missing_database", errMissingDatabase)
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &GormStore{db: cfg.Database, idProvider: idProvider, clock: clock, logger: logger}, nil
}

// InsertOne persists a new document and returns its generated identifier.
func (s *GormStore) InsertOne(ctx context.Context, collection string, doc map[string]any) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", newStorageError("store.insert_one.invalid_collection", err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", newStorageError("store.insert_one.encode_failed", err)
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return "", newStorageError("store.insert_one.id_generation_failed", err)
	}
	row := DocumentRow{
		ID:               id,
		Collection:       collection,
		BodyJSON:         string(body),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Error("document insert failed",
			zap.String("operation", "store.insert_one"),
			zap.String("collection", collection),
			zap.Error(err))
		return "", newStorageError("store.insert_one.insert_failed", err)
	}
	return id, nil
}

// Find returns every document in the collection, oldest row first.
func (s *GormStore) Find(ctx context.Context, collection string) ([]Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, newStorageError("store.find.invalid_collection", err)
	}
	var rows []DocumentRow
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("updated_at_s ASC").
		Find(&rows).Error; err != nil {
		s.logger.Error("document scan failed",
			zap.String("operation", "store.find"),
			zap.String("collection", collection),
			zap.Error(err))
		return nil, newStorageError("store.find.query_failed", err)
	}

	documents := make([]Document, 0, len(rows))
	for _, row := range rows {
		body := map[string]any{}
		if err := json.Unmarshal([]byte(row.BodyJSON), &body); err != nil {
			return nil, newStorageError("store.find.decode_failed", err)
		}
		documents = append(documents, Document{ID: row.ID, Body: body, Raw: []byte(row.BodyJSON)})
	}
	return documents, nil
}

// UpdateOne replaces the stored body for id. With upsert it creates the row
// when the id is unknown; otherwise an unknown id is an error.
func (s *GormStore) UpdateOne(ctx context.Context, collection string, id string, doc map[string]any, upsert bool) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", newStorageError("store.update_one.invalid_collection", err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", newStorageError("store.update_one.encode_failed", err)
	}

	result := s.db.WithContext(ctx).
		Model(&DocumentRow{}).
		Where("id = ? AND collection = ?", id, collection).
		Updates(map[string]any{
			"body_json":    string(body),
			"updated_at_s": s.clock().UTC().Unix(),
		})
	if result.Error != nil {
		s.logger.Error("document update failed",
			zap.String("operation", "store.update_one"),
			zap.String("collection", collection),
			zap.String("document_id", id),
			zap.Error(result.Error))
		return "", newStorageError("store.update_one.update_failed", result.Error)
	}
	if result.RowsAffected > 0 {
		return id, nil
	}
	if !upsert {
		return "", newStorageError("store.update_one.unknown_id", fmt.Errorf("%w: %s", ErrUnknownDocument, id))
	}

	row := DocumentRow{
		ID:               id,
		Collection:       collection,
		BodyJSON:         string(body),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", newStorageError("store.update_one.upsert_failed", err)
	}
	return id, nil
}

func validateCollection(collection string) error {
	if collection == "" {
		return errors.New("collection name is required")
	}
	if len(collection) > maxIdentifierLength {
		return fmt.Errorf("collection name exceeds %d characters", maxIdentifierLength)
	}
	return nil
}
