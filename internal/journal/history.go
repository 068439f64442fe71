package journal

import (
	"context"
	"errors"
	"sort"

	"github.com/quarryworks/formledger/internal/store"
	"go.uber.org/zap"
)

// Snapshot is the complete field-state of a document as of one recorded
// timestamp, plus the names of the fields that changed at that version.
type Snapshot struct {
	Timestamp string
	Fields    FieldMap
	Changed   []string
}

// History is the ordered sequence of reconstructed snapshots, oldest first.
type History struct {
	Snapshots []Snapshot
}

// At returns the snapshot recorded at timestamp.
func (h History) At(timestamp string) (Snapshot, bool) {
	for _, snapshot := range h.Snapshots {
		if snapshot.Timestamp == timestamp {
			return snapshot, true
		}
	}
	return Snapshot{}, false
}

// Latest returns the most recent snapshot.
func (h History) Latest() (Snapshot, bool) {
	if len(h.Snapshots) == 0 {
		return Snapshot{}, false
	}
	return h.Snapshots[len(h.Snapshots)-1], true
}

// ReconstructorConfig describes the dependencies for history replay.
type ReconstructorConfig struct {
	Store  store.Store
	Logger *zap.Logger
}

// Reconstructor replays journal diffs in temporal order to rebuild the full
// field-state of a document at every recorded timestamp.
type Reconstructor struct {
	store  store.Store
	logger *zap.Logger
}

// NewReconstructor constructs a Reconstructor.
func NewReconstructor(cfg ReconstructorConfig) (*Reconstructor, error) {
	if cfg.Store == nil {
		return nil, errors.New("journal: document store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{store: cfg.Store, logger: logger}, nil
}

// Document fetches one document by id. A missing id is a normal navigation
// outcome (stale link) reported as ok=false, not an error.
func (r *Reconstructor) Document(ctx context.Context, collection, id string) (Document, bool, error) {
	records, err := r.store.Find(ctx, collection)
	if err != nil {
		return Document{}, false, err
	}
	for _, record := range records {
		if record.ID != id {
			continue
		}
		document, err := decodeDocument(record)
		if err != nil {
			return Document{}, false, err
		}
		return document, true, nil
	}
	return Document{}, false, nil
}

// History replays the document's journal and returns every version.
func (r *Reconstructor) History(ctx context.Context, collection, id string) (History, bool, error) {
	document, ok, err := r.Document(ctx, collection, id)
	if err != nil || !ok {
		return History{}, false, err
	}
	return Replay(document.Journal), true, nil
}

// HistoryForOwner is History restricted to documents owned by owner. A
// document owned by someone else is reported as not found.
func (r *Reconstructor) HistoryForOwner(ctx context.Context, collection, id, owner string) (History, bool, error) {
	document, ok, err := r.Document(ctx, collection, id)
	if err != nil || !ok {
		return History{}, false, err
	}
	if document.Owner != owner {
		return History{}, false, nil
	}
	return Replay(document.Journal), true, nil
}

// Replay folds the journal in insertion order: the first entry is the full
// baseline, every later entry overlays only its changed fields on the state
// immediately prior. Ordering is a hard invariant: an out-of-order fold
// silently produces wrong snapshots, so the order comes from the journal's
// explicit key list, never a sort.
func Replay(j Journal) History {
	timestamps := j.Timestamps()
	history := History{Snapshots: make([]Snapshot, 0, len(timestamps))}

	current := FieldMap{}
	for _, timestamp := range timestamps {
		entry, _ := j.Entry(timestamp)
		merged := make(FieldMap, len(current)+len(entry))
		for name, value := range current {
			merged[name] = value
		}
		changed := make([]string, 0, len(entry))
		for name, value := range entry {
			merged[name] = value
			changed = append(changed, name)
		}
		sort.Strings(changed)
		history.Snapshots = append(history.Snapshots, Snapshot{
			Timestamp: timestamp,
			Fields:    merged,
			Changed:   changed,
		})
		current = merged
	}
	return history
}
