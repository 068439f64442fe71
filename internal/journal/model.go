package journal

import (
	"encoding/json"
	"fmt"

	"github.com/quarryworks/formledger/internal/store"
)

// Persisted metadata keys. Everything else at the top level of a stored
// document is a user field.
const (
	keyOwner           = "Owner"
	keyReporter        = "Reporter"
	keyTimestamp       = "Timestamp"
	keyJournal         = "Journal"
	keyApprover        = "Approver"
	keyApproval        = "Approval"
	keyApproverComment = "Approver_Comment"
	keySignature       = "Signature"
	keyMetadata        = "Metadata"
	keyActive          = "Active"
)

// Metadata carries per-write bookkeeping that is not part of the field set.
type Metadata struct {
	IPAddress    string            `json:"ip,omitempty"`
	ActionStamps map[string]string `json:"action_stamps,omitempty"`
}

func (m Metadata) empty() bool {
	return m.IPAddress == "" && len(m.ActionStamps) == 0
}

// Document is the full in-memory form of one submission record. Owner is set
// once at creation and never reassigned; the journal accumulates
// monotonically and is never truncated; deletion is a soft Active flip.
type Document struct {
	ID              string
	Fields          map[string]any
	Owner           string
	Reporter        string
	Timestamp       string
	Approver        string
	Approval        string
	ApproverComment string
	Signature       string
	Metadata        Metadata
	Journal         Journal
	Active          bool
}

// encode renders the document in the persisted record layout. Unset
// approval metadata is omitted rather than written as nulls.
func (d Document) encode() map[string]any {
	doc := make(map[string]any, len(d.Fields)+8)
	for name, value := range d.Fields {
		doc[name] = value
	}
	doc[keyOwner] = d.Owner
	doc[keyReporter] = d.Reporter
	doc[keyTimestamp] = d.Timestamp
	doc[keyJournal] = d.Journal
	doc[keyActive] = d.Active
	if d.Approver != "" {
		doc[keyApprover] = d.Approver
	}
	if d.Approval != "" {
		doc[keyApproval] = d.Approval
	}
	if d.ApproverComment != "" {
		doc[keyApproverComment] = d.ApproverComment
	}
	if d.Signature != "" {
		doc[keySignature] = d.Signature
	}
	if !d.Metadata.empty() {
		doc[keyMetadata] = d.Metadata
	}
	return doc
}

type persistedMetadata struct {
	Owner           string   `json:"Owner"`
	Reporter        string   `json:"Reporter"`
	Timestamp       string   `json:"Timestamp"`
	Approver        string   `json:"Approver"`
	Approval        string   `json:"Approval"`
	ApproverComment string   `json:"Approver_Comment"`
	Signature       string   `json:"Signature"`
	Metadata        Metadata `json:"Metadata"`
	Journal         Journal  `json:"Journal"`
	Active          *bool    `json:"Active"`
}

// decodeDocument rebuilds a Document from a store scan result. The raw JSON
// is decoded twice: once through the tagged struct for metadata (which keeps
// journal insertion order via the Journal codec) and once generically for
// the user fields.
func decodeDocument(record store.Document) (Document, error) {
	var meta persistedMetadata
	if err := json.Unmarshal(record.Raw, &meta); err != nil {
		return Document{}, fmt.Errorf("journal: decode document %s: %w", record.ID, err)
	}

	fields := make(map[string]any, len(record.Body))
	for name, value := range record.Body {
		if metadataKey(name) {
			continue
		}
		fields[name] = value
	}

	active := true
	if meta.Active != nil {
		active = *meta.Active
	}

	return Document{
		ID:              record.ID,
		Fields:          fields,
		Owner:           meta.Owner,
		Reporter:        meta.Reporter,
		Timestamp:       meta.Timestamp,
		Approver:        meta.Approver,
		Approval:        meta.Approval,
		ApproverComment: meta.ApproverComment,
		Signature:       meta.Signature,
		Metadata:        meta.Metadata,
		Journal:         meta.Journal,
		Active:          active,
	}, nil
}

func metadataKey(name string) bool {
	switch name {
	case keyOwner, keyReporter, keyTimestamp, keyJournal, keyApprover,
		keyApproval, keyApproverComment, keySignature, keyMetadata, keyActive:
		return true
	default:
		return false
	}
}
