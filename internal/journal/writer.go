package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quarryworks/formledger/internal/attest"
	"github.com/quarryworks/formledger/internal/schema"
	"github.com/quarryworks/formledger/internal/store"
	"go.uber.org/zap"
)

// TimestampLayout formats journal keys. The layout is fixed-width so the
// keys read naturally, but replay order never relies on it sorting.
const TimestampLayout = "2006-01-02 15:04:05.000000"

var (
	errMissingStore          = errors.New("document store is required")
	errMissingCertificate    = errors.New("caller certificate is required")
	errUnknownDocument       = errors.New("unknown document")
	errMissingCallerIdentity = errors.New("caller identity is required")
	noOpLogger               = zap.NewNop()
)

// ServiceError wraps a writer failure with a dotted operation code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opWriterNew  = "journal.writer.new"
	opCreate     = "journal.create"
	opModify     = "journal.modify"
	opReview     = "journal.review"
	opDeactivate = "journal.deactivate"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// Identity describes the caller on a write. Anonymous/external flows leave
// Username empty and carry the email and access token instead.
type Identity struct {
	Username    string
	Email       string
	Token       string
	Certificate string
	Group       string
	IPAddress   string
}

// Reporter renders the identity recorded on the document: the authenticated
// username, or "<email> <token>" for external submissions.
func (i Identity) Reporter() string {
	if i.Username != "" {
		return i.Username
	}
	return strings.TrimSpace(i.Email + " " + i.Token)
}

// Decision is the outcome selected on an approval review.
type Decision int

const (
	// DecisionNone records no approval outcome.
	DecisionNone Decision = iota
	// DecisionApprove seals the approval base string.
	DecisionApprove
	// DecisionDisapprove seals the disapproval base string.
	DecisionDisapprove
)

// ApproverSource resolves a named field on a reporter's account record, for
// forms whose approval policy routes through the reporter's own record.
type ApproverSource interface {
	AccountField(ctx context.Context, username, field string) (string, bool, error)
}

// WriterConfig describes the dependencies of the journal writer.
type WriterConfig struct {
	Store     store.Store
	Approvers ApproverSource
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Writer owns every mutation of submission documents. Per-document lifecycle:
// NonExistent -> Created -> Modified* -> (Approved | Disapproved)?. Documents
// are soft-deleted, never destroyed.
type Writer struct {
	store     store.Store
	approvers ApproverSource
	clock     func() time.Time
	logger    *zap.Logger
	history   *Reconstructor
}

// NewWriter constructs a Writer.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opWriterNew, "missing_store", errMissingStore)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	history, err := NewReconstructor(ReconstructorConfig{Store: cfg.Store, Logger: logger})
	if err != nil {
		return nil, newServiceError(opWriterNew, "reconstructor_failed", err)
	}
	return &Writer{
		store:     cfg.Store,
		approvers: cfg.Approvers,
		clock:     clock,
		logger:    logger,
		history:   history,
	}, nil
}

// Create persists a brand-new document from parsed fields. The journal is
// seeded with a full baseline snapshot; the owner is fixed to the reporter
// forever.
func (w *Writer) Create(ctx context.Context, form schema.FormSchema, values map[string]schema.Value, caller Identity) (string, error) {
	reporter := caller.Reporter()
	if reporter == "" {
		return "", newServiceError(opCreate, "missing_caller", errMissingCallerIdentity)
	}

	timestamp := w.clock().UTC().Format(TimestampLayout)
	fields := make(FieldMap, len(values))
	baseline := make(FieldMap, len(values))
	for name, value := range values {
		if metadataKey(name) || strings.HasPrefix(name, schema.ReservedPrefix) {
			continue
		}
		native := value.Native()
		fields[name] = native
		baseline[name] = native
	}

	document := Document{
		Fields:    fields,
		Owner:     reporter,
		Reporter:  reporter,
		Timestamp: timestamp,
		Active:    true,
	}
	document.Journal.Append(timestamp, baseline)

	approver, err := w.resolveApprover(ctx, form.ApprovalPolicy, caller)
	if err != nil {
		w.logError(opCreate, "approver_resolution_failed", err, zap.String("form", form.Name))
		return "", newServiceError(opCreate, "approver_resolution_failed", err)
	}
	document.Approver = approver

	if form.SignatureRequired {
		if caller.Certificate == "" {
			return "", newServiceError(opCreate, "missing_certificate", errMissingCertificate)
		}
		signature, err := attest.Seal(caller.Certificate, attest.SignatureBase)
		if err != nil {
			return "", newServiceError(opCreate, "signature_failed", err)
		}
		document.Signature = signature
	}

	if form.CaptureClientIP && caller.IPAddress != "" {
		document.Metadata.IPAddress = caller.IPAddress
		document.Metadata.ActionStamps = map[string]string{"created": timestamp}
	}

	id, err := w.store.InsertOne(ctx, form.Name, document.encode())
	if err != nil {
		w.logError(opCreate, "insert_failed", err, zap.String("form", form.Name))
		return "", err
	}
	return id, nil
}

// Modify appends a changed-fields-only diff to an existing document's
// journal and overwrites the top-level current fields. The prior full state
// is always reconstructed from the journal first; a submission identical to
// it writes nothing at all.
func (w *Writer) Modify(ctx context.Context, form schema.FormSchema, id string, values map[string]schema.Value, caller Identity) error {
	reporter := caller.Reporter()
	if reporter == "" {
		return newServiceError(opModify, "missing_caller", errMissingCallerIdentity)
	}

	document, ok, err := w.history.Document(ctx, form.Name, id)
	if err != nil {
		return err
	}
	if !ok {
		return newServiceError(opModify, "unknown_document", fmt.Errorf("%w: %s", errUnknownDocument, id))
	}

	prior := FieldMap{}
	if latest, found := Replay(document.Journal).Latest(); found {
		prior = latest.Fields
	}

	diff := FieldMap{}
	for name, value := range values {
		// The journal itself is never part of a diff.
		if metadataKey(name) || strings.HasPrefix(name, schema.ReservedPrefix) {
			continue
		}
		if stored, present := prior[name]; present && value.Equal(stored) {
			continue
		}
		diff[name] = value.Native()
	}
	if len(diff) == 0 {
		return nil
	}

	timestamp := uniqueTimestamp(document.Journal, w.clock().UTC())
	for name, value := range diff {
		document.Fields[name] = value
	}
	document.Reporter = reporter
	document.Timestamp = timestamp
	document.Journal.Append(timestamp, diff)
	if form.CaptureClientIP && caller.IPAddress != "" {
		document.Metadata.IPAddress = caller.IPAddress
		if document.Metadata.ActionStamps == nil {
			document.Metadata.ActionStamps = map[string]string{}
		}
		document.Metadata.ActionStamps["modified"] = timestamp
	}

	if _, err := w.store.UpdateOne(ctx, form.Name, id, document.encode(), false); err != nil {
		w.logError(opModify, "update_failed", err,
			zap.String("form", form.Name),
			zap.String("document_id", id))
		return err
	}
	return nil
}

// Review records an approval outcome. It is a constrained modify: only the
// approval, approver, and approver-comment fields are ever touched, field
// validators do not apply, and changed-value detection gates the write so a
// no-op resubmission writes nothing.
func (w *Writer) Review(ctx context.Context, form schema.FormSchema, id string, decision Decision, comment string, caller Identity) error {
	document, ok, err := w.history.Document(ctx, form.Name, id)
	if err != nil {
		return err
	}
	if !ok {
		return newServiceError(opReview, "unknown_document", fmt.Errorf("%w: %s", errUnknownDocument, id))
	}

	diff := FieldMap{}
	if decision != DecisionNone {
		if caller.Certificate == "" {
			return newServiceError(opReview, "missing_certificate", errMissingCertificate)
		}
		base := attest.ApprovalBase
		if decision == DecisionDisapprove {
			base = attest.DisapprovalBase
		}
		approval, err := attest.Seal(caller.Certificate, base)
		if err != nil {
			return newServiceError(opReview, "seal_failed", err)
		}
		document.Approval = approval
		diff[keyApproval] = approval
		if reviewer := caller.Reporter(); reviewer != document.Approver {
			document.Approver = reviewer
			diff[keyApprover] = reviewer
		}
	}
	if comment != document.ApproverComment {
		document.ApproverComment = comment
		diff[keyApproverComment] = comment
	}
	if len(diff) == 0 {
		return nil
	}

	timestamp := uniqueTimestamp(document.Journal, w.clock().UTC())
	document.Timestamp = timestamp
	document.Journal.Append(timestamp, diff)
	if form.CaptureClientIP && caller.IPAddress != "" {
		document.Metadata.IPAddress = caller.IPAddress
		if document.Metadata.ActionStamps == nil {
			document.Metadata.ActionStamps = map[string]string{}
		}
		document.Metadata.ActionStamps["reviewed"] = timestamp
	}
	if _, err := w.store.UpdateOne(ctx, form.Name, id, document.encode(), false); err != nil {
		w.logError(opReview, "update_failed", err,
			zap.String("form", form.Name),
			zap.String("document_id", id))
		return err
	}
	return nil
}

// Deactivate soft-deletes a document by flipping its Active flag. Rows are
// never destroyed.
func (w *Writer) Deactivate(ctx context.Context, form schema.FormSchema, id string) error {
	document, ok, err := w.history.Document(ctx, form.Name, id)
	if err != nil {
		return err
	}
	if !ok {
		return newServiceError(opDeactivate, "unknown_document", fmt.Errorf("%w: %s", errUnknownDocument, id))
	}
	if !document.Active {
		return nil
	}
	document.Active = false
	if _, err := w.store.UpdateOne(ctx, form.Name, id, document.encode(), false); err != nil {
		w.logError(opDeactivate, "update_failed", err,
			zap.String("form", form.Name),
			zap.String("document_id", id))
		return err
	}
	return nil
}

// uniqueTimestamp formats now as a journal key, advancing by one microsecond
// while the key is already taken. Two writes landing inside the same
// microsecond would otherwise collapse into one entry and lose the earlier
// diff from history.
func uniqueTimestamp(j Journal, now time.Time) string {
	timestamp := now.Format(TimestampLayout)
	for {
		if _, taken := j.Entry(timestamp); !taken {
			return timestamp
		}
		now = now.Add(time.Microsecond)
		timestamp = now.Format(TimestampLayout)
	}
}

func (w *Writer) resolveApprover(ctx context.Context, policy schema.ApprovalPolicy, caller Identity) (string, error) {
	switch policy.Mode {
	case schema.ApprovalStatic:
		return policy.Approver, nil
	case schema.ApprovalGroup:
		return policy.Group, nil
	case schema.ApprovalReporterField:
		if w.approvers == nil || caller.Username == "" {
			return "", nil
		}
		value, ok, err := w.approvers.AccountField(ctx, caller.Username, policy.ReporterField)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		return value, nil
	default:
		return "", nil
	}
}

func (w *Writer) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	w.logger.Error("journal writer error", attrs...)
}
