// Package tokens implements the scoped signing-token registry that gates
// privileged operations: password reset, email verification, anonymous
// submission, API access.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quarryworks/formledger/internal/store"
	"go.uber.org/zap"
)

// Collection is where token records live in the document store.
const Collection = "signing_tokens"

// Well-known scopes. A scope is an opaque string compared for exact
// equality; the registry has no knowledge of what any scope authorizes.
const (
	ScopeForgotPassword    = "forgot_password"
	ScopeEmailVerification = "email_verification"
	ScopeAPIKey            = "api_key"
	ScopeMFA               = "mfa"
)

// ExternalScope builds the scope string gating anonymous submission to one
// form.
func ExternalScope(formName string) string {
	return "external_" + formName
}

const maxIssueAttempts = 8

var (
	errMissingStore     = errors.New("document store is required")
	errMissingScope     = errors.New("token scope is required")
	errTokenExhausted   = errors.New("could not generate a collision-free token")
	errMissingTokenBody = errors.New("token record is malformed")
	noOpLogger          = zap.NewNop()
)

// Record is one persisted token. Tokens transition Issued(active) ->
// Expired(inactive) and are never hard-deleted, so an expired token keeps
// its identifier reserved.
type Record struct {
	Signature  string
	Email      string
	Scope      string
	Timestamp  int64
	Expiration int64
	Active     bool
}

func (r Record) encode() map[string]any {
	active := int64(0)
	if r.Active {
		active = 1
	}
	return map[string]any{
		"signature":  r.Signature,
		"email":      r.Email,
		"scope":      r.Scope,
		"timestamp":  r.Timestamp,
		"expiration": r.Expiration,
		"active":     active,
	}
}

func decodeRecord(body map[string]any) (Record, error) {
	signature, ok := body["signature"].(string)
	if !ok {
		return Record{}, errMissingTokenBody
	}
	email, _ := body["email"].(string)
	scope, _ := body["scope"].(string)
	return Record{
		Signature:  signature,
		Email:      email,
		Scope:      scope,
		Timestamp:  toInt64(body["timestamp"]),
		Expiration: toInt64(body["expiration"]),
		Active:     toInt64(body["active"]) == 1,
	}, nil
}

func toInt64(raw any) int64 {
	switch number := raw.(type) {
	case int64:
		return number
	case int:
		return int64(number)
	case float64:
		return int64(number)
	default:
		return 0
	}
}

// RegistryConfig describes the dependencies of the token registry.
type RegistryConfig struct {
	Store      store.Store
	IDProvider store.IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Registry issues, verifies, and expires scoped opaque tokens.
type Registry struct {
	store      store.Store
	idProvider store.IDProvider
	clock      func() time.Time
	logger     *zap.Logger
}

// NewRegistry constructs a token registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("tokens: %w", errMissingStore)
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = store.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Registry{store: cfg.Store, idProvider: idProvider, clock: clock, logger: logger}, nil
}

// Issue mints a new active token bound to scope and email. A non-positive
// ttl produces a never-expiring token (expiration 0). Identifier collisions
// against existing tokens are re-rolled before insert.
func (r *Registry) Issue(ctx context.Context, scope string, ttl time.Duration, email string) (string, error) {
	if scope == "" {
		return "", fmt.Errorf("tokens: %w", errMissingScope)
	}

	now := r.clock().UTC()
	expiration := int64(0)
	if ttl > 0 {
		expiration = now.Add(ttl).Unix()
	}

	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		token, err := r.idProvider.NewID()
		if err != nil {
			return "", err
		}
		if _, found, err := r.lookup(ctx, token); err != nil {
			return "", err
		} else if found {
			continue
		}

		record := Record{
			Signature:  token,
			Email:      email,
			Scope:      scope,
			Timestamp:  now.Unix(),
			Expiration: expiration,
			Active:     true,
		}
		if _, err := r.store.InsertOne(ctx, Collection, record.encode()); err != nil {
			return "", err
		}
		r.logger.Info("token issued",
			zap.String("operation", "tokens.issue"),
			zap.String("scope", scope))
		return token, nil
	}
	return "", fmt.Errorf("tokens: %w", errTokenExhausted)
}

// Verify reports whether token is active, carries exactly the expected
// scope, and has not passed its expiration. Any failing condition lazily
// expires that one token; the conditions are indistinguishable to the
// caller.
func (r *Registry) Verify(ctx context.Context, token, expectedScope string) (bool, error) {
	record, found, err := r.lookup(ctx, token)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	now := r.clock().UTC().Unix()
	valid := record.Active &&
		record.Scope == expectedScope &&
		(record.Expiration == 0 || record.Expiration > now)
	if !valid && record.Active {
		if err := r.Expire(ctx, token); err != nil {
			return false, err
		}
	}
	return valid, nil
}

// Expire idempotently deactivates token. An unknown token is a no-op logged
// as a warning, not an error.
func (r *Registry) Expire(ctx context.Context, token string) error {
	record, found, err := r.lookup(ctx, token)
	if err != nil {
		return err
	}
	if !found {
		r.logger.Warn("expire requested for unknown token",
			zap.String("operation", "tokens.expire"))
		return nil
	}
	if !record.Active {
		return nil
	}
	record.Record.Active = false
	if _, err := r.store.UpdateOne(ctx, Collection, record.id, record.Record.encode(), false); err != nil {
		return err
	}
	return nil
}

// Lookup returns the persisted record for token, for callers that need the
// bound email after a successful Verify.
func (r *Registry) Lookup(ctx context.Context, token string) (Record, bool, error) {
	record, found, err := r.lookup(ctx, token)
	if err != nil || !found {
		return Record{}, false, err
	}
	return record.Record, true, nil
}

type storedRecord struct {
	Record
	id string
}

func (r *Registry) lookup(ctx context.Context, token string) (storedRecord, bool, error) {
	if token == "" {
		return storedRecord{}, false, nil
	}
	documents, err := r.store.Find(ctx, Collection)
	if err != nil {
		return storedRecord{}, false, err
	}
	for _, document := range documents {
		record, err := decodeRecord(document.Body)
		if err != nil {
			continue
		}
		if record.Signature == token {
			return storedRecord{Record: record, id: document.ID}, true, nil
		}
	}
	return storedRecord{}, false, nil
}
