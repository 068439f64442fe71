package tokens

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/quarryworks/formledger/internal/store"
)

type sequenceIDs struct {
	values []string
	index  int
}

func (s *sequenceIDs) NewID() (string, error) {
	if s.index >= len(s.values) {
		return "", fmt.Errorf("sequence exhausted")
	}
	value := s.values[s.index]
	s.index++
	return value, nil
}

func newTestRegistry(t *testing.T, clock func() time.Time) (*Registry, *store.MemoryStore) {
	t.Helper()
	memory := store.NewMemoryStore()
	registry, err := NewRegistry(RegistryConfig{Store: memory, Clock: clock})
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	return registry, memory
}

func TestTokenLifecycle(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	registry, _ := newTestRegistry(t, func() time.Time { return now })
	ctx := context.Background()

	token, err := registry.Issue(ctx, ScopeAPIKey, 5640*time.Hour, "a@b.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	valid, err := registry.Verify(ctx, token, ScopeAPIKey)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !valid {
		t.Fatalf("freshly issued token must verify")
	}

	if err := registry.Expire(ctx, token); err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	valid, err = registry.Verify(ctx, token, ScopeAPIKey)
	if err != nil {
		t.Fatalf("verify after expire failed: %v", err)
	}
	if valid {
		t.Fatalf("expired token must not verify")
	}

	valid, err = registry.Verify(ctx, "unknown-token", ScopeAPIKey)
	if err != nil {
		t.Fatalf("verify of unknown token must not raise: %v", err)
	}
	if valid {
		t.Fatalf("unknown token must not verify")
	}
}

func TestVerifyRejectsWrongScopeAndExpiresToken(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	registry, _ := newTestRegistry(t, func() time.Time { return now })
	ctx := context.Background()

	token, err := registry.Issue(ctx, ScopeForgotPassword, time.Hour, "a@b.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	valid, err := registry.Verify(ctx, token, ScopeAPIKey)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if valid {
		t.Fatalf("wrong scope must not verify")
	}

	// The failed check lazily expired the token, so even the right scope
	// is now rejected.
	valid, err = registry.Verify(ctx, token, ScopeForgotPassword)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if valid {
		t.Fatalf("token must have been lazily expired by the failed check")
	}
}

func TestVerifyHonorsExpiration(t *testing.T) {
	current := time.Unix(1700000000, 0).UTC()
	registry, _ := newTestRegistry(t, func() time.Time { return current })
	ctx := context.Background()

	token, err := registry.Issue(ctx, ScopeMFA, time.Hour, "a@b.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	current = current.Add(2 * time.Hour)
	valid, err := registry.Verify(ctx, token, ScopeMFA)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if valid {
		t.Fatalf("token past its expiration must not verify")
	}
}

func TestIssueWithoutTTLNeverExpires(t *testing.T) {
	current := time.Unix(1700000000, 0).UTC()
	registry, _ := newTestRegistry(t, func() time.Time { return current })
	ctx := context.Background()

	token, err := registry.Issue(ctx, ScopeAPIKey, 0, "a@b.com")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	current = current.Add(24 * 365 * time.Hour)
	valid, err := registry.Verify(ctx, token, ScopeAPIKey)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !valid {
		t.Fatalf("ttl-less token must never expire")
	}

	record, found, err := registry.Lookup(ctx, token)
	if err != nil || !found {
		t.Fatalf("lookup failed: found=%v err=%v", found, err)
	}
	if record.Expiration != 0 || record.Email != "a@b.com" {
		t.Fatalf("unexpected record: %#v", record)
	}
}

func TestIssueRerollsOnCollision(t *testing.T) {
	memory := store.NewMemoryStore()
	registry, err := NewRegistry(RegistryConfig{
		Store:      memory,
		IDProvider: &sequenceIDs{values: []string{"dup", "dup", "fresh"}},
	})
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	ctx := context.Background()

	first, err := registry.Issue(ctx, ScopeAPIKey, 0, "a@b.com")
	if err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	if first != "dup" {
		t.Fatalf("unexpected first token %q", first)
	}

	second, err := registry.Issue(ctx, ScopeAPIKey, 0, "c@d.com")
	if err != nil {
		t.Fatalf("second issue failed: %v", err)
	}
	if second != "fresh" {
		t.Fatalf("expected collision re-roll to yield fresh token, got %q", second)
	}
}

func TestExpireUnknownTokenIsNoOp(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	if err := registry.Expire(context.Background(), "never-issued"); err != nil {
		t.Fatalf("expire of unknown token must be a no-op, got %v", err)
	}
}

func TestExternalScope(t *testing.T) {
	if ExternalScope("incident_report") != "external_incident_report" {
		t.Fatalf("unexpected external scope %q", ExternalScope("incident_report"))
	}
}
