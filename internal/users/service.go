package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quarryworks/formledger/internal/attest"
	"github.com/quarryworks/formledger/internal/store"
)

// ErrInvalidAccount indicates the provided account has no usable username.
var ErrInvalidAccount = errors.New("users: invalid account")

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Store store.Store
	Clock func() time.Time
}

// Service manages account records in the document store. Certificates are
// generated once when an account is first seen and never rotated here.
type Service struct {
	store store.Store
	now   func() time.Time
	mu    sync.Mutex
	ids   map[string]string
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("users: document store required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store: cfg.Store,
		now:   clock,
		ids:   map[string]string{},
	}, nil
}

// Ensure returns the stored account for the username, creating it with a
// fresh attestation certificate when it has not been seen before. Identity
// fields on an existing account are refreshed from the provided value when
// non-empty; the certificate is never replaced.
func (s *Service) Ensure(ctx context.Context, account Account) (Account, error) {
	username := normalize(account.Username)
	if username == "" {
		return Account{}, ErrInvalidAccount
	}

	existing, id, found, err := s.find(ctx, username)
	if err != nil {
		return Account{}, err
	}
	if !found {
		certificate, err := attest.NewCertificate()
		if err != nil {
			return Account{}, err
		}
		created := Account{
			Username:         username,
			Email:            normalize(account.Email),
			DisplayName:      normalize(account.DisplayName),
			Group:            normalize(account.Group),
			Supervisor:       normalize(account.Supervisor),
			Certificate:      certificate,
			CreatedAtSeconds: s.now().UTC().Unix(),
		}
		if _, err := s.store.InsertOne(ctx, Collection, created.encode()); err != nil {
			return Account{}, err
		}
		return created, nil
	}

	changed := false
	if email := normalize(account.Email); email != "" && email != existing.Email {
		existing.Email = email
		changed = true
	}
	if display := normalize(account.DisplayName); display != "" && display != existing.DisplayName {
		existing.DisplayName = display
		changed = true
	}
	if group := normalize(account.Group); group != "" && group != existing.Group {
		existing.Group = group
		changed = true
	}
	if supervisor := normalize(account.Supervisor); supervisor != "" && supervisor != existing.Supervisor {
		existing.Supervisor = supervisor
		changed = true
	}
	if changed {
		if _, err := s.store.UpdateOne(ctx, Collection, id, existing.encode(), false); err != nil {
			return Account{}, err
		}
	}
	return existing, nil
}

// Lookup returns the account registered under username.
func (s *Service) Lookup(ctx context.Context, username string) (Account, bool, error) {
	account, _, found, err := s.find(ctx, username)
	return account, found, err
}

// AccountField resolves one named field on the account record, satisfying
// the journal writer's approver source.
func (s *Service) AccountField(ctx context.Context, username, field string) (string, bool, error) {
	account, found, err := s.Lookup(ctx, username)
	if err != nil || !found {
		return "", false, err
	}
	value, ok := account.Field(field)
	if !ok || value == "" {
		return "", false, nil
	}
	return value, true, nil
}

func (s *Service) find(ctx context.Context, username string) (Account, string, bool, error) {
	username = normalize(username)

	documents, err := s.store.Find(ctx, Collection)
	if err != nil {
		return Account{}, "", false, err
	}

	s.mu.Lock()
	cachedID, cached := s.ids[username]
	s.mu.Unlock()

	for _, document := range documents {
		if cached && document.ID != cachedID {
			continue
		}
		account := decodeAccount(document.Body)
		if account.Username != username {
			continue
		}
		s.remember(username, document.ID)
		return account, document.ID, true, nil
	}
	if cached {
		// Stale cache entry; rescan without it.
		for _, document := range documents {
			account := decodeAccount(document.Body)
			if account.Username == username {
				s.remember(username, document.ID)
				return account, document.ID, true, nil
			}
		}
		s.mu.Lock()
		delete(s.ids, username)
		s.mu.Unlock()
	}
	return Account{}, "", false, nil
}

func (s *Service) remember(username, id string) {
	s.mu.Lock()
	s.ids[username] = id
	s.mu.Unlock()
}
