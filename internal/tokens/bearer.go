package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultBearerTTL = 30 * time.Minute

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingSubject       = errors.New("subject must be provided")
)

// BearerMinterConfig configures short-lived bearer JWT minting.
type BearerMinterConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// BearerMinter exchanges a registry token verified under the api_key scope
// for a short-lived signed bearer token the web layer can hand out. The
// registry token stays the durable credential; the JWT is disposable.
type BearerMinter struct {
	config BearerMinterConfig
	clock  func() time.Time
}

// NewBearerMinter constructs a BearerMinter with sane defaults.
func NewBearerMinter(cfg BearerMinterConfig) *BearerMinter {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultBearerTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &BearerMinter{
		config: BearerMinterConfig{
			SigningSecret: cfg.SigningSecret,
			Issuer:        cfg.Issuer,
			Audience:      cfg.Audience,
			TokenTTL:      ttl,
			Clock:         clock,
		},
		clock: clock,
	}
}

// Mint produces a signed bearer token and its expiry (seconds) for the
// provided subject, typically the email bound to a verified api_key token.
func (m *BearerMinter) Mint(_ context.Context, subject string) (string, int64, error) {
	if len(m.config.SigningSecret) == 0 {
		return "", 0, errMissingSigningSecret
	}
	if subject == "" {
		return "", 0, errMissingSubject
	}

	now := m.clock().UTC()
	expiresAt := now.Add(m.config.TokenTTL).UTC()

	registered := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.config.Issuer,
		Audience:  []string{m.config.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, registered)
	signed, err := token.SignedString(m.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// Validate ensures the bearer token is well formed and returns its subject.
func (m *BearerMinter) Validate(tokenString string) (string, error) {
	if len(m.config.SigningSecret) == 0 {
		return "", errMissingSigningSecret
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return m.config.SigningSecret, nil
		},
		jwt.WithAudience(m.config.Audience),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.clock),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingSubject
	}
	return claims.Subject, nil
}
