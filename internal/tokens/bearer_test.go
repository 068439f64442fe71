package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestBearerMinterMintsSignedTokens(t *testing.T) {
	minter := NewBearerMinter(BearerMinterConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "formledger-admin",
		Audience:      "formledger-api",
		TokenTTL:      30 * time.Minute,
	})

	tokenString, expiresIn, err := minter.Mint(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("expected successful minting: %v", err)
	}
	if expiresIn <= 0 {
		t.Fatalf("expected positive expiry seconds, got %d", expiresIn)
	}

	parser := jwt.Parser{}
	claims := &jwt.RegisteredClaims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	}); err != nil {
		t.Fatalf("failed to parse minted token: %v", err)
	}

	if claims.Subject != "a@b.com" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Issuer != "formledger-admin" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != "formledger-api" {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
}

func TestBearerMinterValidatesOwnTokens(t *testing.T) {
	minter := NewBearerMinter(BearerMinterConfig{
		SigningSecret: []byte("another-secret"),
		Issuer:        "formledger-admin",
		Audience:      "formledger-api",
		TokenTTL:      15 * time.Minute,
	})

	tokenString, _, err := minter.Mint(context.Background(), "c@d.com")
	if err != nil {
		t.Fatalf("unexpected error minting token: %v", err)
	}

	subject, err := minter.Validate(tokenString)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if subject != "c@d.com" {
		t.Fatalf("unexpected subject %q", subject)
	}

	foreign := NewBearerMinter(BearerMinterConfig{
		SigningSecret: []byte("different-secret"),
		Issuer:        "formledger-admin",
		Audience:      "formledger-api",
	})
	if _, err := foreign.Validate(tokenString); err == nil {
		t.Fatalf("expected validation to fail under a different secret")
	}
}

func TestBearerMinterRequiresSecretAndSubject(t *testing.T) {
	minter := NewBearerMinter(BearerMinterConfig{})
	if _, _, err := minter.Mint(context.Background(), "a@b.com"); err == nil {
		t.Fatalf("expected minting to fail without a secret")
	}

	minter = NewBearerMinter(BearerMinterConfig{SigningSecret: []byte("s")})
	if _, _, err := minter.Mint(context.Background(), ""); err == nil {
		t.Fatalf("expected minting to fail without a subject")
	}
}
