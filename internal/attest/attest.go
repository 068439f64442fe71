// Package attest implements the symmetric attestation layer: signature and
// approval ciphertexts bound to a per-user certificate. Verification only
// ever reveals match or no-match, never the plaintext intent.
package attest

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

// Fixed base strings sealed under the per-user certificate. The stored
// ciphertext is the only persisted artifact; intent is recovered by trying
// to open it against each base string.
const (
	SignatureBase   = "signature key"
	ApprovalBase    = "approval key"
	DisapprovalBase = "disapproval key"
)

const nonceLength = 24

var errEmptyCertificate = errors.New("attest: certificate is required")

// NewCertificate generates the once-per-account secret. Rotation is out of
// scope for this subsystem.
func NewCertificate() (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return hex.EncodeToString(secret), nil
}

// Seal encrypts base under the certificate and returns the ciphertext in
// base64url form, ready to store verbatim in a document.
func Seal(certificate, base string) (string, error) {
	if certificate == "" {
		return "", errEmptyCertificate
	}
	key := deriveKey(certificate)
	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(base), &nonce, &key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Verify reports whether ciphertext opens under the certificate to exactly
// base. It returns false on any failure, including malformed or empty
// ciphertext; it never returns an error.
func Verify(certificate, ciphertext, base string) bool {
	plaintext, ok := open(certificate, ciphertext)
	return ok && plaintext == base
}

// SignatureState is the tri-state outcome of checking a document signature.
type SignatureState int

const (
	// SignatureMissing means no ciphertext is present: not yet signed.
	SignatureMissing SignatureState = iota
	// SignatureVerified means the ciphertext opened to the signature base.
	SignatureVerified
	// SignatureUnverifiable means a ciphertext is present but did not open
	// under this certificate.
	SignatureUnverifiable
)

// CheckSignature distinguishes "not yet signed" from "signed" and from
// "signed but could not verify".
func CheckSignature(certificate, ciphertext string) SignatureState {
	if ciphertext == "" {
		return SignatureMissing
	}
	if Verify(certificate, ciphertext, SignatureBase) {
		return SignatureVerified
	}
	return SignatureUnverifiable
}

// ApprovalState is the outcome of checking a document approval.
type ApprovalState int

const (
	// ApprovalMissing means no decision has been recorded.
	ApprovalMissing ApprovalState = iota
	// ApprovalGranted means the ciphertext opened to the approval base.
	ApprovalGranted
	// ApprovalDenied means the ciphertext opened to the disapproval base.
	ApprovalDenied
	// ApprovalUnverifiable means a ciphertext is present but opened to
	// neither base under this certificate.
	ApprovalUnverifiable
)

// CheckApproval tries the approval base first and falls back to the
// disapproval base, surfacing a third state instead of a binary outcome.
func CheckApproval(certificate, ciphertext string) ApprovalState {
	if ciphertext == "" {
		return ApprovalMissing
	}
	plaintext, ok := open(certificate, ciphertext)
	if !ok {
		return ApprovalUnverifiable
	}
	switch plaintext {
	case ApprovalBase:
		return ApprovalGranted
	case DisapprovalBase:
		return ApprovalDenied
	default:
		return ApprovalUnverifiable
	}
}

func deriveKey(certificate string) [32]byte {
	return sha256.Sum256([]byte(certificate))
}

func open(certificate, ciphertext string) (string, bool) {
	if certificate == "" || ciphertext == "" {
		return "", false
	}
	sealed, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil || len(sealed) <= nonceLength {
		return "", false
	}
	var nonce [nonceLength]byte
	copy(nonce[:], sealed[:nonceLength])
	key := deriveKey(certificate)
	plaintext, ok := secretbox.Open(nil, sealed[nonceLength:], &nonce, &key)
	if !ok {
		return "", false
	}
	return string(plaintext), true
}
