package attest

import "testing"

func TestVerifyRoundTrip(t *testing.T) {
	certificate, err := NewCertificate()
	if err != nil {
		t.Fatalf("certificate generation failed: %v", err)
	}

	ciphertext, err := Seal(certificate, SignatureBase)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if !Verify(certificate, ciphertext, SignatureBase) {
		t.Fatalf("expected ciphertext to verify under its own certificate")
	}
	if Verify(certificate, ciphertext, ApprovalBase) {
		t.Fatalf("ciphertext must not verify against a different base string")
	}
}

func TestVerifyRejectsForeignCertificate(t *testing.T) {
	certificateA, err := NewCertificate()
	if err != nil {
		t.Fatalf("certificate generation failed: %v", err)
	}
	certificateB, err := NewCertificate()
	if err != nil {
		t.Fatalf("certificate generation failed: %v", err)
	}

	ciphertext, err := Seal(certificateA, SignatureBase)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if Verify(certificateB, ciphertext, SignatureBase) {
		t.Fatalf("ciphertext must not verify under a foreign certificate")
	}
}

func TestVerifyNeverRaisesOnGarbage(t *testing.T) {
	certificate, err := NewCertificate()
	if err != nil {
		t.Fatalf("certificate generation failed: %v", err)
	}

	tests := []string{
		"",
		"not-base64!!!",
		"c2hvcnQ",
		"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	}
	for _, ciphertext := range tests {
		if Verify(certificate, ciphertext, SignatureBase) {
			t.Fatalf("garbage ciphertext %q must not verify", ciphertext)
		}
	}
}

func TestCheckSignatureDistinguishesMissingFromUnverifiable(t *testing.T) {
	certificate, err := NewCertificate()
	if err != nil {
		t.Fatalf("certificate generation failed: %v", err)
	}

	if state := CheckSignature(certificate, ""); state != SignatureMissing {
		t.Fatalf("empty ciphertext must read as not yet signed, got %v", state)
	}

	ciphertext, err := Seal(certificate, SignatureBase)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if state := CheckSignature(certificate, ciphertext); state != SignatureVerified {
		t.Fatalf("expected verified signature, got %v", state)
	}

	other, err := NewCertificate()
	if err != nil {
		t.Fatalf("certificate generation failed: %v", err)
	}
	if state := CheckSignature(other, ciphertext); state != SignatureUnverifiable {
		t.Fatalf("foreign certificate must read unverifiable, got %v", state)
	}
}

func TestCheckApprovalTriesFallbackBase(t *testing.T) {
	certificate, err := NewCertificate()
	if err != nil {
		t.Fatalf("certificate generation failed: %v", err)
	}

	approved, err := Seal(certificate, ApprovalBase)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if state := CheckApproval(certificate, approved); state != ApprovalGranted {
		t.Fatalf("expected granted, got %v", state)
	}

	denied, err := Seal(certificate, DisapprovalBase)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if state := CheckApproval(certificate, denied); state != ApprovalDenied {
		t.Fatalf("expected denied, got %v", state)
	}

	if state := CheckApproval(certificate, ""); state != ApprovalMissing {
		t.Fatalf("expected missing, got %v", state)
	}

	unrelated, err := Seal(certificate, SignatureBase)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if state := CheckApproval(certificate, unrelated); state != ApprovalUnverifiable {
		t.Fatalf("expected unverifiable for a non-approval ciphertext, got %v", state)
	}
}
