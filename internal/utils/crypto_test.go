package utils

import (
	"strings"
	"testing"
)

func TestHashAndVerifyVerificationCode(t *testing.T) {
	hash, err := HashVerificationCode("483920")
	if err != nil {
		t.Fatalf("HashVerificationCode() unexpected error: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash %q should use the argon2id format", hash)
	}

	match, err := VerifyVerificationCode("483920", hash)
	if err != nil {
		t.Fatalf("VerifyVerificationCode() unexpected error: %v", err)
	}
	if !match {
		t.Error("correct code should verify")
	}

	match, err = VerifyVerificationCode("000000", hash)
	if err != nil {
		t.Fatalf("VerifyVerificationCode() unexpected error: %v", err)
	}
	if match {
		t.Error("wrong code should not verify")
	}
}

func TestVerifyVerificationCodeBadHash(t *testing.T) {
	if _, err := VerifyVerificationCode("123456", "not-a-hash"); err == nil {
		t.Error("expected error for malformed hash")
	}
}

func TestGenerateShortCode(t *testing.T) {
	code, err := GenerateShortCode(6)
	if err != nil {
		t.Fatalf("GenerateShortCode() unexpected error: %v", err)
	}

	if len(code) != 6 {
		t.Errorf("code length = %d, want 6", len(code))
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			t.Errorf("code %q contains non-digit %q", code, c)
		}
	}

	if _, err := GenerateShortCode(0); err == nil {
		t.Error("expected error for zero digits")
	}
}

func TestComputeValidationHash(t *testing.T) {
	secret := "test-secret"
	hash := ComputeValidationHash(secret, "TKT-abc", 7, 42)

	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(hash))
	}

	// Deterministic for the same inputs
	if again := ComputeValidationHash(secret, "TKT-abc", 7, 42); again != hash {
		t.Error("hash should be deterministic")
	}

	// Any input change produces a different hash
	variants := []string{
		ComputeValidationHash(secret, "TKT-abd", 7, 42),
		ComputeValidationHash(secret, "TKT-abc", 8, 42),
		ComputeValidationHash(secret, "TKT-abc", 7, 43),
		ComputeValidationHash("other-secret", "TKT-abc", 7, 42),
	}
	for i, v := range variants {
		if v == hash {
			t.Errorf("variant %d should differ from original hash", i)
		}
	}
}

func TestVerifyValidationHash(t *testing.T) {
	hash := ComputeValidationHash("secret", "TKT-abc", 1, 2)

	if !VerifyValidationHash(hash, hash) {
		t.Error("identical hashes should verify")
	}
	if VerifyValidationHash(hash, "tampered") {
		t.Error("different hashes should not verify")
	}
}
