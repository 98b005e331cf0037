package main

import (
	"strings"
	"testing"

	"github.com/medicore/medicore/internal/platform/auth"
)

// ---------------------------------------------------------------------------
// generatePassword tests (create-admin must never emit a weak credential)
// ---------------------------------------------------------------------------

func TestGeneratePassword_MeetsPolicy(t *testing.T) {
	pw, err := generatePassword()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := auth.ValidatePasswordStrength(pw); err != nil {
		t.Errorf("generated password %q rejected by policy: %v", pw, err)
	}
}

func TestGeneratePassword_Length(t *testing.T) {
	pw, err := generatePassword()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Prefix plus 9 random bytes hex-encoded.
	if len(pw) != 4+18 {
		t.Errorf("expected 22-character password, got %d: %q", len(pw), pw)
	}
	if !strings.HasPrefix(pw, "Aa1-") {
		t.Errorf("expected Aa1- prefix, got %q", pw)
	}
}

func TestGeneratePassword_Unique(t *testing.T) {
	first, err := generatePassword()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := generatePassword()
	if err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if first == second {
		t.Error("two generated passwords should not be identical")
	}
}
