// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
		{"24 bytes", 24, 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			if err != nil {
				t.Fatalf("GenerateID() error = %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("GenerateID() length = %d, want %d", len(id), tt.wantLen)
			}
			// Verify it's valid hex
			for _, c := range id {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("GenerateID() contains invalid hex char: %c", c)
				}
			}
		})
	}

	// Test randomness - two IDs should be different
	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestGenerateUserToken(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		salt   string
	}{
		{"standard", "user123", "secret-salt"},
		{"empty user id", "", "salt"},
		{"empty salt", "user456", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := GenerateUserToken(tt.userID, tt.salt)
			if token == "" {
				t.Fatal("GenerateUserToken() returned empty token")
			}
			if strings.Contains(token, "=") {
				t.Errorf("GenerateUserToken() should not contain padding: %s", token)
			}
			// Deterministic
			if again := GenerateUserToken(tt.userID, tt.salt); again != token {
				t.Errorf("GenerateUserToken() not deterministic: %s != %s", token, again)
			}
		})
	}
}

func TestValidateUserToken(t *testing.T) {
	salt := "test-salt"
	userID, token := NewUser(salt)

	tests := []struct {
		name    string
		userID  string
		token   string
		wantErr error
	}{
		{"valid token", userID, token, nil},
		{"wrong token", userID, "not-the-token", ErrInvalidUserToken},
		{"token for another user", "someone-else", token, ErrInvalidUserToken},
		{"missing token", userID, "", ErrMissingIdentity},
		{"missing user", "", token, ErrMissingIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserToken(tt.userID, tt.token, salt)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateUserToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Different salt must reject
	if err := ValidateUserToken(userID, token, "other-salt"); err == nil {
		t.Error("ValidateUserToken() accepted token under a different salt")
	}
}

func TestPassphrase(t *testing.T) {
	hash, err := HashPassphrase("open sesame", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassphrase() error = %v", err)
	}
	if hash == "open sesame" {
		t.Fatal("HashPassphrase() returned the plaintext")
	}

	if !CheckPassphrase(hash, "open sesame") {
		t.Error("CheckPassphrase() rejected the correct passphrase")
	}
	if CheckPassphrase(hash, "open sesame!") {
		t.Error("CheckPassphrase() accepted a wrong passphrase")
	}
	if CheckPassphrase("", "anything") {
		t.Error("CheckPassphrase() accepted a passphrase against an empty hash")
	}
}
