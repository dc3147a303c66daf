// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidUserToken = errors.New("invalid user token")
	ErrMissingIdentity  = errors.New("missing user identity")
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewUser creates a fresh user id and the token that proves it
func NewUser(salt string) (userID, token string) {
	userID = uuid.NewString()
	return userID, GenerateUserToken(userID, salt)
}

// GenerateUserToken creates an HMAC-based token for a user id
// This is deterministic and verifiable without storage
func GenerateUserToken(userID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(userID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner tokens
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateUserToken checks if the provided token belongs to the user id
func ValidateUserToken(userID, token, salt string) error {
	if userID == "" || token == "" {
		return ErrMissingIdentity
	}
	expected := GenerateUserToken(userID, salt)
	if !hmac.Equal([]byte(token), []byte(expected)) {
		return ErrInvalidUserToken
	}
	return nil
}

// HashPassphrase hashes a board passphrase with bcrypt at the given cost
func HashPassphrase(passphrase string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash passphrase: %w", err)
	}
	return string(hash), nil
}

// CheckPassphrase reports whether passphrase matches the stored hash
func CheckPassphrase(hash, passphrase string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passphrase)) == nil
}
