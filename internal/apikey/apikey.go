// Package apikey mints and verifies the sk_<opaque> bearer tokens that
// authenticate admin HTTP requests, replacing the magic-link email flow the
// teacher's usecase layer implemented for its own domain.
package apikey

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// Prefix is the fixed, non-secret lead-in every key carries, letting a
	// reader and log line identify a cronback key at a glance.
	Prefix = "sk_"

	// PrefixLookupLen is how many characters after Prefix are returned
	// alongside the hash, so the store can narrow bcrypt comparison to a
	// small candidate set instead of scanning every project.
	PrefixLookupLen = 8

	rawKeyBytes = 24
)

var ErrMalformedKey = errors.New("malformed api key")

// Generate mints a new random key and its bcrypt hash. The raw key is
// returned to the caller exactly once; only hash is persisted.
func Generate() (raw string, hash string, err error) {
	buf := make([]byte, rawKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = Prefix + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)

	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return raw, string(hashed), nil
}

// LookupPrefix extracts the prefix slice used to narrow the store's
// candidate set for Verify.
func LookupPrefix(raw string) (string, error) {
	if !strings.HasPrefix(raw, Prefix) || len(raw) < len(Prefix)+PrefixLookupLen {
		return "", ErrMalformedKey
	}
	return raw[:len(Prefix)+PrefixLookupLen], nil
}

// Verify reports whether raw matches hash.
func Verify(raw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
