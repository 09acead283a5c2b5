// Package id generates URL-safe identifiers: UUIDv4 bytes encoded as
// unpadded lowercase base32 (RFC 4648), 26 characters, safe for URLs and
// file paths.
package id

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID generates a new URL-safe identifier.
func NewID() string {
	value := uuid.New()
	return strings.ToLower(encoding.EncodeToString(value[:]))
}
