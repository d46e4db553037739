// Package token implements the opaque bearer credentials used across the
// service: a printable prefix, a base64url identifier used for lookup, and
// a base64url secret verified against a stored hash.
package token

import (
	"encoding/base64"
	"strings"
)

// Wire prefixes. These are part of the external contract and are matched
// exactly, case-sensitively, before any decoding is attempted.
const (
	PrefixAccess     = "oat:"
	PrefixInvitation = "wsi:"
)

// Encode builds the externally visible bearer string. The secret exists in
// memory only at issuance, so this is computable exactly once per token.
func Encode(prefix, id, secret string) string {
	return prefix +
		base64.RawURLEncoding.EncodeToString([]byte(id)) +
		"." +
		base64.RawURLEncoding.EncodeToString([]byte(secret))
}

// Decode splits a bearer string into identifier and secret. It never
// returns an error: a wrong prefix, a missing or extra separator, or an
// invalid base64url segment all yield ok=false, so malformed input is
// indistinguishable from an unknown token further down the line.
func Decode(prefix, raw string) (id, secret string, ok bool) {
	if !strings.HasPrefix(raw, prefix) {
		return "", "", false
	}
	rest := raw[len(prefix):]
	idPart, secretPart, found := strings.Cut(rest, ".")
	if !found || idPart == "" || secretPart == "" || strings.Contains(secretPart, ".") {
		return "", "", false
	}
	idBytes, err := base64.RawURLEncoding.DecodeString(idPart)
	if err != nil {
		return "", "", false
	}
	secretBytes, err := base64.RawURLEncoding.DecodeString(secretPart)
	if err != nil {
		return "", "", false
	}
	return string(idBytes), string(secretBytes), true
}
