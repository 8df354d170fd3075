// Package etag derives version tokens from document content.
//
// A token is a content address: equal JSON values produce equal tokens no
// matter how the value was formatted or in which order object keys appeared.
package etag

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Prefix is prepended to every token.
const Prefix = "etag-"

// Empty is the token of absent content (and of a literal JSON null).
var Empty = mustOf(nil)

// Canonical returns the canonical encoding of a JSON value.
// Nil or blank input is treated as JSON null. Input that is not valid UTF-8
// is rejected; the decoder would otherwise replace bad bytes with U+FFFD.
func Canonical(data []byte) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []byte("null"), nil
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("invalid json: invalid utf-8")
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid json: trailing data")
	}

	// encoding/json sorts map keys, which is what makes the output canonical.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Of returns the token for a JSON value.
func Of(data []byte) (string, error) {
	canon, err := Canonical(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return Prefix + hex.EncodeToString(sum[:]), nil
}

// Valid reports whether s looks like a token produced by Of.
func Valid(s string) bool {
	if !strings.HasPrefix(s, Prefix) {
		return false
	}
	digest := s[len(Prefix):]
	if len(digest) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(digest)
	return err == nil
}

func mustOf(data []byte) string {
	tag, err := Of(data)
	if err != nil {
		panic(err)
	}
	return tag
}
