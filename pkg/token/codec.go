package token

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Claims is the signed payload of a link token. It is never mutated after
// issuance; "spent" state lives in the nonce store.
type Claims struct {
	SubjectID   string `json:"sid"`
	IssuedAtMs  int64  `json:"iat"`
	Nonce       string `json:"nonce"`
	ExpiresAtMs int64  `json:"exp"`
}

// wireClaims mirrors Claims with pointer fields so missing keys can be told
// apart from zero values.
type wireClaims struct {
	SubjectID   *string `json:"sid"`
	IssuedAtMs  *int64  `json:"iat"`
	Nonce       *string `json:"nonce"`
	ExpiresAtMs *int64  `json:"exp"`
}

// EncodePayload serializes claims to JSON and encodes it with unpadded base64url.
// Field order follows the struct definition, so output is stable for equal claims.
func EncodePayload(c Claims) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodePayload reverses EncodePayload. Any failure (bad alphabet, bad JSON,
// missing or mistyped fields, inconsistent timestamps) is reported as
// ErrInvalidPayload so callers can tell it apart from signature failures.
func DecodePayload(encoded string) (Claims, error) {
	if encoded == "" {
		return Claims{}, ErrInvalidPayload
	}
	if strings.ContainsAny(encoded, "=\r\n") {
		return Claims{}, fmt.Errorf("%w: unexpected characters", ErrInvalidPayload)
	}

	if rem := len(encoded) % 4; rem != 0 {
		encoded += strings.Repeat("=", 4-rem)
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidPayload, err)
	}

	var w wireClaims
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return Claims{}, errors.Join(ErrInvalidPayload, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Claims{}, fmt.Errorf("%w: trailing data after claims", ErrInvalidPayload)
	}

	switch {
	case w.SubjectID == nil || *w.SubjectID == "":
		return Claims{}, fmt.Errorf("%w: missing sid", ErrInvalidPayload)
	case w.Nonce == nil || *w.Nonce == "":
		return Claims{}, fmt.Errorf("%w: missing nonce", ErrInvalidPayload)
	case w.IssuedAtMs == nil:
		return Claims{}, fmt.Errorf("%w: missing iat", ErrInvalidPayload)
	case w.ExpiresAtMs == nil:
		return Claims{}, fmt.Errorf("%w: missing exp", ErrInvalidPayload)
	case *w.ExpiresAtMs <= *w.IssuedAtMs:
		return Claims{}, fmt.Errorf("%w: exp must be after iat", ErrInvalidPayload)
	}

	return Claims{
		SubjectID:   *w.SubjectID,
		IssuedAtMs:  *w.IssuedAtMs,
		Nonce:       *w.Nonce,
		ExpiresAtMs: *w.ExpiresAtMs,
	}, nil
}
