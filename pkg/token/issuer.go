package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// DefaultLifetime is the validity window applied at issuance.
	DefaultLifetime = 24 * time.Hour

	// NonceSize is the number of random bytes in every nonce.
	NonceSize = 16
)

// SignedToken is an encoded payload together with its signature.
type SignedToken struct {
	EncodedPayload string
	Signature      string
}

// String returns the wire form: payload "." signature.
func (t SignedToken) String() string {
	return t.EncodedPayload + "." + t.Signature
}

// ParseSignedToken splits a wire token into its two parts.
// It only checks the shape and alphabet, never the signature.
func ParseSignedToken(raw string) (SignedToken, error) {
	payload, sig, ok := strings.Cut(raw, ".")
	if !ok || !isBase64URL(payload) || !isBase64URL(sig) {
		return SignedToken{}, ErrInvalidFormat
	}
	return SignedToken{EncodedPayload: payload, Signature: sig}, nil
}

// isBase64URL reports whether s is non-empty and uses only the unpadded
// base64url alphabet. A second separator fails here as well.
func isBase64URL(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// Issuer creates new signed tokens.
type Issuer struct {
	signer   *Signer
	lifetime time.Duration
	random   io.Reader
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithLifetime overrides DefaultLifetime. Non-positive values are ignored.
func WithLifetime(d time.Duration) IssuerOption {
	return func(i *Issuer) {
		if d > 0 {
			i.lifetime = d
		}
	}
}

// WithRandomSource replaces crypto/rand as the nonce source. Intended for tests.
func WithRandomSource(r io.Reader) IssuerOption {
	return func(i *Issuer) {
		if r != nil {
			i.random = r
		}
	}
}

// NewIssuer panics on a nil signer; a missing signer is a wiring bug.
func NewIssuer(signer *Signer, opts ...IssuerOption) *Issuer {
	if signer == nil {
		panic(ErrSignerRequired)
	}
	i := &Issuer{
		signer:   signer,
		lifetime: DefaultLifetime,
		random:   rand.Reader,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Lifetime returns the configured validity window.
func (i *Issuer) Lifetime() time.Duration { return i.lifetime }

// Issue builds and signs claims for subjectID. Every call draws a fresh
// 128-bit nonce, so two tokens for the same subject and millisecond differ.
// Subjects too long for the token to fit in MaxTokenLength are rejected
// with ErrSubjectTooLong. A failing random source panics.
func (i *Issuer) Issue(subjectID string, now time.Time) (SignedToken, error) {
	if subjectID == "" {
		return SignedToken{}, ErrEmptySubject
	}

	claims := Claims{
		SubjectID:   subjectID,
		IssuedAtMs:  now.UnixMilli(),
		Nonce:       i.nonce(),
		ExpiresAtMs: now.Add(i.lifetime).UnixMilli(),
	}

	payload, err := EncodePayload(claims)
	if err != nil {
		return SignedToken{}, fmt.Errorf("encode claims: %w", err)
	}

	tok := SignedToken{
		EncodedPayload: payload,
		Signature:      i.signer.Sign([]byte(payload)),
	}
	// The validator rejects anything longer as malformed.
	if len(tok.String()) > MaxTokenLength {
		return SignedToken{}, ErrSubjectTooLong
	}
	return tok, nil
}

func (i *Issuer) nonce() string {
	b := make([]byte, NonceSize)
	if _, err := io.ReadFull(i.random, b); err != nil {
		panic(fmt.Sprintf("token: random source failed: %v", err))
	}
	return hex.EncodeToString(b)
}
