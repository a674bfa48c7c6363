package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the minimum accepted length of signing key material.
const MinSecretLength = 32

// KeyProvider supplies the symmetric signing key.
type KeyProvider interface {
	SigningKey() []byte
}

// StaticKey is a KeyProvider over a fixed byte slice.
type StaticKey []byte

func (k StaticKey) SigningKey() []byte { return k }

// DerivedKey derives a purpose-bound 32-byte key from a master secret using
// HKDF-SHA256, so one secret can back several independent token kinds.
func DerivedKey(secret, purpose string) (StaticKey, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}

	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("linkguard/token/v1/"+purpose))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Join(ErrWeakSecret, err)
	}
	return StaticKey(key), nil
}

// Signer computes and verifies HMAC-SHA256 signatures encoded with
// unpadded base64url.
type Signer struct {
	keys KeyProvider
}

// NewSigner validates the key material once and returns a Signer.
func NewSigner(keys KeyProvider) (*Signer, error) {
	if keys == nil || len(keys.SigningKey()) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &Signer{keys: keys}, nil
}

// Sign returns the encoded full-length HMAC of data.
func (s *Signer) Sign(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(s.mac(data))
}

// Verify reports whether sig is a valid signature of data.
// Malformed signatures are reported as false.
func (s *Signer) Verify(data []byte, sig string) bool {
	if strings.ContainsAny(sig, "\r\n") {
		return false
	}
	got, err := base64.RawURLEncoding.Strict().DecodeString(sig)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	return hmac.Equal(got, s.mac(data))
}

func (s *Signer) mac(data []byte) []byte {
	h := hmac.New(sha256.New, s.keys.SigningKey())
	h.Write(data)
	return h.Sum(nil)
}
