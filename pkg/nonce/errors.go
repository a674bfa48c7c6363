package nonce

import "errors"

var (
	ErrEmptyNonce = errors.New("nonce is required")

	// ErrStoreUnavailable wraps backend failures. Callers must fail closed.
	ErrStoreUnavailable = errors.New("nonce store unavailable")
)
