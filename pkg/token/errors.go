package token

import "errors"

var (
	ErrInvalidFormat  = errors.New("invalid token format")
	ErrInvalidPayload = errors.New("invalid token payload")
	ErrEmptySubject   = errors.New("subject id is required")
	ErrSubjectTooLong = errors.New("subject id is too long")
	ErrWeakSecret     = errors.New("signing secret is too short")
	ErrSignerRequired = errors.New("signer is required")

	// ErrStoreRequired is returned by Consume when the validator has no nonce store.
	ErrStoreRequired = errors.New("nonce store is required for consuming validation")

	// ErrStoreUnavailable marks infrastructure failures during the nonce claim.
	// It never maps to a token validity reason.
	ErrStoreUnavailable = errors.New("nonce store unavailable")
)
