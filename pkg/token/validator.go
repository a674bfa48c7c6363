package token

import (
	"context"
	"errors"
	"time"
)

// MaxTokenLength bounds the accepted input size. Issued tokens are far shorter.
const MaxTokenLength = 4096

// Reason explains why a presented token was rejected.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonInvalidFormat    Reason = "invalid_format"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonInvalidPayload   Reason = "invalid_payload"
	ReasonExpired          Reason = "expired"
	ReasonAlreadyUsed      Reason = "already_used"
)

// Mode selects whether validation claims the nonce.
type Mode int

const (
	// ModeInspect validates without side effects.
	ModeInspect Mode = iota
	// ModeConsume additionally claims the nonce, making the token single use.
	ModeConsume
)

func (m Mode) String() string {
	if m == ModeConsume {
		return "consume"
	}
	return "inspect"
}

// Result is the outcome of a validation. Claims is set only when Valid is true.
type Result struct {
	Valid  bool
	Claims Claims
	Reason Reason
}

func reject(r Reason) Result { return Result{Reason: r} }

// NonceClaimer atomically marks a nonce as consumed. It returns false when
// the nonce was already claimed. nonce.Store implementations satisfy it.
type NonceClaimer interface {
	Claim(ctx context.Context, nonce, subjectID string, now time.Time) (bool, error)
}

// Validator runs the validation pipeline.
type Validator struct {
	signer       *Signer
	store        NonceClaimer
	clock        func() time.Time
	storeTimeout time.Duration
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithStore sets the nonce store used in ModeConsume.
func WithStore(s NonceClaimer) ValidatorOption {
	return func(v *Validator) { v.store = s }
}

// WithClock injects the time source used for expiry checks and claims.
func WithClock(clock func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// WithStoreTimeout bounds each nonce store round trip.
// Zero leaves the caller's context deadline in charge.
func WithStoreTimeout(d time.Duration) ValidatorOption {
	return func(v *Validator) {
		if d > 0 {
			v.storeTimeout = d
		}
	}
}

// NewValidator panics on a nil signer.
func NewValidator(signer *Signer, opts ...ValidatorOption) *Validator {
	if signer == nil {
		panic(ErrSignerRequired)
	}
	v := &Validator{
		signer: signer,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Inspect validates raw without consuming it.
func (v *Validator) Inspect(ctx context.Context, raw string) (Result, error) {
	return v.Validate(ctx, raw, ModeInspect)
}

// Consume validates raw and claims its nonce.
func (v *Validator) Consume(ctx context.Context, raw string) (Result, error) {
	return v.Validate(ctx, raw, ModeConsume)
}

// Validate evaluates format, signature, payload, expiry and, for
// ModeConsume, the one-time nonce claim, stopping at the first failure.
//
// A non-nil error means the decision could not be made (store failure or
// timeout) and must be treated as neither valid nor invalid.
func (v *Validator) Validate(ctx context.Context, raw string, mode Mode) (Result, error) {
	if mode == ModeConsume && v.store == nil {
		return Result{}, ErrStoreRequired
	}

	if len(raw) > MaxTokenLength {
		return reject(ReasonInvalidFormat), nil
	}
	tok, err := ParseSignedToken(raw)
	if err != nil {
		return reject(ReasonInvalidFormat), nil
	}

	if !v.signer.Verify([]byte(tok.EncodedPayload), tok.Signature) {
		return reject(ReasonInvalidSignature), nil
	}

	claims, err := DecodePayload(tok.EncodedPayload)
	if err != nil {
		return reject(ReasonInvalidPayload), nil
	}

	now := v.clock()
	if now.UnixMilli() > claims.ExpiresAtMs {
		return reject(ReasonExpired), nil
	}

	if mode == ModeConsume {
		claimed, err := v.claim(ctx, claims, now)
		if err != nil {
			return Result{}, err
		}
		if !claimed {
			return reject(ReasonAlreadyUsed), nil
		}
	}

	return Result{Valid: true, Claims: claims}, nil
}

func (v *Validator) claim(ctx context.Context, claims Claims, now time.Time) (bool, error) {
	if v.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.storeTimeout)
		defer cancel()
	}

	claimed, err := v.store.Claim(ctx, claims.Nonce, claims.SubjectID, now)
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return claimed, nil
}
