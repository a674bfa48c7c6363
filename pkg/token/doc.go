// Package token issues and validates single-use, HMAC-signed links.
//
// A token carries a small set of claims (subject, issue time, nonce and
// absolute expiry) serialized as JSON and encoded with base64url. The encoded
// payload is signed with HMAC-SHA256 and the two parts are joined with a dot:
//
//	base64url(json(claims)).base64url(hmac-sha256(payload))
//
// Both parts use the URL-safe alphabet without padding, so the token can be
// embedded into a query string as is.
//
// # Issuing
//
//	key, err := token.DerivedKey(os.Getenv("TOKEN_SECRET"), "checkout-link")
//	if err != nil {
//		log.Fatal(err)
//	}
//	signer, err := token.NewSigner(key)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	issuer := token.NewIssuer(signer)
//	tok, err := issuer.Issue("biz_42", time.Now())
//	link := "https://example.com/checkout?token=" + tok.String()
//
// # Validating
//
// Validation runs a fixed pipeline: format, signature, payload, expiry and,
// in consuming mode only, a one-time nonce claim against a nonce.Store.
// Cheap checks run first so that forged or malformed tokens never reach the
// store.
//
//	validator := token.NewValidator(signer, token.WithStore(store))
//	res, err := validator.Consume(ctx, raw)
//	switch {
//	case err != nil:
//		// infrastructure failure: fail closed, retry later
//	case !res.Valid:
//		// res.Reason is one of invalid_format, invalid_signature,
//		// invalid_payload, expired, already_used
//	default:
//		// res.Claims.SubjectID is trusted
//	}
//
// Inspect runs the same pipeline without claiming the nonce and is meant for
// read-only callers.
package token
