// Package api exposes link validation and issuance over HTTP.
//
// The public surface is a single route, GET /validate, which rate limits by
// client address and then consumes the presented token. Each rejection reason
// maps to its own status code so callers can tell an expired link (410) from
// a replayed one (409) without parsing bodies. Store failures answer 503 and
// never count as a valid link.
//
// Issuance and read-only inspection live under /internal and are mounted only
// when an API key is configured. Requests must send it as a bearer token.
//
// Usage:
//
//	router := api.New(api.Deps{
//		Validator: validator,
//		Issuer:    issuer,
//		Limiter:   limiter,
//		BaseURL:   "https://shop.example.com/checkout",
//		APIKey:    os.Getenv("ISSUER_API_KEY"),
//	})
//	srv.Run(ctx, router)
package api
