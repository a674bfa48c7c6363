// Package clientip resolves the originating client address of an HTTP request.
//
// When the service runs behind a trusted reverse proxy, enable trustProxy and
// the first valid address from these headers is used:
//
//  1. CF-Connecting-IP
//  2. DO-Connecting-IP
//  3. X-Forwarded-For (first valid entry)
//  4. X-Real-IP
//
// Otherwise, and as a fallback, the TCP peer address from RemoteAddr is used.
// Addresses are normalized: IPv4-mapped IPv6 collapses to IPv4 and zones are
// dropped, so one client maps to one rate-limit key.
//
//	r.Use(clientip.Middleware(cfg.TrustProxyHeaders))
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		ip := clientip.FromContext(r.Context())
//	}
package clientip
