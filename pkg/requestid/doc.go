// Package requestid assigns every HTTP request an X-Request-ID and exposes it
// to handlers and loggers through the request context.
package requestid
