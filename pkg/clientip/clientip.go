package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Forwarding headers in the order they are trusted.
var proxyHeaders = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// FromRequest returns the normalized client address for r, or "" when none
// can be parsed. Forwarding headers are read only when trustProxy is set;
// otherwise any client could pick its own rate-limit identity.
func FromRequest(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, h := range proxyHeaders {
			if ip := fromHeader(r.Header.Get(h)); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return normalize(r.RemoteAddr)
	}
	return normalize(host)
}

// X-Forwarded-For may hold a comma separated chain; the first valid entry wins.
func fromHeader(value string) string {
	if value == "" {
		return ""
	}
	for part := range strings.SplitSeq(value, ",") {
		if ip := normalize(part); ip != "" {
			return ip
		}
	}
	return ""
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return ""
	}
	return addr.Unmap().WithZone("").String()
}
