package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// DefaultPaths is the unauthenticated path class subject to IP limiting.
// API traffic and internal/control paths are deliberately excluded: they are
// governed by per-tenant limits after authentication.
var DefaultPaths = []string{"/actuator/health"}

// PathClassifier decides which request paths are rate-limited. The
// classification is pure and static: a path is limited iff it matches one of
// the configured prefixes.
type PathClassifier struct {
	prefixes []string
}

// NewPathClassifier builds a classifier over the given prefixes, falling
// back to DefaultPaths when none are configured.
func NewPathClassifier(prefixes []string) *PathClassifier {
	if len(prefixes) == 0 {
		prefixes = DefaultPaths
	}
	return &PathClassifier{prefixes: prefixes}
}

// ShouldLimit reports whether the path belongs to a rate-limited class.
func (c *PathClassifier) ShouldLimit(path string) bool {
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ClientIP resolves the client address for rate-limit keying: the left-most
// entry of X-Forwarded-For when present and non-blank, otherwise the
// transport-level remote address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); strings.TrimSpace(forwarded) != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
