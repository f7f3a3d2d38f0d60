package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/cdm/internal/core"
)

// runSource labels pipeline runs started over HTTP.
const runSource = "http"

// WithRequestMetadata records the run source and client address for the
// audit record.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithSource(ctx, runSource)
	return core.ContextWithRemoteAddr(ctx, clientIP(r))
}

// clientIP returns the host part of RemoteAddr, which TrustedRealIP has
// already resolved.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
