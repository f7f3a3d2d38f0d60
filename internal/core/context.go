package core

import "context"

type contextKey string

const (
	ctxKeySource     contextKey = "run_source"
	ctxKeyRemoteAddr contextKey = "run_remote_addr"
)

// ContextWithSource records which entry point started a run ("http", "cli")
// for the audit record.
func ContextWithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, ctxKeySource, source)
}

// ContextWithRemoteAddr records the client address for the audit record.
func ContextWithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, ctxKeyRemoteAddr, addr)
}

// SourceFromContext returns the entry point set by ContextWithSource.
func SourceFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySource).(string); ok {
		return v
	}
	return ""
}

// RemoteAddrFromContext returns the address set by ContextWithRemoteAddr.
func RemoteAddrFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRemoteAddr).(string); ok {
		return v
	}
	return ""
}
