// Package store persists pipeline output: canonical documents in Postgres
// or SQLite, and per-run JSON artifacts in a directory tree.
package store

import (
	"context"
	"fmt"
	"strings"
)

// Open selects a Store from the database URL scheme:
//
//	postgres://, postgresql://  Postgres via pgx
//	sqlite://<path>, *.db       SQLite file
//	""                          no store (nil, nil)
func Open(ctx context.Context, url string, pc PoolConfig) (Store, error) {
	switch {
	case url == "":
		return nil, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return OpenPostgres(ctx, url, pc)
	case strings.HasPrefix(url, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(url, "sqlite://"))
	case strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"):
		return OpenSQLite(ctx, url)
	}
	return nil, fmt.Errorf("unsupported database URL %q", redact(url))
}

// Driver names the backend Open would choose for url.
func Driver(url string) string {
	switch {
	case url == "":
		return "none"
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(url, "sqlite://"), strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"):
		return "sqlite"
	}
	return "unknown"
}

// redact hides credentials in a URL before it is logged or returned.
func redact(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***@" + rest[at+1:]
	}
	return url
}
