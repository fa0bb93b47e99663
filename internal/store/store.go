package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teemow/calconnect/internal/integration"
)

// ErrConcurrentModification is returned by Save when the stored version no
// longer matches the one the caller read.
var ErrConcurrentModification = errors.New("integration was modified concurrently")

// Store is the persistence contract used by the integration service.
type Store interface {
	// Find returns nil, nil when no integration exists.
	Find(ctx context.Context, userID string, appType integration.AppType) (*integration.Integration, error)
	// Create inserts a new integration and fails with a DuplicateIntegration
	// error when one already exists for the same user and app type.
	Create(ctx context.Context, in *integration.Integration) error
	// Save overwrites tokens, expiry and metadata of an existing integration.
	Save(ctx context.Context, in *integration.Integration) error
	ListByUser(ctx context.Context, userID string) ([]*integration.Integration, error)
	Delete(ctx context.Context, userID string, appType integration.AppType) error
	Close() error
}

// Open selects an implementation from a database URL.
//
//	""  or memory://       in-memory
//	sqlite://path, file:path  SQLite
//	postgres://, postgresql://  PostgreSQL via pgx
func Open(ctx context.Context, databaseURL string, opts ...Option) (Store, error) {
	switch {
	case databaseURL == "" || databaseURL == "memory://":
		return NewMemoryStore(opts...), nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(databaseURL, "sqlite://"), opts...)
	case strings.HasPrefix(databaseURL, "file:"):
		return OpenSQLite(ctx, strings.TrimPrefix(databaseURL, "file:"), opts...)
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return OpenPostgres(ctx, databaseURL, opts...)
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %q", redactURL(databaseURL))
	}
}

func redactURL(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		return u[:i+3] + "..."
	}
	return "..."
}
