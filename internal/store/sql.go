package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/teemow/calconnect/internal/integration"
	"github.com/teemow/calconnect/internal/store/migrations"
)

type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "pgx"
)

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore persists integrations through database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	cipher  *TokenCipher
	logger  *slog.Logger
	now     func() time.Time
}

// OpenSQLite opens (creating if needed) a SQLite database and applies migrations.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open(string(dialectSQLite), dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	return newSQLStore(ctx, db, dialectSQLite, opts)
}

// OpenPostgres connects to PostgreSQL through pgx and applies migrations.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open(string(dialectPostgres), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return newSQLStore(ctx, db, dialectPostgres, opts)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, opts []Option) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", d, err)
	}
	if err := applyMigrations(ctx, db, d, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	o := buildOptions(opts)
	return &SQLStore{db: db, dialect: d, cipher: o.cipher, logger: o.logger, now: o.now}, nil
}

const selectColumns = `id, user_id, provider, category, app_type, access_token, refresh_token,
expiry_date, metadata, is_connected, version, created_at, updated_at`

// Find implements Store.
func (s *SQLStore) Find(ctx context.Context, userID string, appType integration.AppType) (*integration.Integration, error) {
	q := s.dialect.rebind("SELECT " + selectColumns + " FROM integrations WHERE user_id = ? AND app_type = ?")
	in, err := s.scan(s.db.QueryRowContext(ctx, q, userID, string(appType)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find integration: %w", err)
	}
	return in, nil
}

// Create implements Store.
func (s *SQLStore) Create(ctx context.Context, in *integration.Integration) error {
	row := in.Clone()
	prepareCreate(row, fromMillis(toMillis(s.now())))

	access, refresh, err := s.sealTokens(row)
	if err != nil {
		return err
	}
	meta, err := integration.EncodeMetadata(row.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	q := s.dialect.rebind(`INSERT INTO integrations (` + selectColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, app_type) DO NOTHING`)
	res, err := s.db.ExecContext(ctx, q,
		row.ID, row.UserID, string(row.Provider), string(row.Category), string(row.AppType),
		access, refresh, nullableMillis(row.ExpiryDate), string(meta), row.IsConnected,
		row.Version, toMillis(row.CreatedAt), toMillis(row.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert integration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert integration: %w", err)
	}
	if n == 0 {
		return integration.Duplicate(in.AppType)
	}

	in.ID, in.Metadata = row.ID, row.Metadata
	in.CreatedAt, in.UpdatedAt, in.Version = row.CreatedAt, row.UpdatedAt, row.Version
	return nil
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, in *integration.Integration) error {
	access, refresh, err := s.sealTokens(in)
	if err != nil {
		return err
	}
	meta, err := integration.EncodeMetadata(in.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	updated := s.now().UTC()

	q := s.dialect.rebind(`UPDATE integrations
SET access_token = ?, refresh_token = ?, expiry_date = ?, metadata = ?, is_connected = ?,
    version = version + 1, updated_at = ?
WHERE user_id = ? AND app_type = ? AND version = ?`)
	res, err := s.db.ExecContext(ctx, q,
		access, refresh, nullableMillis(in.ExpiryDate), string(meta), in.IsConnected,
		toMillis(updated), in.UserID, string(in.AppType), in.Version,
	)
	if err != nil {
		return fmt.Errorf("update integration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update integration: %w", err)
	}
	if n == 0 {
		cur, err := s.Find(ctx, in.UserID, in.AppType)
		if err != nil {
			return err
		}
		if cur == nil {
			return integration.NotFound(in.AppType)
		}
		return ErrConcurrentModification
	}
	in.Version++
	in.UpdatedAt = fromMillis(toMillis(updated))
	return nil
}

// ListByUser implements Store.
func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]*integration.Integration, error) {
	q := s.dialect.rebind("SELECT " + selectColumns + " FROM integrations WHERE user_id = ? ORDER BY created_at, app_type")
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var out []*integration.Integration
	for rows.Next() {
		in, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	return out, nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, userID string, appType integration.AppType) error {
	q := s.dialect.rebind("DELETE FROM integrations WHERE user_id = ? AND app_type = ?")
	res, err := s.db.ExecContext(ctx, q, userID, string(appType))
	if err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return integration.NotFound(appType)
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scan(r rowScanner) (*integration.Integration, error) {
	var (
		in                   integration.Integration
		provider, category   string
		appType, meta        string
		expiry               sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := r.Scan(
		&in.ID, &in.UserID, &provider, &category, &appType,
		&in.AccessToken, &in.RefreshToken, &expiry, &meta, &in.IsConnected,
		&in.Version, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if in.AccessToken, err = s.cipher.Decrypt(in.AccessToken); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if in.RefreshToken, err = s.cipher.Decrypt(in.RefreshToken); err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	if in.Metadata, err = integration.DecodeMetadata([]byte(meta)); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if expiry.Valid {
		v := expiry.Int64
		in.ExpiryDate = &v
	}
	in.Provider = integration.Provider(provider)
	in.Category = integration.Category(category)
	in.AppType = integration.AppType(appType)
	in.CreatedAt = fromMillis(createdAt)
	in.UpdatedAt = fromMillis(updatedAt)
	return &in, nil
}

func (s *SQLStore) sealTokens(in *integration.Integration) (access, refresh string, err error) {
	if access, err = s.cipher.Encrypt(in.AccessToken); err != nil {
		return "", "", fmt.Errorf("encrypt access token: %w", err)
	}
	if refresh, err = s.cipher.Encrypt(in.RefreshToken); err != nil {
		return "", "", fmt.Errorf("encrypt refresh token: %w", err)
	}
	return access, refresh, nil
}

func nullableMillis(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
