// Package sqlite provides a SQLite-backed user store for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/keil-app/keil-server/database"
	"github.com/keil-app/keil-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

// UserRepository stores local users in SQLite.
type UserRepository struct {
	db *sql.DB
}

// Open opens the SQLite database at dsn and applies migrations.
func Open(ctx context.Context, dsn string) (*UserRepository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows one writer; a single connection queues requests in the
	// pool instead of failing them with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := database.MigrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewUserRepository(db), nil
}

// connectionPragmas are applied by the driver to every new connection.
var connectionPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

func withPragmas(dsn string) string {
	params := make([]string, 0, len(connectionPragmas))
	for _, pragma := range connectionPragmas {
		params = append(params, "_pragma="+pragma)
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// NewUserRepository wraps an already migrated handle.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Close closes the SQLite handle.
func (r *UserRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *UserRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return r.db.PingContext(ctx)
}

func (r *UserRepository) FindByExternalID(ctx context.Context, externalID string) (model.User, error) {
	if r.db == nil {
		return model.User{}, fmt.Errorf("storage is not configured")
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, external_id, email, display_name, role, created_at, updated_at
		 FROM users WHERE external_id = ?`, externalID)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("get user by external id: %w", err)
	}

	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	if r.db == nil {
		return model.User{}, fmt.Errorf("storage is not configured")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, external_id, email, display_name, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.ExternalID, user.Email, user.DisplayName, string(user.Role),
		toMillis(user.CreatedAt), toMillis(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("create user: %w", model.ErrDuplicate)
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	user.CreatedAt = fromMillis(toMillis(user.CreatedAt))
	user.UpdatedAt = fromMillis(toMillis(user.UpdatedAt))

	return user, nil
}

// Update persists email, display name and updated_at only.
func (r *UserRepository) Update(ctx context.Context, user model.User) (model.User, error) {
	if r.db == nil {
		return model.User{}, fmt.Errorf("storage is not configured")
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, display_name = ?, updated_at = ? WHERE id = ?`,
		user.Email, user.DisplayName, toMillis(user.UpdatedAt), user.ID.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("update user: %w", model.ErrDuplicate)
		}
		return model.User{}, fmt.Errorf("update user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return model.User{}, fmt.Errorf("update user rows affected: %w", err)
	}
	if n == 0 {
		return model.User{}, model.ErrNotFound
	}

	return r.FindByExternalID(ctx, user.ExternalID)
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		user      model.User
		id        string
		role      string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&id, &user.ExternalID, &user.Email, &user.DisplayName, &role, &createdAt, &updatedAt); err != nil {
		return model.User{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user id %q: %w", id, err)
	}
	user.ID = parsed
	user.Role = model.Role(role)
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)

	return user, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
