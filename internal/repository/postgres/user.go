package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keil-app/keil-server/internal/model"
)

const uniqueViolation = "23505"

var _ model.UserStore = (*UserRepository)(nil)

// UserRepository stores local users in Postgres.
type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) FindByExternalID(ctx context.Context, externalID string) (model.User, error) {
	pool, err := r.pool()
	if err != nil {
		return model.User{}, err
	}

	query := `SELECT id, external_id, email, display_name, role, created_at, updated_at
			  FROM users WHERE external_id = $1`

	user, err := scanUser(pool.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by external id: %w", err)
	}

	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	pool, err := r.pool()
	if err != nil {
		return model.User{}, err
	}

	query := `INSERT INTO users (id, external_id, email, display_name, role, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id, external_id, email, display_name, role, created_at, updated_at`

	saved, err := scanUser(pool.QueryRow(ctx, query,
		user.ID, user.ExternalID, user.Email, user.DisplayName, string(user.Role),
		user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("failed to create user: %w", model.ErrDuplicate)
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return saved, nil
}

// Update persists email, display name and updated_at. Role and creation
// time are never written here.
func (r *UserRepository) Update(ctx context.Context, user model.User) (model.User, error) {
	pool, err := r.pool()
	if err != nil {
		return model.User{}, err
	}

	query := `UPDATE users SET email = $2, display_name = $3, updated_at = $4
			  WHERE id = $1
			  RETURNING id, external_id, email, display_name, role, created_at, updated_at`

	saved, err := scanUser(pool.QueryRow(ctx, query, user.ID, user.Email, user.DisplayName, user.UpdatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("failed to update user: %w", model.ErrDuplicate)
		}
		return model.User{}, fmt.Errorf("failed to update user: %w", err)
	}

	return saved, nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return fmt.Errorf("connection is nil")
	}
	return r.db.Ping(ctx)
}

func (r *UserRepository) pool() (*pgxpool.Pool, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("connection pool is nil")
	}
	return r.db.Pool, nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var (
		user model.User
		role string
	)
	err := row.Scan(
		&user.ID, &user.ExternalID, &user.Email, &user.DisplayName, &role,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	user.Role = model.Role(role)

	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
