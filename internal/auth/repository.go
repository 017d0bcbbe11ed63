package auth

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zerocool-source/apiV2/internal/shared/errors"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

// Repository provides database operations for user accounts
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new auth repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, password_hash, name, role, COALESCE(region, ''), created_at, updated_at`

// CreateUser inserts a new user account
func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, role, region)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.Region,
	).Scan(&u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("user with this email already exists")
		}
		return errors.Wrap(err, "failed to create user")
	}

	return nil
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u := &User{}
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Region,
		&u.CreatedAt, &u.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}

	return u, nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id types.ID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u := &User{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Region,
		&u.CreatedAt, &u.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}

	return u, nil
}

// UserRegion returns the user's home region, empty when unset
func (r *Repository) UserRegion(ctx context.Context, userID types.ID) (types.Region, error) {
	var region *string
	err := r.pool.QueryRow(ctx, `SELECT region FROM users WHERE id = $1`, userID).Scan(&region)
	if err == pgx.ErrNoRows {
		return "", errors.NotFound("user", userID.String())
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to get user region")
	}
	if region == nil {
		return "", nil
	}
	return types.Region(*region), nil
}
