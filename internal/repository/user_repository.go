package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// UserRepository resolves ticket owners. Accounts are managed by the platform; this
// service records what the caller's token says about them so replies can reach them.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// Upsert creates the user or refreshes its name and email. Empty fields never
	// overwrite stored values.
	Upsert(ctx context.Context, user *domain.User) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, name, email FROM users WHERE id=$1`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, name, email)
        VALUES ($1,$2,$3)
        ON CONFLICT (id) DO UPDATE SET
            name  = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
            email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email)
        RETURNING name, email`
	return r.pool.QueryRow(ctx, query, user.ID, user.Name, user.Email).Scan(&user.Name, &user.Email)
}
