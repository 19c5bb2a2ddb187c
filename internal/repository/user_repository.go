package repository

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	Create(ctx context.Context, email, name string, role domain.Role) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	UpdateName(ctx context.Context, id, name string) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userCols = `id, email, name, role, hotel_id, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.HotelID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a user. A taken email yields a Conflict.
func (r *userRepository) Create(ctx context.Context, email, name string, role domain.Role) (*domain.User, error) {
	const q = `
		INSERT INTO users (id, email, name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	u, err := scanUser(r.pool.QueryRow(ctx, q, uuid.NewString(), email, name, role))
	if _, dup := isUniqueViolation(err); dup {
		return nil, apperror.ConflictCause(ErrEmailTaken.Error(), ErrEmailTaken)
	}
	return u, err
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	const q = `SELECT ` + userCols + ` FROM users WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *userRepository) UpdateName(ctx context.Context, id, name string) (*domain.User, error) {
	const q = `
		UPDATE users
		SET name = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + userCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanUser(r.pool.QueryRow(ctx, q, id, name))
}
