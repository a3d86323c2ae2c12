package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/carbon/internal/accounts"
)

// uniqueViolation is the Postgres SQLSTATE for unique-constraint errors.
const uniqueViolation = "23505"

// UserRepository provides Postgres-backed persistence for accounts.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a user, mapping the unique-email violation to
// accounts.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, user accounts.User) error {
	const stmt = `INSERT INTO users (user_id, email, name, password_hash, created_at)
        VALUES ($1,$2,$3,$4,$5)`

	_, err := r.pool.Exec(ctx, stmt, user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return accounts.ErrEmailTaken
		}
		return err
	}
	return nil
}

// FindByEmail looks a user up by (already lowercased) email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*accounts.User, error) {
	const query = `SELECT user_id, email, name, password_hash, created_at FROM users WHERE email = $1`
	return r.findOne(ctx, query, email)
}

// FindByID looks a user up by id.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (*accounts.User, error) {
	const query = `SELECT user_id, email, name, password_hash, created_at FROM users WHERE user_id = $1`
	return r.findOne(ctx, query, userID)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg interface{}) (*accounts.User, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	var user accounts.User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
