package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/MohamedElashri/snipvault/internal/models"
)

// ErrEmailTaken is returned when creating a user whose email exists
var ErrEmailTaken = errors.New("email already registered")

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. passwordHash must already be hashed.
func (r *UserRepository) Create(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	user := &models.User{
		ID:           xid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	existing, err := r.GetByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByEmail returns the user with email, or nil
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.get(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// GetByID returns the user with id, or nil
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.get(ctx, "id = ?", id)
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, name, password_hash, created_at FROM users WHERE "+where, arg,
	).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetPassword replaces a user's password hash
func (r *UserRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns every user, oldest first
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, email, name, password_hash, created_at FROM users ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Import inserts a user keeping its id, or updates an existing one
func (r *UserRepository) Import(ctx context.Context, u models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name, password_hash = excluded.password_hash
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to import user: %w", err)
	}
	return nil
}
