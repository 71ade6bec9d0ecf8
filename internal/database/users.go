package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/benvon/habit-tracker/internal/models"
)

// ErrDuplicateUsername is returned when a username is already registered.
var ErrDuplicateUsername = errors.New("username already exists")

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, password_hash, full_name, email, bio, created_at`

func scanUser(row interface{ Scan(dest ...any) error }, u *models.User) error {
	return row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.FullName,
		&u.Email,
		&u.Bio,
		timestamp{t: &u.CreatedAt},
	)
}

// Create inserts a new user and sets its ID and creation time
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, full_name, email, bio)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, created_at
	`,
		user.Username,
		user.PasswordHash,
		user.FullName,
		user.Email,
		user.Bio,
	).Scan(&user.ID, timestamp{t: &user.CreatedAt})
	if err != nil {
		if r.db.Dialect().IsUniqueViolation(err) {
			return fmt.Errorf("failed to create user %q: %w", user.Username, ErrDuplicateUsername)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id), user)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username), user)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// UpdateProfile writes the user's optional profile fields
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET full_name = ?, email = ?, bio = ? WHERE id = ?
	`, user.FullName, user.Email, user.Bio, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", user.ID, ErrNotFound)
	}
	return nil
}
