package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// User is a local account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

const userSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
`

// UserStore persists local accounts in SQLite.
type UserStore struct {
	db *sql.DB
}

// NewUserStore wraps an open database, applying the users schema.
func NewUserStore(db *sql.DB) (*UserStore, error) {
	if _, err := db.Exec(userSchema); err != nil {
		return nil, fmt.Errorf("auth: apply schema: %w", err)
	}
	return &UserStore{db: db}, nil
}

const userTimeLayout = time.RFC3339Nano

// CreateUser stores a new account. The caller is responsible for hashing
// the password.
func (s *UserStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt.UTC().Format(userTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("auth: create user: %w", err)
	}
	return nil
}

// GetByEmail returns the account with the given email, or (nil, nil) when
// absent.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getBy(ctx, "email", email)
}

// GetByID returns the account with the given id, or (nil, nil) when absent.
func (s *UserStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getBy(ctx, "id", id)
}

func (s *UserStore) getBy(ctx context.Context, col, val string) (*User, error) {
	var (
		u       User
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at
		FROM users WHERE `+col+` = ?`, val,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: get user: %w", err)
	}
	if u.CreatedAt, err = time.Parse(userTimeLayout, created); err != nil {
		return nil, fmt.Errorf("auth: parse created_at: %w", err)
	}
	return &u, nil
}
