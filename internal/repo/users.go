package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"

	"tripline/internal/domain"
)

func (r *Repo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_on) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedOn)
	return err
}

func (r *Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_on FROM users WHERE id = ?`, id)
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_on FROM users WHERE email = ?`, email)
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

// HashAPIKey returns the hex sha256 of a raw key. Only the hash is
// stored.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (r *Repo) CreateAPIKey(ctx context.Context, k domain.APIKey) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, created_on) VALUES (?, ?, ?, ?, ?)`,
		k.ID, k.UserID, k.Name, k.KeyHash, k.CreatedOn)
	return err
}

// GetUserByAPIKey resolves a raw API key to its owner.
func (r *Repo) GetUserByAPIKey(ctx context.Context, raw string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.password_hash, u.created_on
		 FROM api_keys k JOIN users u ON u.id = k.user_id
		 WHERE k.key_hash = ?`, HashAPIKey(raw))
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}
