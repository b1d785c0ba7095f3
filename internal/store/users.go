package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is an account of the development backend.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PhoneNumber  string    `json:"phoneNumber"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

const userColumns = `id, username, email, phone_number, role, password_hash, created_at, updated_at`

// CreateUser inserts u and returns its id.
func (s *Store) CreateUser(ctx context.Context, u User) (int64, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (
		username, email, phone_number, role, password_hash, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, nullString(u.Email), nullString(u.PhoneNumber), u.Role, u.PasswordHash, now, now)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("user %s: %w", u.Username, ErrConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return res.LastInsertId()
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// FindUserByIdentifier matches a username, email or phone number.
func (s *Store) FindUserByIdentifier(ctx context.Context, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users
		WHERE username = ? OR lower(email) = lower(?) OR phone_number = ?
		ORDER BY id LIMIT 1`, identifier, identifier, identifier)
}

// FindUserByEmail looks up a user by email, case-insensitively.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower(?)`, strings.TrimSpace(email))
}

// ListUsers returns every user ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// UpdateUser replaces the profile fields of an existing user. The password is untouched.
func (s *Store) UpdateUser(ctx context.Context, u User) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users
		SET username = ?, email = ?, phone_number = ?, role = ?, updated_at = ?
		WHERE id = ?`,
		u.Username, nullString(u.Email), nullString(u.PhoneNumber), u.Role, time.Now().Unix(), u.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.Username, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(res)
}

// SetPasswordHash stores a new password hash for id.
func (s *Store) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireAffected(res)
}

// DeleteUser removes a user and any pending password resets.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM password_resets WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete password resets: %w", err)
	}
	return tx.Commit()
}

// CountUsers returns the number of accounts.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// CreatePasswordReset records a one-time reset token.
func (s *Store) CreatePasswordReset(ctx context.Context, token string, userID int64, expires time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO password_resets (token, user_id, expires_at, used, created_at)
		VALUES (?, ?, ?, 0, ?)`, token, userID, expires.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to create password reset: %w", err)
	}
	return nil
}

// ConsumePasswordReset marks token used and returns its user. Unknown, used or
// expired tokens return ErrNotFound.
func (s *Store) ConsumePasswordReset(ctx context.Context, token string, now time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID int64
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM password_resets
		WHERE token = ? AND used = 0 AND expires_at > ?`, token, now.Unix()).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read password reset: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE password_resets SET used = 1 WHERE token = ?`, token); err != nil {
		return 0, fmt.Errorf("failed to consume password reset: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit password reset: %w", err)
	}
	return userID, nil
}

func (s *Store) queryUser(ctx context.Context, query string, args ...interface{}) (*User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	defer rows.Close()
	users, err := scanUsers(rows)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

func scanUsers(rows *sql.Rows) ([]User, error) {
	users := []User{}
	for rows.Next() {
		var u User
		var email, phone sql.NullString
		var createdAt, updatedAt int64
		if err := rows.Scan(&u.ID, &u.Username, &email, &phone, &u.Role, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Email, u.PhoneNumber = email.String, phone.String
		u.CreatedAt = time.Unix(createdAt, 0)
		u.UpdatedAt = time.Unix(updatedAt, 0)
		users = append(users, u)
	}
	return users, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
