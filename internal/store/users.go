package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Roles accepted at registration.
const (
	RoleManager = "manager"
	RoleNormal  = "normal"
)

func (s *Store) CreateUser(ctx context.Context, username, password, role string) (*User, error) {
	if username == "" {
		return nil, &ValidationError{Field: "username", Reason: "required"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Reason: "required"}
	}
	switch role {
	case "":
		role = RoleNormal
	case RoleManager, RoleNormal:
	default:
		return nil, &ValidationError{Field: "role", Reason: "must be manager or normal"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE username = ?`, username).Scan(&existing)
		if err == nil {
			return &ConflictError{Kind: "user", Field: "username", Value: username}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, username, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
			user.ID, user.Username, user.PasswordHash, user.Role, now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Kind: "user", Ref: username}
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Authenticate verifies the password against the stored bcrypt hash. A bad
// username and a bad password both come back as NotFoundError so login
// failures are indistinguishable to the caller.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, &NotFoundError{Kind: "user", Ref: username}
	}
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, username string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &NotFoundError{Kind: "user", Ref: username}
		}
		return nil
	})
}
