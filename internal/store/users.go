package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/slowlime/knotd/internal/apierr"
	"github.com/slowlime/knotd/internal/model"
)

// CreateUser inserts a new user with an already-hashed password. Username
// and email collisions (case-insensitive, per invariant 10) surface as the
// matching typed error.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (*model.User, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, registered_at, role)
		VALUES (?, ?, ?, ?, ?)
	`, username, email, passwordHash, nowString(), string(model.RoleRegular))
	if err != nil {
		if isUniqueViolation(err, "users.username") {
			return nil, apierr.NewUsernameTaken()
		}
		if isUniqueViolation(err, "users.email") {
			return nil, apierr.NewEmailRegistered()
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var registered string
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &registered, &role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.NewNotFound("User")
		}
		return nil, err
	}
	u.RegisteredAt = parseTime(registered)
	u.Role = model.GlobalRole(role)
	return &u, nil
}

const userColumns = `id, username, email, password_hash, registered_at, role`

// GetUserByID loads one user by primary key.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername loads one user by its case-insensitive natural key.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ? COLLATE NOCASE`, username)
	return scanUser(row)
}

// ResolveUsernames resolves a set of usernames to ids, returning the subset
// that could not be resolved.
func (s *Store) ResolveUsernames(ctx context.Context, usernames []string) (map[string]int64, []string) {
	ids := make(map[string]int64, len(usernames))
	var unknown []string
	for _, name := range usernames {
		u, err := s.GetUserByUsername(ctx, name)
		if err != nil || u == nil {
			unknown = append(unknown, name)
			continue
		}
		ids[name] = u.ID
	}
	return ids, unknown
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
// modernc.org/sqlite surfaces these as *sqlite.Error with a message
// containing "UNIQUE constraint failed"; matching on the column name lets
// callers distinguish which natural key collided without importing the
// driver's error type.
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") && strings.Contains(msg, strings.ToLower(column))
}
