package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openparish/backend/pkg/model"
)

// User is a user row as persisted.
type User struct {
	ID           int64
	Username     string
	RealName     string
	DisplayName  string
	Image        *string
	Position     string
	Role         model.Role
	PasswordHash string
	AuthToken    *string
}

// UserByID loads a user row, or ErrNotFound.
func (db *DB) UserByID(ctx context.Context, id int64) (*User, error) {
	return db.userBy(ctx, "id = ?", id)
}

// UserByUsername loads a user row by its unique username, or
// ErrNotFound.
func (db *DB) UserByUsername(ctx context.Context, username string) (*User, error) {
	return db.userBy(ctx, "username = ?", username)
}

func (db *DB) userBy(ctx context.Context, where string, arg interface{}) (*User, error) {
	query := db.Rebind(`SELECT id, username, real_name, display_name, image, position, role, password_hash, auth_token
		FROM users WHERE ` + where)

	var u User
	err := db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.RealName, &u.DisplayName, &u.Image,
		&u.Position, &u.Role, &u.PasswordHash, &u.AuthToken,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

// PrincipalByToken resolves an auth token to a Principal, including
// group membership. Returns ErrNotFound when the token matches no user.
func (db *DB) PrincipalByToken(ctx context.Context, token string) (*model.Principal, error) {
	var (
		id   int64
		role model.Role
	)
	err := db.QueryRowContext(ctx,
		db.Rebind(`SELECT id, role FROM users WHERE auth_token = ?`), token,
	).Scan(&id, &role)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}

	groupIDs, err := db.GroupIDsForUser(ctx, id)
	if err != nil {
		return nil, err
	}

	return &model.Principal{ID: id, Role: role, GroupIDs: groupIDs}, nil
}

// GroupIDsForUser returns the ids of all groups the user belongs to.
func (db *DB) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		db.Rebind(`SELECT group_id FROM group_members WHERE user_id = ?`), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("load group membership: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetAuthToken stores (or clears, with nil) a user's auth token.
// Overwriting with nil is how logout revokes a token in O(1).
func (db *DB) SetAuthToken(ctx context.Context, userID int64, token *string) error {
	_, err := db.ExecContext(ctx,
		db.Rebind(`UPDATE users SET auth_token = ? WHERE id = ?`), token, userID,
	)
	if err != nil {
		return fmt.Errorf("set auth token: %w", err)
	}
	return nil
}
