package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, username, first_name, last_name, avatar, password_hash, github_id, created_at`

// CreateUser inserts a new user and fills in ID and CreatedAt.
//
// The service checks email/username availability first, but two registrations
// can race. The UNIQUE constraints decide; we translate their failure into the
// same Conflict the pre-check would have returned.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (email, username, first_name, last_name, avatar, password_hash, github_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Avatar,
		user.PasswordHash,
		user.GitHubID,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			switch {
			case violatesColumn(err, "users.email"):
				return apperror.AlreadyExists("a user with this email already exists")
			case violatesColumn(err, "users.username"):
				return apperror.AlreadyExists("a user with this username already exists")
			default:
				return apperror.AlreadyExists("this account is already registered")
			}
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Email, err)
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail is used by token login.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// GetUserByGitHubID looks up an account created through GitHub OAuth.
func (db *DB) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, githubID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", githubID)
		}
		return nil, fmt.Errorf("sqlite: getting user by github id %d: %w", githubID, err)
	}
	return u, nil
}

// ListUsers returns one page of users ordered by ID, plus the total count.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting users: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing users: %w", err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// UpdatePassword stores a new bcrypt hash.
func (db *DB) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return db.updateUserColumn(ctx, id, "password_hash", hash)
}

// UpdateAvatar stores the avatar URL; an empty string clears it.
func (db *DB) UpdateAvatar(ctx context.Context, id int64, avatar string) error {
	return db.updateUserColumn(ctx, id, "avatar", avatar)
}

// updateUserColumn is only ever called with a constant column name, so the
// Sprintf below never sees user input.
func (db *DB) updateUserColumn(ctx context.Context, id int64, column, value string) error {
	result, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE users SET %s = ? WHERE id = ?`, column), value, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %d %s: %w", id, column, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var githubID sql.NullInt64
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.Avatar,
		&u.PasswordHash,
		&githubID,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	return &u, nil
}

// collectUsers drains and closes rows.
func collectUsers(rows *sql.Rows) ([]model.User, error) {
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}
