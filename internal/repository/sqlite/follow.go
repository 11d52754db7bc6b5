package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.FollowRepository = (*DB)(nil)

// CreateFollow subscribes followerID to authorID. The table's CHECK rejects a
// self-subscription even if a caller skips the service check.
func (db *DB) CreateFollow(ctx context.Context, followerID, authorID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO follows (follower_id, author_id) VALUES (?, ?)`,
		followerID, authorID,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.AlreadyExists(model.MsgAlreadyFollowed)
		case isCheckViolation(err):
			return apperror.AlreadyExists(model.MsgSelfFollow)
		case isForeignKeyViolation(err):
			return apperror.NotFound("user", authorID)
		}
		return fmt.Errorf("sqlite: following user %d: %w", authorID, err)
	}
	return nil
}

func (db *DB) DeleteFollow(ctx context.Context, followerID, authorID int64) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND author_id = ?`,
		followerID, authorID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unfollowing user %d: %w", authorID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotExists(model.MsgNotFollowed)
	}
	return nil
}

func (db *DB) FollowExists(ctx context.Context, followerID, authorID int64) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = ? AND author_id = ?)`,
		followerID, authorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking follow: %w", err)
	}
	return exists, nil
}

// ListFollowedAuthors returns one page of the authors followerID subscribes
// to, ordered by author ID, plus the total.
func (db *DB) ListFollowedAuthors(ctx context.Context, followerID int64, opts repository.ListOptions) ([]model.User, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follows WHERE follower_id = ?`, followerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting follows: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.email, u.username, u.first_name, u.last_name, u.avatar, u.password_hash, u.github_id, u.created_at
		 FROM follows f JOIN users u ON u.id = f.author_id
		 WHERE f.follower_id = ?
		 ORDER BY u.id LIMIT ? OFFSET ?`,
		followerID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing follows: %w", err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
