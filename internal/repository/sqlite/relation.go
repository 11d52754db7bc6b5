package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.RelationRepository = (*DB)(nil)

// relationTable maps a relation kind to its table. Favorites and cart entries
// share the same (user_id, recipe_id) shape, so one set of methods serves both.
func relationTable(kind model.RelationKind) (string, error) {
	switch kind {
	case model.Favorite:
		return "favorites", nil
	case model.ShoppingCart:
		return "shopping_cart", nil
	default:
		return "", fmt.Errorf("sqlite: unknown relation kind %q", kind)
	}
}

// AddRelation links a user and a recipe. A duplicate link is a Conflict; a
// recipe deleted since the service looked it up is NotFound.
func (db *DB) AddRelation(ctx context.Context, kind model.RelationKind, userID, recipeID int64) error {
	table, err := relationTable(kind)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (user_id, recipe_id) VALUES (?, ?)`, table),
		userID, recipeID,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.AlreadyExists(kind.AlreadyMessage())
		case isForeignKeyViolation(err):
			return apperror.NotFound("recipe", recipeID)
		}
		return fmt.Errorf("sqlite: adding %s for user %d: %w", kind, userID, err)
	}
	return nil
}

// RemoveRelation deletes the link. Deleting a link that does not exist is
// reported as NotFound.
func (db *DB) RemoveRelation(ctx context.Context, kind model.RelationKind, userID, recipeID int64) error {
	table, err := relationTable(kind)
	if err != nil {
		return err
	}
	result, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE user_id = ? AND recipe_id = ?`, table),
		userID, recipeID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing %s for user %d: %w", kind, userID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotExists(kind.MissingMessage())
	}
	return nil
}

func (db *DB) RelationExists(ctx context.Context, kind model.RelationKind, userID, recipeID int64) (bool, error) {
	table, err := relationTable(kind)
	if err != nil {
		return false, err
	}
	var exists bool
	err = db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE user_id = ? AND recipe_id = ?)`, table),
		userID, recipeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking %s: %w", kind, err)
	}
	return exists, nil
}
