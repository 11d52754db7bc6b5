package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.ShoppingListRepository = (*DB)(nil)

// ShoppingList sums the ingredient amounts of every recipe in the user's cart.
//
// AGGREGATION IN SQL:
// Each cart row fans out to its recipe's ingredient lines; GROUP BY collapses
// lines that share (name, unit) and SUM adds their amounts. Two ingredients
// with the same name but different units stay separate.
func (db *DB) ShoppingList(ctx context.Context, userID int64) ([]model.ShoppingItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT i.name, i.measurement_unit, SUM(ri.amount)
		 FROM shopping_cart sc
		 JOIN recipe_ingredients ri ON ri.recipe_id = sc.recipe_id
		 JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE sc.user_id = ?
		 GROUP BY i.name, i.measurement_unit
		 ORDER BY i.name, i.measurement_unit`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: building shopping list: %w", err)
	}
	defer rows.Close()

	items := make([]model.ShoppingItem, 0)
	for rows.Next() {
		var item model.ShoppingItem
		if err := rows.Scan(&item.Name, &item.MeasurementUnit, &item.Amount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning shopping item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating shopping items: %w", err)
	}
	return items, nil
}
