package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.RecipeRepository = (*DB)(nil)

// CreateRecipe inserts the recipe row, its ingredient lines and its tags.
//
// TRANSACTIONS:
// A recipe without its ingredients must never be visible to another request,
// so all three inserts happen inside one sql.Tx. If anything fails, the
// deferred Rollback undoes the partial work; after a successful Commit the
// Rollback is a no-op.
//
// A UNIQUE violation on short_code comes back wrapped in both
// repository.ErrShortCodeTaken and a Conflict so the service can draw a new
// code and try again.
func (db *DB) CreateRecipe(ctx context.Context, rec *model.RecipeRecord) error {
	rec.CreatedAt = time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning recipe insert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO recipes (author_id, name, text, image, cooking_time, short_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.AuthorID,
		rec.Name,
		rec.Text,
		rec.Image,
		rec.CookingTime,
		rec.ShortCode,
		rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) && violatesColumn(err, "recipes.short_code") {
			return fmt.Errorf("%w: %w", repository.ErrShortCodeTaken,
				apperror.AlreadyExists("short code "+rec.ShortCode+" is already taken"))
		}
		return fmt.Errorf("sqlite: creating recipe: %w", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("sqlite: reading new recipe id: %w", err)
	}

	if err := replaceIngredients(ctx, tx, rec.ID, rec.Ingredients); err != nil {
		return err
	}
	if err := replaceTags(ctx, tx, rec.ID, rec.TagIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing recipe %d: %w", rec.ID, err)
	}
	return nil
}

// UpdateRecipe rewrites name, text, image and cooking time, then replaces the
// composition. author_id, short_code and created_at are never touched.
//
// REPLACE, DON'T DIFF:
// The ingredient list is deleted by recipe_id and reinserted in full. A nil
// TagIDs or Ingredients slice leaves that part of the composition as it is.
func (db *DB) UpdateRecipe(ctx context.Context, rec *model.RecipeRecord) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning recipe update: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE recipes SET name = ?, text = ?, image = ?, cooking_time = ? WHERE id = ?`,
		rec.Name,
		rec.Text,
		rec.Image,
		rec.CookingTime,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating recipe %d: %w", rec.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("recipe", rec.ID)
	}

	if rec.Ingredients != nil {
		if err := replaceIngredients(ctx, tx, rec.ID, rec.Ingredients); err != nil {
			return err
		}
	}
	if rec.TagIDs != nil {
		if err := replaceTags(ctx, tx, rec.ID, rec.TagIDs); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing recipe %d: %w", rec.ID, err)
	}
	return nil
}

// DeleteRecipe removes a recipe. Ingredient lines, tags, favorites and cart
// entries go with it through ON DELETE CASCADE.
func (db *DB) DeleteRecipe(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting recipe %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("recipe", id)
	}
	return nil
}

// GetRecipeRecord loads the write-side view of a recipe: the row plus tag IDs
// and ingredient amounts. Services use it for ownership checks and to merge a
// partial update.
func (db *DB) GetRecipeRecord(ctx context.Context, id int64) (*model.RecipeRecord, error) {
	var rec model.RecipeRecord
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, author_id, name, text, image, cooking_time, short_code, created_at
		 FROM recipes WHERE id = ?`, id,
	).Scan(
		&rec.ID,
		&rec.AuthorID,
		&rec.Name,
		&rec.Text,
		&rec.Image,
		&rec.CookingTime,
		&rec.ShortCode,
		&rec.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("recipe", id)
		}
		return nil, fmt.Errorf("sqlite: getting recipe %d: %w", id, err)
	}

	tags, ingredients, err := db.loadComposition(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	rec.TagIDs = make([]int64, 0, len(tags[id]))
	for _, t := range tags[id] {
		rec.TagIDs = append(rec.TagIDs, t.ID)
	}
	rec.Ingredients = make([]model.IngredientAmount, 0, len(ingredients[id]))
	for _, i := range ingredients[id] {
		rec.Ingredients = append(rec.Ingredients, model.IngredientAmount{IngredientID: i.ID, Amount: i.Amount})
	}
	return &rec, nil
}

// recipeSelect returns every column needed for a full model.Recipe. The three
// EXISTS sub-queries compute the viewer flags; each takes the viewer ID as its
// argument, in order: subscribed, favorited, in cart. A viewer ID of 0 never
// matches a row, so anonymous viewers get false everywhere.
const recipeSelect = `
	SELECT r.id, r.name, r.text, r.image, r.cooking_time, r.short_code, r.created_at,
	       u.id, u.email, u.username, u.first_name, u.last_name, u.avatar,
	       EXISTS (SELECT 1 FROM follows f WHERE f.follower_id = ? AND f.author_id = u.id),
	       EXISTS (SELECT 1 FROM favorites fv WHERE fv.user_id = ? AND fv.recipe_id = r.id),
	       EXISTS (SELECT 1 FROM shopping_cart sc WHERE sc.user_id = ? AND sc.recipe_id = r.id)
	FROM recipes r
	JOIN users u ON u.id = r.author_id`

// GetRecipe loads the full representation of one recipe for viewerID.
func (db *DB) GetRecipe(ctx context.Context, id, viewerID int64) (*model.Recipe, error) {
	rows, err := db.conn.QueryContext(ctx,
		recipeSelect+` WHERE r.id = ?`,
		viewerID, viewerID, viewerID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting recipe %d: %w", id, err)
	}
	recipes, err := db.collectRecipes(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(recipes) == 0 {
		return nil, apperror.NotFound("recipe", id)
	}
	return &recipes[0], nil
}

// ListRecipes returns one page of recipes matching filter, newest first, and
// the total number of matches.
//
// BUILDING THE WHERE CLAUSE:
// Each active filter adds one condition and its arguments. Conditions are
// joined with AND; within the tag filter the slugs are OR-ed through IN (...),
// so a recipe with ANY of the requested tags qualifies.
func (db *DB) ListRecipes(ctx context.Context, filter repository.RecipeFilter) ([]model.Recipe, int, error) {
	// Favorited / in-cart filters need a user; for anonymous viewers nothing matches.
	if (filter.OnlyFavorited || filter.OnlyInCart) && filter.ViewerID == 0 {
		return []model.Recipe{}, 0, nil
	}

	var conds []string
	var args []any
	if filter.AuthorID != 0 {
		conds = append(conds, `r.author_id = ?`)
		args = append(args, filter.AuthorID)
	}
	if len(filter.TagSlugs) > 0 {
		conds = append(conds, fmt.Sprintf(
			`r.id IN (SELECT rt.recipe_id FROM recipe_tags rt JOIN tags t ON t.id = rt.tag_id WHERE t.slug IN (%s))`,
			placeholders(len(filter.TagSlugs)),
		))
		for _, slug := range filter.TagSlugs {
			args = append(args, slug)
		}
	}
	if filter.OnlyFavorited {
		conds = append(conds, `r.id IN (SELECT recipe_id FROM favorites WHERE user_id = ?)`)
		args = append(args, filter.ViewerID)
	}
	if filter.OnlyInCart {
		conds = append(conds, `r.id IN (SELECT recipe_id FROM shopping_cart WHERE user_id = ?)`)
		args = append(args, filter.ViewerID)
	}

	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, ` AND `)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipes r`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting recipes: %w", err)
	}

	// The three viewer arguments of recipeSelect come first, then the filter
	// arguments, then LIMIT and OFFSET.
	queryArgs := append([]any{filter.ViewerID, filter.ViewerID, filter.ViewerID}, args...)
	queryArgs = append(queryArgs, filter.Limit, filter.Offset)

	rows, err := db.conn.QueryContext(ctx,
		recipeSelect+where+` ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`,
		queryArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing recipes: %w", err)
	}
	recipes, err := db.collectRecipes(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return recipes, total, nil
}

// ListRecipesByAuthor returns the author's newest recipes in short form and
// the author's total recipe count. limit <= 0 returns all of them.
func (db *DB) ListRecipesByAuthor(ctx context.Context, authorID int64, limit int) ([]model.RecipeShort, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipes WHERE author_id = ?`, authorID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting recipes of author %d: %w", authorID, err)
	}

	// In SQLite, a negative LIMIT means "no limit".
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, image, cooking_time FROM recipes
		 WHERE author_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		authorID, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing recipes of author %d: %w", authorID, err)
	}
	defer rows.Close()

	recipes := make([]model.RecipeShort, 0)
	for rows.Next() {
		var r model.RecipeShort
		if err := rows.Scan(&r.ID, &r.Name, &r.Image, &r.CookingTime); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning recipe row: %w", err)
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating recipes: %w", err)
	}
	return recipes, total, nil
}

// GetRecipeIDByShortCode resolves a short link. The comparison uses SQLite's
// default BINARY collation, so it is case-sensitive.
func (db *DB) GetRecipeIDByShortCode(ctx context.Context, code string) (int64, error) {
	var id int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM recipes WHERE short_code = ?`, code,
	).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, apperror.NotExists("no recipe with short code " + code)
		}
		return 0, fmt.Errorf("sqlite: resolving short code: %w", err)
	}
	return id, nil
}

func (db *DB) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM recipes WHERE short_code = ?)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking short code: %w", err)
	}
	return exists, nil
}

// collectRecipes scans rows produced by recipeSelect, closes them, and then
// attaches tags and ingredients with two more queries (one per kind, for all
// recipes at once) instead of two per recipe.
func (db *DB) collectRecipes(ctx context.Context, rows *sql.Rows) ([]model.Recipe, error) {
	recipes, err := scanRecipes(rows)
	if err != nil {
		return nil, err
	}
	if len(recipes) == 0 {
		return recipes, nil
	}

	ids := make([]int64, len(recipes))
	for i := range recipes {
		ids[i] = recipes[i].ID
	}
	tags, ingredients, err := db.loadComposition(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range recipes {
		recipes[i].Tags = tags[recipes[i].ID]
		recipes[i].Ingredients = ingredients[recipes[i].ID]
		if recipes[i].Tags == nil {
			recipes[i].Tags = []model.Tag{}
		}
		if recipes[i].Ingredients == nil {
			recipes[i].Ingredients = []model.RecipeIngredient{}
		}
	}
	return recipes, nil
}

func scanRecipes(rows *sql.Rows) ([]model.Recipe, error) {
	defer rows.Close()

	recipes := make([]model.Recipe, 0)
	for rows.Next() {
		var r model.Recipe
		var author model.User
		var subscribed bool
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Text, &r.Image, &r.CookingTime, &r.ShortCode, &r.CreatedAt,
			&author.ID, &author.Email, &author.Username, &author.FirstName, &author.LastName, &author.Avatar,
			&subscribed, &r.IsFavorited, &r.IsInShoppingCart,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning recipe row: %w", err)
		}
		r.Author = model.NewProfile(&author, subscribed)
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recipes: %w", err)
	}
	return recipes, nil
}

// loadComposition fetches tags (ordered by tag ID) and ingredient lines
// (ordered by ingredient name) for the given recipes, keyed by recipe ID.
func (db *DB) loadComposition(ctx context.Context, recipeIDs []int64) (map[int64][]model.Tag, map[int64][]model.RecipeIngredient, error) {
	in := placeholders(len(recipeIDs))
	args := int64Args(recipeIDs)

	tagRows, err := db.conn.QueryContext(ctx, fmt.Sprintf(
		`SELECT rt.recipe_id, t.id, t.name, t.slug
		 FROM recipe_tags rt JOIN tags t ON t.id = rt.tag_id
		 WHERE rt.recipe_id IN (%s) ORDER BY t.id`, in), args...)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: loading recipe tags: %w", err)
	}
	tags := make(map[int64][]model.Tag)
	err = func() error {
		defer tagRows.Close()
		for tagRows.Next() {
			var recipeID int64
			var t model.Tag
			if err := tagRows.Scan(&recipeID, &t.ID, &t.Name, &t.Slug); err != nil {
				return fmt.Errorf("sqlite: scanning recipe tag: %w", err)
			}
			tags[recipeID] = append(tags[recipeID], t)
		}
		return tagRows.Err()
	}()
	if err != nil {
		return nil, nil, err
	}

	ingRows, err := db.conn.QueryContext(ctx, fmt.Sprintf(
		`SELECT ri.recipe_id, i.id, i.name, i.measurement_unit, ri.amount
		 FROM recipe_ingredients ri JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE ri.recipe_id IN (%s) ORDER BY i.name, i.id`, in), args...)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: loading recipe ingredients: %w", err)
	}
	defer ingRows.Close()

	ingredients := make(map[int64][]model.RecipeIngredient)
	for ingRows.Next() {
		var recipeID int64
		var i model.RecipeIngredient
		if err := ingRows.Scan(&recipeID, &i.ID, &i.Name, &i.MeasurementUnit, &i.Amount); err != nil {
			return nil, nil, fmt.Errorf("sqlite: scanning recipe ingredient: %w", err)
		}
		ingredients[recipeID] = append(ingredients[recipeID], i)
	}
	if err := ingRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("sqlite: iterating recipe ingredients: %w", err)
	}
	return tags, ingredients, nil
}

// replaceIngredients deletes every ingredient line of the recipe and bulk
// inserts the new set with one multi-row INSERT.
func replaceIngredients(ctx context.Context, tx *sql.Tx, recipeID int64, lines []model.IngredientAmount) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM recipe_ingredients WHERE recipe_id = ?`, recipeID,
	); err != nil {
		return fmt.Errorf("sqlite: clearing ingredients of recipe %d: %w", recipeID, err)
	}
	if len(lines) == 0 {
		return nil
	}

	values := make([]string, len(lines))
	args := make([]any, 0, len(lines)*3)
	for i, line := range lines {
		values[i] = "(?, ?, ?)"
		args = append(args, recipeID, line.IngredientID, line.Amount)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recipe_ingredients (recipe_id, ingredient_id, amount) VALUES `+strings.Join(values, ", "),
		args...,
	); err != nil {
		if isUniqueViolation(err) {
			return apperror.ValidationFailed("ingredients", "ingredient list contains duplicates")
		}
		return fmt.Errorf("sqlite: inserting ingredients of recipe %d: %w", recipeID, err)
	}
	return nil
}

// replaceTags sets the recipe's tags to exactly tagIDs.
func replaceTags(ctx context.Context, tx *sql.Tx, recipeID int64, tagIDs []int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM recipe_tags WHERE recipe_id = ?`, recipeID,
	); err != nil {
		return fmt.Errorf("sqlite: clearing tags of recipe %d: %w", recipeID, err)
	}
	if len(tagIDs) == 0 {
		return nil
	}

	values := make([]string, len(tagIDs))
	args := make([]any, 0, len(tagIDs)*2)
	for i, tagID := range tagIDs {
		values[i] = "(?, ?)"
		args = append(args, recipeID, tagID)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recipe_tags (recipe_id, tag_id) VALUES `+strings.Join(values, ", "),
		args...,
	); err != nil {
		if isUniqueViolation(err) {
			return apperror.ValidationFailed("tags", "tag list contains duplicates")
		}
		return fmt.Errorf("sqlite: inserting tags of recipe %d: %w", recipeID, err)
	}
	return nil
}
