package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var (
	_ repository.TagRepository        = (*DB)(nil)
	_ repository.IngredientRepository = (*DB)(nil)
)

// ListTags returns every tag ordered by ID, optionally only the one with slug.
func (db *DB) ListTags(ctx context.Context, slug string) ([]model.Tag, error) {
	query := `SELECT id, name, slug FROM tags`
	var args []any
	if slug != "" {
		query += ` WHERE slug = ?`
		args = append(args, slug)
	}
	query += ` ORDER BY id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tags: %w", err)
	}
	return collectTags(rows)
}

func (db *DB) GetTagByID(ctx context.Context, id int64) (*model.Tag, error) {
	var t model.Tag
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, slug FROM tags WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.Slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("tag", id)
		}
		return nil, fmt.Errorf("sqlite: getting tag %d: %w", id, err)
	}
	return &t, nil
}

// CountTags reports how many of ids exist. The caller passes distinct IDs.
func (db *DB) CountTags(ctx context.Context, ids []int64) (int, error) {
	return db.countIDs(ctx, "tags", ids)
}

// ImportTags inserts tags, skipping any whose name or slug is already taken.
// It returns the number of rows actually inserted.
func (db *DB) ImportTags(ctx context.Context, tags []model.Tag) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning tag import: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, t := range tags {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (name, slug) VALUES (?, ?)`, t.Name, t.Slug,
		)
		if err != nil {
			return 0, fmt.Errorf("sqlite: importing tag %q: %w", t.Slug, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing tag import: %w", err)
	}
	return inserted, nil
}

// ListIngredients returns ingredients ordered by name. A non-empty prefix
// keeps only names starting with it, compared case-insensitively.
//
// SQLite's LIKE and lower() only fold ASCII letters, so the lowercase form of
// the name is computed in Go (which handles Cyrillic and the rest of Unicode)
// and stored in name_lower at insert time. The prefix is lowered the same way.
func (db *DB) ListIngredients(ctx context.Context, namePrefix string) ([]model.Ingredient, error) {
	query := `SELECT id, name, measurement_unit FROM ingredients`
	var args []any
	if namePrefix != "" {
		query += ` WHERE name_lower LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(strings.ToLower(namePrefix))+"%")
	}
	query += ` ORDER BY name, id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ingredients: %w", err)
	}
	defer rows.Close()

	ingredients := make([]model.Ingredient, 0)
	for rows.Next() {
		var i model.Ingredient
		if err := rows.Scan(&i.ID, &i.Name, &i.MeasurementUnit); err != nil {
			return nil, fmt.Errorf("sqlite: scanning ingredient row: %w", err)
		}
		ingredients = append(ingredients, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ingredients: %w", err)
	}
	return ingredients, nil
}

func (db *DB) GetIngredientByID(ctx context.Context, id int64) (*model.Ingredient, error) {
	var i model.Ingredient
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, measurement_unit FROM ingredients WHERE id = ?`, id,
	).Scan(&i.ID, &i.Name, &i.MeasurementUnit)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("ingredient", id)
		}
		return nil, fmt.Errorf("sqlite: getting ingredient %d: %w", id, err)
	}
	return &i, nil
}

// CountIngredients reports how many of ids exist. The caller passes distinct IDs.
func (db *DB) CountIngredients(ctx context.Context, ids []int64) (int, error) {
	return db.countIDs(ctx, "ingredients", ids)
}

// ImportIngredients inserts ingredients, skipping (name, unit) pairs that
// already exist, so loading the same fixture twice is harmless.
func (db *DB) ImportIngredients(ctx context.Context, ingredients []model.Ingredient) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning ingredient import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO ingredients (name, name_lower, measurement_unit) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: preparing ingredient import: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, i := range ingredients {
		res, err := stmt.ExecContext(ctx, i.Name, strings.ToLower(i.Name), i.MeasurementUnit)
		if err != nil {
			return 0, fmt.Errorf("sqlite: importing ingredient %q: %w", i.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing ingredient import: %w", err)
	}
	return inserted, nil
}

// countIDs counts rows of table whose id is in ids. table is always a
// constant from this package.
func (db *DB) countIDs(ctx context.Context, table string, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	err := db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id IN (%s)`, table, placeholders(len(ids))),
		int64Args(ids)...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting %s: %w", table, err)
	}
	return n, nil
}

func collectTags(rows *sql.Rows) ([]model.Tag, error) {
	defer rows.Close()

	tags := make([]model.Tag, 0)
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag row: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tags: %w", err)
	}
	return tags, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
