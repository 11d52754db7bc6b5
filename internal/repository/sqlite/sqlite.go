// Package sqlite implements the repository interfaces on top of SQLite.
//
// ONE FILE, ONE PROCESS:
// Foodgram keeps users, recipes, tags, ingredients and the favorite/cart/follow
// junction tables in a single SQLite file. The modernc.org/sqlite driver is a
// pure Go port, so the server and the loaddata command build without cgo.
//
// TABLE OWNERSHIP:
//   - users, follows               → user.go, follow.go
//   - recipes, recipe_ingredients,
//     recipe_tags                  → recipe.go
//   - favorites, shopping_cart     → relation.go, shopping.go
//   - tags, ingredients            → reference.go
//
// Every table is created by migrate() below. Uniqueness rules (one favorite
// per user and recipe, one follow per pair, unique short codes) live in the
// schema, and errors.go turns constraint failures into apperror kinds.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
//
// WHY WRAP sql.DB IN A STRUCT?
// 1. We can attach methods to it (CreateRecipe, ShoppingList, etc.)
// 2. A single *DB satisfies every repository interface in repository.go,
//    so the server wires one value into all services
// 3. We control the lifecycle (New creates it, Close destroys it)
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/foodgram.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (great for tests, lost on close)
//
// CONNECTION POOL:
// sql.Open() does NOT open a connection, it only creates the pool manager.
// The first real connection happens when you run your first query.
// We call db.Ping() to force an immediate connection and verify it works.
//
// IN-MEMORY DATABASES AND THE POOL:
// Every new connection to ":memory:" gets its OWN empty database. If the pool
// opened a second connection, that connection would see no tables at all.
// Limiting the pool to one connection keeps every query on the same database.
// The catch: with one connection, code must finish reading (and Close) one
// result set before starting the next query, or it will wait forever.
func New(dbPath string) (*DB, error) {
	// Open a connection pool to the SQLite database.
	// "sqlite" is the driver name registered by the blank import above.
	conn, err := sql.Open("sqlite", withPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// Surface a bad path or permissions problem now, not on the first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL (Write-Ahead Logging) mode:
	// Default SQLite locks the entire database during writes.
	// WAL mode allows concurrent reads WHILE a write is happening.
	// This is critical for a web server where multiple requests hit the DB.
	// (For ":memory:" SQLite answers "memory" and ignores the request.)
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	// Run database migrations to create/update tables
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// withPragmas appends per-connection PRAGMAs to the data source name.
//
// Foreign keys are OFF by default in SQLite (for backwards compatibility), and
// a PRAGMA only affects the connection it runs on. Passing them through the
// DSN makes the driver apply them to EVERY connection the pool opens, which is
// what makes ON DELETE CASCADE on the junction tables reliable.
func withPragmas(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection pool.
//
// ALWAYS DEFER CLOSE:
// Wherever you call New(), immediately defer Close():
//
//	db, err := sqlite.New("data/foodgram.db")
//	if err != nil { ... }
//	defer db.Close()
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema.
//
// CREATE TABLE IF NOT EXISTS is safe to run on every start; it does not fail if
// the table exists. Junction tables (recipe_ingredients, recipe_tags,
// favorites, shopping_cart, follows) reference both sides with
// ON DELETE CASCADE, and their UNIQUE constraints are the final word on
// duplicates: the services only pre-check, the database decides.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				email         TEXT NOT NULL UNIQUE,
				username      TEXT NOT NULL UNIQUE,
				first_name    TEXT NOT NULL,
				last_name     TEXT NOT NULL,
				avatar        TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL DEFAULT '',
				github_id     INTEGER UNIQUE,
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"tags", `
			CREATE TABLE IF NOT EXISTS tags (
				id   INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				slug TEXT NOT NULL UNIQUE,
				UNIQUE (name, slug)
			);`},
		{"ingredients", `
			CREATE TABLE IF NOT EXISTS ingredients (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				name             TEXT NOT NULL,
				name_lower       TEXT NOT NULL,
				measurement_unit TEXT NOT NULL,
				UNIQUE (name, measurement_unit)
			);
			CREATE INDEX IF NOT EXISTS idx_ingredients_name_lower ON ingredients(name_lower);`},
		{"recipes", `
			CREATE TABLE IF NOT EXISTS recipes (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				author_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				name         TEXT NOT NULL,
				text         TEXT NOT NULL,
				image        TEXT NOT NULL DEFAULT '',
				cooking_time INTEGER NOT NULL CHECK (cooking_time BETWEEN 1 AND 32000),
				short_code   TEXT NOT NULL UNIQUE,
				created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_recipes_created_at ON recipes(created_at);
			CREATE INDEX IF NOT EXISTS idx_recipes_author_id ON recipes(author_id);`},
		{"recipe_ingredients", `
			CREATE TABLE IF NOT EXISTS recipe_ingredients (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				recipe_id     INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
				ingredient_id INTEGER NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
				amount        INTEGER NOT NULL CHECK (amount BETWEEN 1 AND 32000),
				UNIQUE (recipe_id, ingredient_id)
			);`},
		{"recipe_tags", `
			CREATE TABLE IF NOT EXISTS recipe_tags (
				recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
				tag_id    INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
				PRIMARY KEY (recipe_id, tag_id)
			);`},
		{"favorites", `
			CREATE TABLE IF NOT EXISTS favorites (
				user_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
				UNIQUE (user_id, recipe_id)
			);`},
		{"shopping_cart", `
			CREATE TABLE IF NOT EXISTS shopping_cart (
				user_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
				UNIQUE (user_id, recipe_id)
			);`},
		{"follows", `
			CREATE TABLE IF NOT EXISTS follows (
				follower_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				author_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				UNIQUE (follower_id, author_id),
				CHECK (follower_id <> author_id)
			);`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", step.name, err)
		}
	}
	return nil
}
