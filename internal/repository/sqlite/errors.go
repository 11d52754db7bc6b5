package sqlite

import (
	"errors"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// CONSTRAINT VIOLATIONS:
// Two requests can pass the same service pre-check ("is this recipe already a
// favorite?") at the same moment. Only one INSERT wins; the other fails with a
// UNIQUE constraint error from SQLite. These helpers recognise those failures
// so the repository can return the same apperror a pre-check would have.
//
// modernc.org/sqlite reports errors as *sqlite.Error, whose Code() is the
// SQLite "extended result code" (e.g. SQLITE_CONSTRAINT_UNIQUE = 2067).

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY violation.
func isUniqueViolation(err error) bool {
	code, ok := sqliteCode(err)
	return ok && (code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}

// isCheckViolation reports whether err is a CHECK constraint violation.
func isCheckViolation(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT_CHECK
}

// isForeignKeyViolation reports whether err is a FOREIGN KEY violation: the
// row a junction insert points at was deleted after the service checked it.
func isForeignKeyViolation(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// violatesColumn reports whether a constraint error names table.column,
// e.g. "UNIQUE constraint failed: users.email".
func violatesColumn(err error, column string) bool {
	return strings.Contains(err.Error(), column)
}

func sqliteCode(err error) (int, bool) {
	var se *msqlite.Error
	if errors.As(err, &se) {
		return se.Code(), true
	}
	return 0, false
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// int64Args converts ids into query arguments for an IN (...) clause.
func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
