package database

import (
	"database/sql"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect hides the differences between the supported SQL engines.
// Queries are written with ? placeholders and rewritten per dialect.
type Dialect interface {
	// Name is the short engine name, also the migrations subdirectory
	Name() string

	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN converts the configured location into a driver DSN
	DSN(location string) string

	// RewriteQuery converts ? placeholders if the engine needs another syntax
	RewriteQuery(query string) string

	// ConfigureConnection applies engine-specific pool settings
	ConfigureConnection(db *sql.DB)

	// IsUniqueViolation reports whether err is a unique constraint failure
	IsUniqueViolation(err error) bool
}

var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// PostgresDialect targets PostgreSQL through lib/pq.
type PostgresDialect struct{}

func (PostgresDialect) Name() string                 { return "postgres" }
func (PostgresDialect) DriverName() string           { return "postgres" }
func (PostgresDialect) DSN(location string) string   { return location }
func (PostgresDialect) RewriteQuery(q string) string { return rewritePlaceholdersToNumbered(q) }

func (PostgresDialect) ConfigureConnection(db *sql.DB) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
}

func (PostgresDialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// SQLiteDialect targets an embedded SQLite file through modernc.org/sqlite.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string                 { return "sqlite" }
func (SQLiteDialect) DriverName() string           { return "sqlite" }
func (SQLiteDialect) RewriteQuery(q string) string { return q }

func (SQLiteDialect) DSN(location string) string {
	sep := "?"
	if strings.Contains(location, "?") {
		sep = "&"
	}
	return location + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// ConfigureConnection serialises access through a single connection; SQLite
// allows one writer at a time and an in-memory database lives per connection.
func (SQLiteDialect) ConfigureConnection(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
}

func (SQLiteDialect) IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE")
}

// dialectFor picks a dialect from a DATABASE_URL and returns the location
// to hand to DSN.
func dialectFor(databaseURL string) (Dialect, string) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return SQLiteDialect{}, strings.TrimPrefix(databaseURL, "sqlite://")
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return SQLiteDialect{}, strings.TrimPrefix(databaseURL, "sqlite:")
	default:
		return PostgresDialect{}, databaseURL
	}
}
