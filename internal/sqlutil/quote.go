// Package sqlutil provides SQL utility functions for xdump.
package sqlutil

import (
	"regexp"
	"strings"
)

// QuoteIdentifier quotes a PostgreSQL identifier (table name, column name) with
// double quotes. It escapes any existing double quotes by doubling them.
// Example: "my_table" -> `"my_table"`
// Example: `my"table` -> `"my""table"`
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// validIdentifierRegex matches valid unquoted PostgreSQL identifier characters.
// For safety, we restrict to alphanumeric and underscore only, which also
// excludes schema-qualifying dots: schema-qualified names must be quoted
// segment by segment before being joined.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z_][a-zA-Z0-9_]*$")

// IsValidIdentifier checks if a name is a valid unquoted PostgreSQL identifier.
// It validates that the name starts with a letter or underscore and only
// contains alphanumeric characters and underscores afterward. This is a
// defense-in-depth measure against SQL injection when identifiers are
// interpolated into generated SQL rather than passed as bind parameters.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// QuoteIdentifierSafe quotes a PostgreSQL identifier after validating it.
// Returns an error if the identifier contains invalid characters.
// Use this when identifiers might come from untrusted sources.
func QuoteIdentifierSafe(name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return QuoteIdentifier(name), nil
}

// QuoteQualified quotes a possibly schema-qualified identifier, e.g.
// "public.orders" -> `"public"."orders"`. Each dot-separated segment is
// quoted independently.
func QuoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must start with a letter or underscore and contain only alphanumeric characters and underscores)"
}
