// Package sqldb holds the dialect helpers shared by the SQL-backed stores.
// Queries are written once with ? placeholders and rebound for Postgres.
package sqldb

import (
	"strconv"
	"strings"
)

// IsPostgresURL reports whether url selects the pgx driver.
func IsPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

// Rebind rewrites ? placeholders to $1, $2, ... when postgres is set and
// returns query unchanged otherwise.
func Rebind(query string, postgres bool) string {
	if !postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
