package sqldb

import "testing"

func TestRebind(t *testing.T) {
	query := "UPDATE projects SET a = ?, b = ? WHERE id = ?"

	if got := Rebind(query, false); got != query {
		t.Errorf("sqlite queries must be left alone, got %q", got)
	}

	want := "UPDATE projects SET a = $1, b = $2 WHERE id = $3"
	if got := Rebind(query, true); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	many := "VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	if got := Rebind(many, true); got != "VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)" {
		t.Errorf("unexpected rebind of %d placeholders: %q", 11, got)
	}
}

func TestIsPostgresURL(t *testing.T) {
	cases := map[string]bool{
		"postgres://localhost/db":   true,
		"postgresql://localhost/db": true,
		"sqlite:///tmp/cache.db":    false,
		"memory://":                 false,
		"":                          false,
	}
	for url, want := range cases {
		if got := IsPostgresURL(url); got != want {
			t.Errorf("IsPostgresURL(%q) = %v, want %v", url, got, want)
		}
	}
}
