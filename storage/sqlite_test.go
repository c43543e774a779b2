package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/richinex/bookforge/model"
)

func TestSqlitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.db")
	ctx := context.Background()

	s, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("OpenSqlite failed: %v", err)
	}
	p := mustCreate(t, s)
	limit := int64(250)
	if err := s.SetSpendLimit(ctx, p.ID, &limit); err != nil {
		t.Fatalf("SetSpendLimit failed: %v", err)
	}
	if _, err := s.SaveArtifact(ctx, Artifact{ProjectID: p.ID, Stage: model.StageIdea, Output: "seed"}); err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	b, err := reopened.Budget(ctx, p.ID)
	if err != nil {
		t.Fatalf("Budget failed: %v", err)
	}
	if b.SpendLimitCents == nil || *b.SpendLimitCents != 250 {
		t.Errorf("expected limit 250 after reopen, got %v", b.SpendLimitCents)
	}

	next, err := reopened.SaveArtifact(ctx, Artifact{ProjectID: p.ID, Stage: model.StageIdea, Output: "again"})
	if err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}
	if next.Version != 2 {
		t.Errorf("expected version 2 after reopen, got %d", next.Version)
	}
}

func TestSqliteOpenMemoryPath(t *testing.T) {
	s, err := OpenSqlite(":memory:")
	if err != nil {
		t.Fatalf("OpenSqlite(:memory:) failed: %v", err)
	}
	defer s.Close()
	// a single pooled connection keeps every query on the same database
	p := mustCreate(t, s)
	if _, err := s.GetProject(context.Background(), p.ID); err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
}

func TestRebindFollowsDialect(t *testing.T) {
	query := "SELECT 1 FROM projects WHERE id = ?"

	if got := (&SQLStore{}).rebind(query); got != query {
		t.Errorf("sqlite queries must be left alone, got %q", got)
	}
	if got := (&SQLStore{postgres: true}).rebind(query); got != "SELECT 1 FROM projects WHERE id = $1" {
		t.Errorf("unexpected postgres query %q", got)
	}
}
