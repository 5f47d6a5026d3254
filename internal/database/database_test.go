package database_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"

	"yanderss/internal/database"
)

func newDatabase(t *testing.T, path string) *database.Database {
	t.Helper()

	db, err := database.New(context.Background(), path, slog.Default())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestKeywordsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t, filepath.Join(t.TempDir(), "config", "keywords.sqlite"))

	added, err := db.AddKeywords(ctx, []string{"sky", " landscape ", "", "sky"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if !slices.Equal(added, []string{"sky", "landscape"}) {
		t.Fatalf("unexpected added keywords: %v", added)
	}

	if _, err = db.AddKeywords(ctx, []string{"cloud"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	keywords, err := db.ListKeywords(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if !slices.Equal(keywords, []string{"sky", "landscape", "cloud"}) {
		t.Fatalf("unexpected keywords: %v", keywords)
	}
}

func TestRemoveKeywords(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t, filepath.Join(t.TempDir(), "keywords.sqlite"))

	if _, err := db.AddKeywords(ctx, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	removed, err := db.RemoveKeywords(ctx, []string{"b", "missing"})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}

	if !slices.Equal(removed, []string{"b"}) {
		t.Fatalf("unexpected removed keywords: %v", removed)
	}

	keywords, _ := db.ListKeywords(ctx)
	if !slices.Equal(keywords, []string{"a", "c"}) {
		t.Fatalf("unexpected keywords: %v", keywords)
	}
}

func TestKeywordsPersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keywords.sqlite")

	first, err := database.New(ctx, path, slog.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err = first.AddKeywords(ctx, []string{"persisted"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_ = first.Close()

	second := newDatabase(t, path)
	keywords, err := second.ListKeywords(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if !slices.Equal(keywords, []string{"persisted"}) {
		t.Fatalf("unexpected keywords after reopen: %v", keywords)
	}
}
