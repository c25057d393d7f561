// Package testutil provides shared test helpers for setting up data
// directories, stores and indexes.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/recipebox/internal/datastore"
	"github.com/starford/recipebox/internal/index"
	"github.com/starford/recipebox/internal/recipes"
	"github.com/starford/recipebox/internal/repository"
	"github.com/starford/recipebox/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDir creates a temporary data directory with a storage.Provider.
func TestDir(t *testing.T) storage.Provider {
	t.Helper()
	p, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// TestStore opens a store in a fresh data directory and closes it on cleanup.
func TestStore(t *testing.T) *datastore.Store {
	t.Helper()
	s, err := datastore.Open(TestDir(t), datastore.DefaultFileName, datastore.WithLogger(Logger()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestRepo returns a repository over a fresh store.
func TestRepo(t *testing.T) *repository.Repository {
	t.Helper()
	return repository.New(TestStore(t))
}

// Seed appends the given recipes to the store behind repo.
func Seed(t *testing.T, repo *repository.Repository, rs ...recipes.Recipe) {
	t.Helper()
	ctx := context.Background()
	for _, r := range rs {
		i, err := repo.CreateRecipe(ctx, r.Name)
		if err != nil {
			t.Fatal(err)
		}
		for _, ing := range r.Ingredients {
			if err := repo.AddIngredient(ctx, i, ing); err != nil {
				t.Fatal(err)
			}
		}
		for _, st := range r.Steps {
			if err := repo.AddStep(ctx, i, st); err != nil {
				t.Fatal(err)
			}
		}
	}
}

// TestDB creates a temporary SQLite index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "recipebox-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
