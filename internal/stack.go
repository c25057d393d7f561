package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/recipebox/internal/datastore"
	"github.com/starford/recipebox/internal/index"
	"github.com/starford/recipebox/internal/repository"
	"github.com/starford/recipebox/internal/storage"
)

var errConfigRequired = errors.New("config is required")

// NewLogger returns the structured JSON logger used by every command.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Stack is the storage side of the application: the data directory, the
// document store, the repository over it and the optional search index.
type Stack struct {
	Provider *storage.FS
	Store    *datastore.Store
	Repo     *repository.Repository
	// DB is nil when the index is disabled.
	DB *index.DB

	cfg    *Config
	logger *slog.Logger
}

// Open builds the stack described by cfg. reg may be nil.
func Open(cfg *Config, logger *slog.Logger, reg prometheus.Registerer) (*Stack, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}
	if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	provider, err := storage.NewFS(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	opts := []datastore.Option{datastore.WithLogger(logger)}
	if reg != nil {
		opts = append(opts, datastore.WithRegisterer(reg))
	}
	store, err := datastore.Open(provider, cfg.Store.File, opts...)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	s := &Stack{
		Provider: provider,
		Store:    store,
		Repo:     repository.New(store),
		cfg:      cfg,
		logger:   logger,
	}
	if cfg.Index.Enabled {
		db, err := index.Open(cfg.Index.Path)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init index: %w", err)
		}
		s.DB = db
	}
	return s, nil
}

// Index returns the search index, or nil when it is disabled.
func (s *Stack) Index() index.RecipeIndex {
	if s.DB == nil {
		return nil
	}
	return s.DB
}

// SyncIndex brings the index up to date with the current document once.
func (s *Stack) SyncIndex(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	doc, err := s.Repo.Recipes(ctx)
	if err != nil {
		return err
	}
	_, err = index.Sync(s.DB, doc, s.logger)
	return err
}

// Close releases the store and the index.
func (s *Stack) Close() error {
	err := s.Store.Close()
	if s.DB != nil {
		err = errors.Join(err, s.DB.Close())
	}
	return err
}
