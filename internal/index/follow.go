package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/recipebox/internal/recipes"
)

// Source publishes successive versions of the recipe document.
type Source interface {
	Observe(ctx context.Context) (<-chan *recipes.RecipeList, error)
}

// Follow keeps db in sync with every document src publishes until ctx is
// done. onSync, if non-nil, is called after each pass.
func Follow(ctx context.Context, db RecipeIndex, src Source, logger *slog.Logger, onSync func(SyncStats)) error {
	ch, err := src.Observe(ctx)
	if err != nil {
		return fmt.Errorf("index: observe: %w", err)
	}
	logger.Info("index: following recipe document")

	for doc := range ch {
		stats, err := Sync(db, doc, logger)
		if err != nil {
			logger.Error("index: sync failed", slog.String("error", err.Error()))
			continue
		}
		if stats.Indexed+stats.Moved+stats.Removed > 0 {
			logger.Info("index: synced",
				slog.Int("indexed", stats.Indexed),
				slog.Int("moved", stats.Moved),
				slog.Int("removed", stats.Removed))
		}
		if onSync != nil {
			onSync(stats)
		}
	}
	return ctx.Err()
}
