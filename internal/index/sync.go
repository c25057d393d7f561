package index

import (
	"log/slog"

	"github.com/starford/recipebox/internal/checksum"
	"github.com/starford/recipebox/internal/recipes"
)

// SyncStats summarises one Sync pass.
type SyncStats struct {
	Indexed   int
	Moved     int
	Removed   int
	Unchanged int
}

// Sync brings the index up to date with doc:
//   - new/changed recipes are upserted
//   - recipes that only changed position are renumbered
//   - recipes no longer in doc are deleted from the index
func Sync(db RecipeIndex, doc *recipes.RecipeList, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats
	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}
	rows, err := db.ListRecipes()
	if err != nil {
		return stats, err
	}
	positions := make(map[string]int, len(rows))
	for _, r := range rows {
		positions[r.ID] = r.Position
	}

	seen := make(map[string]struct{}, len(doc.Recipes))
	for i, r := range doc.Recipes {
		if r.ID == "" {
			logger.Warn("sync: recipe without id", slog.Int("index", i))
			continue
		}
		if _, dup := seen[r.ID]; dup {
			logger.Warn("sync: duplicate recipe id", slog.String("id", r.ID), slog.Int("index", i))
			continue
		}
		seen[r.ID] = struct{}{}

		sum := checksum.Recipe(r)
		if checksums[r.ID] == sum {
			if positions[r.ID] == i {
				stats.Unchanged++
				continue
			}
			if err := db.SetPosition(r.ID, i); err != nil {
				logger.Warn("sync: renumber failed", slog.String("id", r.ID), slog.String("error", err.Error()))
				continue
			}
			stats.Moved++
			continue
		}
		if err := db.UpsertRecipe(i, r, sum); err != nil {
			logger.Warn("sync: index failed", slog.String("id", r.ID), slog.String("error", err.Error()))
			continue
		}
		stats.Indexed++
		logger.Debug("sync: indexed", slog.String("id", r.ID), slog.String("name", r.Name))
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := seen[id]; ok {
			continue
		}
		if err := db.DeleteRecipe(id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("id", id))
	}

	return stats, nil
}
