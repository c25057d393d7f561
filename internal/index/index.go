package index

import "github.com/starford/recipebox/internal/recipes"

// RecipeIndex defines the read model kept alongside the recipe document.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type RecipeIndex interface {
	UpsertRecipe(position int, r recipes.Recipe, sum string) error
	DeleteRecipe(id string) error
	SetPosition(id string, position int) error
	AllChecksums() (map[string]string, error)
	ListRecipes() ([]RecipeRow, error)
	WithIngredient(name string) ([]RecipeRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies RecipeIndex at compile time.
var _ RecipeIndex = (*DB)(nil)
