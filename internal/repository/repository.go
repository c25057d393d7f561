// Package repository exposes named recipe mutations on top of the document
// store. Every operation is a single whole-document update; the repository
// itself holds no state.
package repository

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/datastore"
	"github.com/starford/recipebox/internal/recipes"
)

// Store is the subset of the document store the repository needs.
type Store interface {
	Read(ctx context.Context) (*recipes.RecipeList, error)
	Update(ctx context.Context, fn datastore.Transform) (*recipes.RecipeList, error)
	Subscribe() <-chan *recipes.RecipeList
	Unsubscribe(ch <-chan *recipes.RecipeList)
}

var _ Store = (*datastore.Store)(nil)

// DefaultRecipeName is used when a recipe is created without a name.
const DefaultRecipeName = "New Recipe"

// Repository issues recipe operations against a Store.
type Repository struct {
	store Store
}

// New creates a repository over store.
func New(store Store) *Repository {
	return &Repository{store: store}
}

// Recipes returns the current document.
func (r *Repository) Recipes(ctx context.Context) (*recipes.RecipeList, error) {
	return r.store.Read(ctx)
}

// Recipe returns the recipe at index.
func (r *Repository) Recipe(ctx context.Context, index int) (recipes.Recipe, error) {
	doc, err := r.store.Read(ctx)
	if err != nil {
		return recipes.Recipe{}, err
	}
	if err := checkIndex("recipe", index, len(doc.Recipes)); err != nil {
		return recipes.Recipe{}, err
	}
	return doc.Recipes[index], nil
}

// Observe streams the current document and every later version until ctx is
// done. The channel is closed when observation ends.
func (r *Repository) Observe(ctx context.Context) (<-chan *recipes.RecipeList, error) {
	sub := r.store.Subscribe()
	// Forces the initial load so a fresh store publishes its first document.
	if _, err := r.store.Read(ctx); err != nil {
		r.store.Unsubscribe(sub)
		return nil, err
	}
	out := make(chan *recipes.RecipeList, 1)
	go func() {
		defer close(out)
		defer r.store.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case doc, ok := <-sub:
				if !ok {
					return
				}
				select {
				case out <- doc:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// CreateRecipe appends a recipe with no items and returns its index.
func (r *Repository) CreateRecipe(ctx context.Context, name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultRecipeName
	}
	index := -1
	_, err := r.store.Update(ctx, func(doc *recipes.RecipeList) (*recipes.RecipeList, error) {
		doc.Recipes = append(doc.Recipes, recipes.Recipe{
			ID:          recipes.NewID(),
			Name:        name,
			Ingredients: []recipes.Ingredient{},
			Steps:       []recipes.Step{},
		})
		index = len(doc.Recipes) - 1
		return doc, nil
	})
	if err != nil {
		return -1, err
	}
	return index, nil
}

// ImportRecipe appends a complete recipe in one update and returns its index.
// Missing ids are assigned; every ingredient is validated first.
func (r *Repository) ImportRecipe(ctx context.Context, rec recipes.Recipe) (int, error) {
	for _, ing := range rec.Ingredients {
		if err := ValidateIngredient(ing); err != nil {
			return -1, err
		}
	}
	rec = rec.Clone()
	if strings.TrimSpace(rec.Name) == "" {
		rec.Name = DefaultRecipeName
	}
	if rec.Ingredients == nil {
		rec.Ingredients = []recipes.Ingredient{}
	}
	if rec.Steps == nil {
		rec.Steps = []recipes.Step{}
	}
	index := -1
	_, err := r.store.Update(ctx, func(doc *recipes.RecipeList) (*recipes.RecipeList, error) {
		for _, other := range doc.Recipes {
			if rec.ID != "" && other.ID == rec.ID {
				// Imported twice: keep both, the copy gets new ids.
				rec.ID = ""
				for i := range rec.Ingredients {
					rec.Ingredients[i].ID = ""
				}
				for i := range rec.Steps {
					rec.Steps[i].ID = ""
				}
				break
			}
		}
		doc.Recipes = append(doc.Recipes, rec)
		index = len(doc.Recipes) - 1
		return doc, nil
	})
	if err != nil {
		return -1, err
	}
	return index, nil
}

// UpdateRecipe renames the recipe at index.
func (r *Repository) UpdateRecipe(ctx context.Context, index int, name string) error {
	return r.withRecipe(ctx, index, func(rec *recipes.Recipe) error {
		rec.Name = name
		return nil
	})
}

// DeleteRecipe removes the recipe at index; later recipes shift down.
func (r *Repository) DeleteRecipe(ctx context.Context, index int) error {
	_, err := r.store.Update(ctx, func(doc *recipes.RecipeList) (*recipes.RecipeList, error) {
		if err := checkIndex("recipe", index, len(doc.Recipes)); err != nil {
			return nil, err
		}
		doc.Recipes = remove(doc.Recipes, index)
		return doc, nil
	})
	return err
}

// AddIngredient appends ing to the recipe at recipeIndex. An empty ing.ID is
// replaced with a fresh one.
func (r *Repository) AddIngredient(ctx context.Context, recipeIndex int, ing recipes.Ingredient) error {
	if err := ValidateIngredient(ing); err != nil {
		return err
	}
	if ing.ID == "" {
		ing.ID = recipes.NewID()
	}
	return r.withRecipe(ctx, recipeIndex, func(rec *recipes.Recipe) error {
		rec.Ingredients = append(rec.Ingredients, ing)
		return nil
	})
}

// UpdateIngredient replaces the fields of one ingredient, keeping its id.
func (r *Repository) UpdateIngredient(ctx context.Context, recipeIndex, ingredientIndex int, ing recipes.Ingredient) error {
	if err := ValidateIngredient(ing); err != nil {
		return err
	}
	return r.withRecipe(ctx, recipeIndex, func(rec *recipes.Recipe) error {
		if err := checkIndex("ingredient", ingredientIndex, len(rec.Ingredients)); err != nil {
			return err
		}
		ing.ID = rec.Ingredients[ingredientIndex].ID
		rec.Ingredients[ingredientIndex] = ing
		return nil
	})
}

// UpdateIngredientByID replaces the fields of the ingredient with the given
// id. The position is resolved inside the update, so concurrent inserts or
// removals in front of it cannot redirect the write.
func (r *Repository) UpdateIngredientByID(ctx context.Context, recipeIndex int, id string, ing recipes.Ingredient) error {
	if err := ValidateIngredient(ing); err != nil {
		return err
	}
	return r.withRecipe(ctx, recipeIndex, func(rec *recipes.Recipe) error {
		j := slices.IndexFunc(rec.Ingredients, func(x recipes.Ingredient) bool { return x.ID == id })
		if j < 0 {
			return fmt.Errorf("ingredient %q: %w", id, apperr.ErrOutOfRange)
		}
		ing.ID = id
		rec.Ingredients[j] = ing
		return nil
	})
}

// RemoveIngredient deletes one ingredient.
func (r *Repository) RemoveIngredient(ctx context.Context, recipeIndex, ingredientIndex int) error {
	return r.withRecipe(ctx, recipeIndex, func(rec *recipes.Recipe) error {
		if err := checkIndex("ingredient", ingredientIndex, len(rec.Ingredients)); err != nil {
			return err
		}
		rec.Ingredients = remove(rec.Ingredients, ingredientIndex)
		return nil
	})
}

// AddStep appends st to the recipe at recipeIndex. An empty st.ID is replaced
// with a fresh one.
func (r *Repository) AddStep(ctx context.Context, recipeIndex int, st recipes.Step) error {
	if st.ID == "" {
		st.ID = recipes.NewID()
	}
	return r.withRecipe(ctx, recipeIndex, func(rec *recipes.Recipe) error {
		rec.Steps = append(rec.Steps, st)
		return nil
	})
}

// UpdateStep replaces the text of one step.
func (r *Repository) UpdateStep(ctx context.Context, recipeIndex, stepIndex int, text string) error {
	return r.withRecipe(ctx, recipeIndex, func(rec *recipes.Recipe) error {
		if err := checkIndex("step", stepIndex, len(rec.Steps)); err != nil {
			return err
		}
		rec.Steps[stepIndex].Text = text
		return nil
	})
}

// UpdateStepByID replaces the text of the step with the given id.
func (r *Repository) UpdateStepByID(ctx context.Context, recipeIndex int, id, text string) error {
	return r.withRecipe(ctx, recipeIndex, func(rec *recipes.Recipe) error {
		j := slices.IndexFunc(rec.Steps, func(x recipes.Step) bool { return x.ID == id })
		if j < 0 {
			return fmt.Errorf("step %q: %w", id, apperr.ErrOutOfRange)
		}
		rec.Steps[j].Text = text
		return nil
	})
}

// RemoveStep deletes one step.
func (r *Repository) RemoveStep(ctx context.Context, recipeIndex, stepIndex int) error {
	return r.withRecipe(ctx, recipeIndex, func(rec *recipes.Recipe) error {
		if err := checkIndex("step", stepIndex, len(rec.Steps)); err != nil {
			return err
		}
		rec.Steps = remove(rec.Steps, stepIndex)
		return nil
	})
}

func (r *Repository) withRecipe(ctx context.Context, index int, fn func(*recipes.Recipe) error) error {
	_, err := r.store.Update(ctx, func(doc *recipes.RecipeList) (*recipes.RecipeList, error) {
		if err := checkIndex("recipe", index, len(doc.Recipes)); err != nil {
			return nil, err
		}
		if err := fn(&doc.Recipes[index]); err != nil {
			return nil, err
		}
		return doc, nil
	})
	return err
}

// ValidateIngredient checks the stored fields of an ingredient.
func ValidateIngredient(ing recipes.Ingredient) error {
	q := float64(ing.Quantity)
	err := validation.ValidateStruct(&ing,
		validation.Field(&ing.Quantity,
			validation.By(func(any) error {
				if math.IsNaN(q) || math.IsInf(q, 0) {
					return validation.NewError("validation_finite", "must be a finite number")
				}
				return nil
			}),
			validation.Min(float32(0)),
		),
		validation.Field(&ing.Unit, validation.By(func(any) error {
			if !ing.Unit.Valid() {
				return validation.NewError("validation_unit", "must be a known unit")
			}
			return nil
		})),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}

func checkIndex(what string, index, n int) error {
	if index < 0 || index >= n {
		return fmt.Errorf("%s %d of %d: %w", what, index, n, apperr.ErrOutOfRange)
	}
	return nil
}

func remove[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}
