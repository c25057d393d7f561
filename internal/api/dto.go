package api

import (
	"fmt"
	"strings"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/index"
	"github.com/starford/recipebox/internal/projector"
	"github.com/starford/recipebox/internal/recipes"
)

// CreateRecipeRequest is the request body for creating a recipe.
type CreateRecipeRequest struct {
	Name string `json:"name" example:"Tomato Soup"`
}

// RenameRecipeRequest is the request body for renaming a recipe.
type RenameRecipeRequest struct {
	Name string `json:"name" example:"Tomato Soup" validate:"required"`
}

// IngredientRequest is the request body for adding or replacing an ingredient.
type IngredientRequest struct {
	Quantity float32 `json:"quantity" example:"1.5"`
	Unit     string  `json:"unit" example:"cup"`
	Name     string  `json:"name" example:"flour" validate:"required"`
}

func (r IngredientRequest) ingredient() (recipes.Ingredient, error) {
	ing := recipes.Ingredient{Quantity: r.Quantity, Unit: recipes.UnitUnit, Name: strings.TrimSpace(r.Name)}
	if ing.Name == "" {
		return ing, fmt.Errorf("%w: name is required", apperr.ErrInvalidInput)
	}
	if r.Unit != "" {
		u, err := recipes.ParseUnit(r.Unit)
		if err != nil {
			return ing, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
		}
		ing.Unit = u
	}
	return ing, nil
}

// StepRequest is the request body for adding or replacing a step.
type StepRequest struct {
	Text string `json:"text" example:"Simmer for 20 minutes" validate:"required"`
}

// RecipeSummary is a lightweight item in a list response.
type RecipeSummary struct {
	Index       int    `json:"index" example:"0"`
	ID          string `json:"id"`
	Name        string `json:"name" example:"Tomato Soup"`
	Ingredients int    `json:"ingredients" example:"4"`
	Steps       int    `json:"steps" example:"3"`
}

// RecipeListResponse wraps recipe listings.
type RecipeListResponse struct {
	Recipes []RecipeSummary `json:"recipes" validate:"required"`
}

// RecipeDetail is the full recipe response.
type RecipeDetail struct {
	Index int `json:"index"`
	recipes.Recipe
}

// RowDTO is one display row tagged with its kind.
type RowDTO struct {
	Kind string        `json:"kind" example:"ingredient"`
	Data projector.Row `json:"data"`
}

// ViewResponse is the display state of one recipe.
type ViewResponse struct {
	Index       int                    `json:"index"`
	Name        string                 `json:"name"`
	Multiplier  projector.Multiplier   `json:"multiplier"`
	Multipliers []projector.Multiplier `json:"multipliers"`
	Rows        []RowDTO               `json:"rows"`
}

func newViewResponse(st projector.State) *ViewResponse {
	rows := make([]RowDTO, len(st.Rows))
	for i, r := range st.Rows {
		rows[i] = RowDTO{Kind: projector.Kind(r), Data: r}
	}
	return &ViewResponse{
		Index:       st.RecipeIndex,
		Name:        st.RecipeName,
		Multiplier:  st.Multiplier,
		Multipliers: st.Multipliers,
		Rows:        rows,
	}
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
