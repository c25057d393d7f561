package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/index"
	"github.com/starford/recipebox/internal/projector"
)

const maxBody = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// pathIndex reads a non-negative integer URL parameter.
func pathIndex(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", apperr.ErrInvalidInput, name)
	}
	return v, nil
}

// itemIndex reads the {index} and {item} URL parameters.
func itemIndex(r *http.Request) (int, int, error) {
	i, err := pathIndex(r, "index")
	if err != nil {
		return 0, 0, err
	}
	item, err := pathIndex(r, "item")
	if err != nil {
		return 0, 0, err
	}
	return i, item, nil
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body", apperr.ErrInvalidInput)
	}
	return nil
}

// ListRecipes handles GET /api/recipes.
//
//	@Summary		List recipes in document order
//	@Tags			recipes
//	@Produce		json
//	@Param			ingredient	query		string	false	"Only recipes using this ingredient"
//	@Success		200			{object}	RecipeListResponse
//	@Security		BearerAuth
//	@Router			/recipes [get]
func (h *Handler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	var (
		items []RecipeSummary
		err   error
	)
	if name := r.URL.Query().Get("ingredient"); name != "" {
		items, err = h.svc.WithIngredient(r.Context(), name)
	} else {
		items, err = h.svc.List(r.Context())
	}
	if err != nil {
		writeError(w, "list recipes", err)
		return
	}
	writeJSON(w, http.StatusOK, RecipeListResponse{Recipes: items})
}

// CreateRecipe handles POST /api/recipes.
//
//	@Summary		Create an empty recipe
//	@Tags			recipes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateRecipeRequest	true	"Recipe to create"
//	@Success		201		{object}	RecipeDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes [post]
func (h *Handler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req CreateRecipeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, "create recipe", err)
		return
	}
	rec, err := h.svc.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, "create recipe", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ImportRecipe handles POST /api/recipes/import.
//
//	@Summary		Import a recipe from Markdown
//	@Tags			recipes
//	@Accept			text/markdown
//	@Produce		json
//	@Success		201	{object}	RecipeDetail
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/import [post]
func (h *Handler) ImportRecipe(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	rec, err := h.svc.Import(r.Context(), data)
	if err != nil {
		writeError(w, "import recipe", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetRecipe handles GET /api/recipes/{index}.
//
//	@Summary		Get a recipe by position
//	@Tags			recipes
//	@Produce		json
//	@Param			index	path		int	true	"Recipe index"
//	@Success		200		{object}	RecipeDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/{index} [get]
func (h *Handler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, "get recipe", err)
		return
	}
	rec, err := h.svc.Get(r.Context(), i)
	if err != nil {
		writeError(w, "get recipe", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// RenameRecipe handles PUT /api/recipes/{index}.
//
//	@Summary		Rename a recipe
//	@Tags			recipes
//	@Accept			json
//	@Produce		json
//	@Param			index	path		int					true	"Recipe index"
//	@Param			body	body		RenameRecipeRequest	true	"New name"
//	@Success		200		{object}	RecipeDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/{index} [put]
func (h *Handler) RenameRecipe(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, "rename recipe", err)
		return
	}
	var req RenameRecipeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, "rename recipe", err)
		return
	}
	rec, err := h.svc.Rename(r.Context(), i, req.Name)
	if err != nil {
		writeError(w, "rename recipe", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecipe handles DELETE /api/recipes/{index}.
//
//	@Summary		Delete a recipe; later recipes shift down
//	@Tags			recipes
//	@Param			index	path	int	true	"Recipe index"
//	@Success		204		"Recipe deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/{index} [delete]
func (h *Handler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, "delete recipe", err)
		return
	}
	if err := h.svc.Delete(r.Context(), i); err != nil {
		writeError(w, "delete recipe", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ViewRecipe handles GET /api/recipes/{index}/view.
//
//	@Summary		Display rows of a recipe with scaled quantities
//	@Tags			recipes
//	@Produce		json
//	@Param			index		path		int		true	"Recipe index"
//	@Param			multiplier	query		string	false	"Quantity multiplier"	Enums(0.5x, 1x, 1.5x, 2x)
//	@Success		200			{object}	ViewResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/{index}/view [get]
func (h *Handler) ViewRecipe(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, "view recipe", err)
		return
	}
	m, err := projector.ParseMultiplier(r.URL.Query().Get("multiplier"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	view, err := h.svc.View(r.Context(), i, m)
	if err != nil {
		writeError(w, "view recipe", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ExportRecipe handles GET /api/recipes/{index}/markdown.
//
//	@Summary		Export a recipe as Markdown
//	@Tags			recipes
//	@Produce		text/markdown
//	@Param			index	path	int	true	"Recipe index"
//	@Success		200		{string}	string
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/{index}/markdown [get]
func (h *Handler) ExportRecipe(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, "export recipe", err)
		return
	}
	data, err := h.svc.Markdown(r.Context(), i)
	if err != nil {
		writeError(w, "export recipe", err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// AddIngredient handles POST /api/recipes/{index}/ingredients.
//
//	@Summary		Append an ingredient
//	@Tags			ingredients
//	@Accept			json
//	@Produce		json
//	@Param			index	path		int					true	"Recipe index"
//	@Param			body	body		IngredientRequest	true	"Ingredient"
//	@Success		201		{object}	RecipeDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/{index}/ingredients [post]
func (h *Handler) AddIngredient(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, "add ingredient", err)
		return
	}
	var req IngredientRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, "add ingredient", err)
		return
	}
	rec, err := h.svc.AddIngredient(r.Context(), i, req)
	if err != nil {
		writeError(w, "add ingredient", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// UpdateIngredient handles PUT /api/recipes/{index}/ingredients/{item}.
//
//	@Summary		Replace an ingredient
//	@Tags			ingredients
//	@Accept			json
//	@Produce		json
//	@Param			index	path		int					true	"Recipe index"
//	@Param			item	path		int					true	"Ingredient index"
//	@Param			body	body		IngredientRequest	true	"Ingredient"
//	@Success		200		{object}	RecipeDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/{index}/ingredients/{item} [put]
func (h *Handler) UpdateIngredient(w http.ResponseWriter, r *http.Request) {
	i, item, err := itemIndex(r)
	if err != nil {
		writeError(w, "update ingredient", err)
		return
	}
	var req IngredientRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, "update ingredient", err)
		return
	}
	rec, err := h.svc.UpdateIngredient(r.Context(), i, item, req)
	if err != nil {
		writeError(w, "update ingredient", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// RemoveIngredient handles DELETE /api/recipes/{index}/ingredients/{item}.
//
//	@Summary		Remove an ingredient
//	@Tags			ingredients
//	@Param			index	path	int	true	"Recipe index"
//	@Param			item	path	int	true	"Ingredient index"
//	@Success		204		"Ingredient removed"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/{index}/ingredients/{item} [delete]
func (h *Handler) RemoveIngredient(w http.ResponseWriter, r *http.Request) {
	i, item, err := itemIndex(r)
	if err != nil {
		writeError(w, "remove ingredient", err)
		return
	}
	if err := h.svc.RemoveIngredient(r.Context(), i, item); err != nil {
		writeError(w, "remove ingredient", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddStep handles POST /api/recipes/{index}/steps.
//
//	@Summary		Append a step
//	@Tags			steps
//	@Accept			json
//	@Produce		json
//	@Param			index	path		int			true	"Recipe index"
//	@Param			body	body		StepRequest	true	"Step"
//	@Success		201		{object}	RecipeDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/{index}/steps [post]
func (h *Handler) AddStep(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, "add step", err)
		return
	}
	var req StepRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, "add step", err)
		return
	}
	rec, err := h.svc.AddStep(r.Context(), i, req.Text)
	if err != nil {
		writeError(w, "add step", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// UpdateStep handles PUT /api/recipes/{index}/steps/{item}.
//
//	@Summary		Replace the text of a step
//	@Tags			steps
//	@Accept			json
//	@Produce		json
//	@Param			index	path		int			true	"Recipe index"
//	@Param			item	path		int			true	"Step index"
//	@Param			body	body		StepRequest	true	"Step"
//	@Success		200		{object}	RecipeDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/{index}/steps/{item} [put]
func (h *Handler) UpdateStep(w http.ResponseWriter, r *http.Request) {
	i, item, err := itemIndex(r)
	if err != nil {
		writeError(w, "update step", err)
		return
	}
	var req StepRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, "update step", err)
		return
	}
	rec, err := h.svc.UpdateStep(r.Context(), i, item, req.Text)
	if err != nil {
		writeError(w, "update step", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// RemoveStep handles DELETE /api/recipes/{index}/steps/{item}.
//
//	@Summary		Remove a step
//	@Tags			steps
//	@Param			index	path	int	true	"Recipe index"
//	@Param			item	path	int	true	"Step index"
//	@Success		204		"Step removed"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recipes/{index}/steps/{item} [delete]
func (h *Handler) RemoveStep(w http.ResponseWriter, r *http.Request) {
	i, item, err := itemIndex(r)
	if err != nil {
		writeError(w, "remove step", err)
		return
	}
	if err := h.svc.RemoveStep(r.Context(), i, item); err != nil {
		writeError(w, "remove step", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Search recipe names, ingredients and steps
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
