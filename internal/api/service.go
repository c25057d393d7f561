package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/index"
	"github.com/starford/recipebox/internal/mdrecipe"
	"github.com/starford/recipebox/internal/projector"
	"github.com/starford/recipebox/internal/recipes"
	"github.com/starford/recipebox/internal/repository"
)

// Service coordinates repository and index operations for the API layer.
type Service struct {
	repo   *repository.Repository
	db     index.RecipeIndex
	logger *slog.Logger
}

// NewService creates a new API service. db may be nil, in which case search
// scans the document directly.
func NewService(repo *repository.Repository, db index.RecipeIndex, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, db: db, logger: logger}
}

// List returns a summary of every recipe in document order.
func (s *Service) List(ctx context.Context) ([]RecipeSummary, error) {
	doc, err := s.repo.Recipes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RecipeSummary, len(doc.Recipes))
	for i, r := range doc.Recipes {
		out[i] = summarize(i, r)
	}
	return out, nil
}

// WithIngredient lists the recipes using an ingredient named name, compared
// case-insensitively. The index answers when present.
func (s *Service) WithIngredient(ctx context.Context, name string) ([]RecipeSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: ingredient name is required", apperr.ErrInvalidInput)
	}
	if s.db != nil {
		rows, err := s.db.WithIngredient(name)
		if err != nil {
			return nil, err
		}
		out := make([]RecipeSummary, len(rows))
		for i, row := range rows {
			out[i] = RecipeSummary{
				Index:       row.Position,
				ID:          row.ID,
				Name:        row.Name,
				Ingredients: row.Ingredients,
				Steps:       row.Steps,
			}
		}
		return out, nil
	}

	doc, err := s.repo.Recipes(ctx)
	if err != nil {
		return nil, err
	}
	out := []RecipeSummary{}
	for i, r := range doc.Recipes {
		for _, ing := range r.Ingredients {
			if strings.EqualFold(strings.TrimSpace(ing.Name), name) {
				out = append(out, summarize(i, r))
				break
			}
		}
	}
	return out, nil
}

func summarize(i int, r recipes.Recipe) RecipeSummary {
	return RecipeSummary{
		Index:       i,
		ID:          r.ID,
		Name:        r.Name,
		Ingredients: len(r.Ingredients),
		Steps:       len(r.Steps),
	}
}

// Get returns the recipe at index.
func (s *Service) Get(ctx context.Context, index int) (*RecipeDetail, error) {
	r, err := s.repo.Recipe(ctx, index)
	if err != nil {
		return nil, err
	}
	return &RecipeDetail{Index: index, Recipe: r}, nil
}

// View returns the display rows of the recipe at index scaled by m.
func (s *Service) View(ctx context.Context, index int, m projector.Multiplier) (*ViewResponse, error) {
	doc, err := s.repo.Recipes(ctx)
	if err != nil {
		return nil, err
	}
	p := projector.New(s.repo, index, projector.WithMultiplier(m), projector.WithLogger(s.logger))
	p.Apply(doc)
	st := p.State()
	if st.Gone {
		return nil, fmt.Errorf("recipe %d of %d: %w", index, len(doc.Recipes), apperr.ErrOutOfRange)
	}
	return newViewResponse(st), nil
}

// Create appends a new empty recipe.
func (s *Service) Create(ctx context.Context, name string) (*RecipeDetail, error) {
	i, err := s.repo.CreateRecipe(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, i)
}

// Rename changes the name of the recipe at index.
func (s *Service) Rename(ctx context.Context, index int, name string) (*RecipeDetail, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrInvalidInput)
	}
	if err := s.repo.UpdateRecipe(ctx, index, name); err != nil {
		return nil, err
	}
	return s.Get(ctx, index)
}

// Delete removes the recipe at index.
func (s *Service) Delete(ctx context.Context, index int) error {
	return s.repo.DeleteRecipe(ctx, index)
}

// AddIngredient appends an ingredient to the recipe at index.
func (s *Service) AddIngredient(ctx context.Context, index int, req IngredientRequest) (*RecipeDetail, error) {
	ing, err := req.ingredient()
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddIngredient(ctx, index, ing); err != nil {
		return nil, err
	}
	return s.Get(ctx, index)
}

// UpdateIngredient replaces one ingredient of the recipe at index.
func (s *Service) UpdateIngredient(ctx context.Context, index, item int, req IngredientRequest) (*RecipeDetail, error) {
	ing, err := req.ingredient()
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateIngredient(ctx, index, item, ing); err != nil {
		return nil, err
	}
	return s.Get(ctx, index)
}

// RemoveIngredient deletes one ingredient of the recipe at index.
func (s *Service) RemoveIngredient(ctx context.Context, index, item int) error {
	return s.repo.RemoveIngredient(ctx, index, item)
}

// AddStep appends a step to the recipe at index.
func (s *Service) AddStep(ctx context.Context, index int, text string) (*RecipeDetail, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", apperr.ErrInvalidInput)
	}
	if err := s.repo.AddStep(ctx, index, recipes.Step{Text: text}); err != nil {
		return nil, err
	}
	return s.Get(ctx, index)
}

// UpdateStep replaces the text of one step of the recipe at index.
func (s *Service) UpdateStep(ctx context.Context, index, item int, text string) (*RecipeDetail, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", apperr.ErrInvalidInput)
	}
	if err := s.repo.UpdateStep(ctx, index, item, text); err != nil {
		return nil, err
	}
	return s.Get(ctx, index)
}

// RemoveStep deletes one step of the recipe at index.
func (s *Service) RemoveStep(ctx context.Context, index, item int) error {
	return s.repo.RemoveStep(ctx, index, item)
}

// Markdown renders the recipe at index as Markdown.
func (s *Service) Markdown(ctx context.Context, index int) ([]byte, error) {
	r, err := s.repo.Recipe(ctx, index)
	if err != nil {
		return nil, err
	}
	return mdrecipe.Format(r)
}

// Import parses a Markdown recipe and appends it.
func (s *Service) Import(ctx context.Context, data []byte) (*RecipeDetail, error) {
	r, err := mdrecipe.Parse(data)
	if err != nil {
		return nil, err
	}
	i, err := s.repo.ImportRecipe(ctx, r)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, i)
}

// Search finds recipes whose name, ingredients or steps contain query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.db != nil {
		return s.db.Search(query, limit)
	}
	doc, err := s.repo.Recipes(ctx)
	if err != nil {
		return nil, err
	}
	return scan(doc, query, limit), nil
}

// scan is the index-less search: a case-insensitive substring match.
func scan(doc *recipes.RecipeList, query string, limit int) []index.SearchResult {
	q := strings.ToLower(query)
	out := []index.SearchResult{}
	for i, r := range doc.Recipes {
		if len(out) >= limit {
			break
		}
		snippet, ok := match(r, q)
		if !ok {
			continue
		}
		out = append(out, index.SearchResult{Index: i, ID: r.ID, Name: r.Name, Snippet: snippet})
	}
	return out
}

func match(r recipes.Recipe, q string) (string, bool) {
	if strings.Contains(strings.ToLower(r.Name), q) {
		return "", true
	}
	for _, ing := range r.Ingredients {
		if strings.Contains(strings.ToLower(ing.Name), q) {
			return ing.Name, true
		}
	}
	for _, st := range r.Steps {
		if strings.Contains(strings.ToLower(st.Text), q) {
			return st.Text, true
		}
	}
	return "", false
}
