package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// events, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, authEnabled bool, token string, events http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Recipes.
	r.Get("/recipes", h.ListRecipes)
	r.Post("/recipes", h.CreateRecipe)
	r.Post("/recipes/import", h.ImportRecipe)
	r.Route("/recipes/{index}", func(r chi.Router) {
		r.Get("/", h.GetRecipe)
		r.Put("/", h.RenameRecipe)
		r.Delete("/", h.DeleteRecipe)
		r.Get("/view", h.ViewRecipe)
		r.Get("/markdown", h.ExportRecipe)

		r.Post("/ingredients", h.AddIngredient)
		r.Put("/ingredients/{item}", h.UpdateIngredient)
		r.Delete("/ingredients/{item}", h.RemoveIngredient)

		r.Post("/steps", h.AddStep)
		r.Put("/steps/{item}", h.UpdateStep)
		r.Delete("/steps/{item}", h.RemoveStep)
	})

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
