package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/starford/recipebox/internal/recipes"
)

// Observer publishes successive versions of the recipe document.
type Observer interface {
	Observe(ctx context.Context) (<-chan *recipes.RecipeList, error)
}

// ChangeEvent is the payload of a "recipes.changed" server-sent event.
type ChangeEvent struct {
	Count   int             `json:"count"`
	Recipes []RecipeSummary `json:"recipes"`
}

// EventsHandler streams the current document summary and every later change
// as server-sent events (GET /api/events). Slow clients skip intermediate
// versions rather than queueing them.
func EventsHandler(obs Observer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		ctx := r.Context()
		ch, err := obs.Observe(ctx)
		if err != nil {
			writeError(w, "observe", err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-ctx.Done():
				return
			case doc, ok := <-ch:
				if !ok {
					return
				}
				msg, err := changeMessage(doc)
				if err != nil {
					slog.Error("sse encode failed", slog.String("error", err.Error()))
					continue
				}
				_, _ = w.Write(msg)
				flusher.Flush()
			}
		}
	}
}

func changeMessage(doc *recipes.RecipeList) ([]byte, error) {
	ev := ChangeEvent{Count: len(doc.Recipes), Recipes: make([]RecipeSummary, len(doc.Recipes))}
	for i, r := range doc.Recipes {
		ev.Recipes[i] = summarize(i, r)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: recipes.changed\ndata: %s\n\n", payload)), nil
}
