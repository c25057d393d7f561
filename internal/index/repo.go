package index

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/starford/recipebox/internal/recipes"
)

// RecipeRow represents a row in the recipes table.
type RecipeRow struct {
	ID          string    `json:"id"`
	Position    int       `json:"index"`
	Name        string    `json:"name"`
	Checksum    string    `json:"-"`
	Ingredients int       `json:"ingredients"`
	Steps       int       `json:"steps"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SearchResult represents one search hit. Index is the recipe's current
// position in the document.
type SearchResult struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
}

// searchBody is the text matched by full-text search besides the name.
func searchBody(r recipes.Recipe) string {
	var b strings.Builder
	for _, ing := range r.Ingredients {
		b.WriteString(ing.Name)
		b.WriteByte('\n')
	}
	for _, st := range r.Steps {
		b.WriteString(st.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// UpsertRecipe inserts or replaces a recipe, its items and its FTS entry
// within a transaction.
func (db *DB) UpsertRecipe(position int, r recipes.Recipe, sum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	body := searchBody(r)
	_, err = tx.Exec(`
		INSERT INTO recipes (id, position, name, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			position   = excluded.position,
			name       = excluded.name,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, r.ID, position, r.Name, sum, body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert recipe: %w", err)
	}

	if err := ftsUpsert(tx, r.ID, r.Name, body); err != nil {
		return err
	}

	// Replace items: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM ingredients WHERE recipe_id = ?`, r.ID)
	_, _ = tx.Exec(`DELETE FROM steps WHERE recipe_id = ?`, r.ID)
	if len(r.Ingredients) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO ingredients (recipe_id, position, id, quantity, unit, name) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare ingredient insert: %w", err)
		}
		defer stmt.Close()
		for i, ing := range r.Ingredients {
			if _, err := stmt.Exec(r.ID, i, ing.ID, float64(ing.Quantity), ing.Unit.String(), ing.Name); err != nil {
				return fmt.Errorf("index: insert ingredient: %w", err)
			}
		}
	}
	if len(r.Steps) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO steps (recipe_id, position, id, text) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare step insert: %w", err)
		}
		defer stmt.Close()
		for i, st := range r.Steps {
			if _, err := stmt.Exec(r.ID, i, st.ID, st.Text); err != nil {
				return fmt.Errorf("index: insert step: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteRecipe removes a recipe, its items and its FTS entry.
func (db *DB) DeleteRecipe(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM recipes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete recipe: %w", err)
	}
	return tx.Commit()
}

// SetPosition records a recipe's new position after earlier recipes moved.
func (db *DB) SetPosition(id string, position int) error {
	if _, err := db.conn.Exec(`UPDATE recipes SET position = ? WHERE id = ?`, position, id); err != nil {
		return fmt.Errorf("index: set position: %w", err)
	}
	return nil
}

// AllChecksums returns the stored checksum of every recipe id.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM recipes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

const listSQL = `
	SELECT r.id, r.position, r.name, r.checksum, r.updated_at,
	       (SELECT count(*) FROM ingredients i WHERE i.recipe_id = r.id),
	       (SELECT count(*) FROM steps s WHERE s.recipe_id = r.id)
	FROM recipes r`

// ListRecipes returns every indexed recipe in document order.
func (db *DB) ListRecipes() ([]RecipeRow, error) {
	rows, err := db.conn.Query(listSQL + ` ORDER BY r.position`)
	if err != nil {
		return nil, fmt.Errorf("index: list recipes: %w", err)
	}
	return scanRecipes(rows)
}

// WithIngredient returns recipes using an ingredient with the given name,
// compared case-insensitively.
func (db *DB) WithIngredient(name string) ([]RecipeRow, error) {
	rows, err := db.conn.Query(listSQL+`
		WHERE r.id IN (SELECT recipe_id FROM ingredients WHERE name = ? COLLATE NOCASE)
		ORDER BY r.position`, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("index: with ingredient: %w", err)
	}
	return scanRecipes(rows)
}

func scanRecipes(rows *sql.Rows) ([]RecipeRow, error) {
	defer rows.Close()
	var out []RecipeRow
	for rows.Next() {
		var r RecipeRow
		if err := rows.Scan(&r.ID, &r.Position, &r.Name, &r.Checksum, &r.UpdatedAt, &r.Ingredients, &r.Steps); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
