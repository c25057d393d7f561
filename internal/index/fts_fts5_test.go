//go:build sqlite_fts5

package index

import "testing"

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM recipes_fts`).Scan(&count); err != nil {
		t.Fatalf("recipes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertRecipe(0, soup(), "f1"); err != nil {
		t.Fatalf("UpsertRecipe: %v", err)
	}

	results, err := db.Search("simmer", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "soup" {
		t.Errorf("id = %q", results[0].ID)
	}
	// FTS5 snippet should contain bold markers.
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertRecipe(0, bread(), "g")
	_ = db.DeleteRecipe("bread")

	results, _ := db.Search("knead", 10)
	for _, r := range results {
		if r.ID == "bread" {
			t.Error("deleted recipe still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	r := soup()
	_ = db.UpsertRecipe(0, r, "1")
	r.Name = "Gazpacho"
	r.Steps[0].Text = "Chill overnight"
	_ = db.UpsertRecipe(0, r, "2")

	results, _ := db.Search("simmer", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("chill", 10)
	if len(results) != 1 || results[0].Name != "Gazpacho" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
