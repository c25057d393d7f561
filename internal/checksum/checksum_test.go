package checksum

import (
	"testing"

	"github.com/starford/recipebox/internal/recipes"
)

func TestSum(t *testing.T) {
	// SHA-256 of the empty input.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
}

func TestRecipe(t *testing.T) {
	a := recipes.Recipe{ID: "r", Name: "Soup", Steps: []recipes.Step{{ID: "s", Text: "Boil"}}}
	b := a.Clone()
	if Recipe(a) != Recipe(b) {
		t.Error("equal recipes have different digests")
	}
	b.Steps[0].Text = "Simmer"
	if Recipe(a) == Recipe(b) {
		t.Error("changed recipe has the same digest")
	}
}
