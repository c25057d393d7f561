// Package checksum computes content digests used for change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/starford/recipebox/internal/recipepb"
	"github.com/starford/recipebox/internal/recipes"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Recipe digests the wire encoding of a single recipe. Equal recipes,
// including item ids, have equal digests.
func Recipe(r recipes.Recipe) string {
	return Sum(recipepb.Marshal(&recipes.RecipeList{Recipes: []recipes.Recipe{r}}))
}
