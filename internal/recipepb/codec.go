// Package recipepb encodes the recipe document in the protobuf binary format
// described by recipes.proto.
//
// Fields are written in field-number order and proto3 defaults are omitted.
// Unknown fields are skipped on decode so that files written by a newer
// schema remain readable.
package recipepb

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/starford/recipebox/internal/recipes"
)

// Field numbers.
const (
	listRecipes = 1

	recipeName        = 1
	recipeIngredients = 2
	recipeSteps       = 3
	recipeID          = 4

	ingredientQuantity = 1
	ingredientUnit     = 2
	ingredientName     = 3
	ingredientID       = 4

	stepText = 1
	stepID   = 2
)

// Marshal encodes l. A nil list encodes to zero bytes.
func Marshal(l *recipes.RecipeList) []byte {
	var b []byte
	if l == nil {
		return b
	}
	for _, r := range l.Recipes {
		b = protowire.AppendTag(b, listRecipes, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalRecipe(r))
	}
	return b
}

func marshalRecipe(r recipes.Recipe) []byte {
	var b []byte
	b = appendString(b, recipeName, r.Name)
	for _, ing := range r.Ingredients {
		b = protowire.AppendTag(b, recipeIngredients, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalIngredient(ing))
	}
	for _, st := range r.Steps {
		b = protowire.AppendTag(b, recipeSteps, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalStep(st))
	}
	b = appendString(b, recipeID, r.ID)
	return b
}

func marshalIngredient(ing recipes.Ingredient) []byte {
	var b []byte
	if bits := math.Float32bits(ing.Quantity); bits != 0 {
		b = protowire.AppendTag(b, ingredientQuantity, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, bits)
	}
	if ing.Unit != 0 {
		b = protowire.AppendTag(b, ingredientUnit, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(ing.Unit)))
	}
	b = appendString(b, ingredientName, ing.Name)
	b = appendString(b, ingredientID, ing.ID)
	return b
}

func marshalStep(st recipes.Step) []byte {
	var b []byte
	b = appendString(b, stepText, st.Text)
	b = appendString(b, stepID, st.ID)
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// Unmarshal decodes a RecipeList. Empty input is the empty document.
func Unmarshal(b []byte) (*recipes.RecipeList, error) {
	l := &recipes.RecipeList{Recipes: []recipes.Recipe{}}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num == listRecipes && typ == protowire.BytesType {
			msg, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			r, err := unmarshalRecipe(msg)
			if err != nil {
				return 0, fmt.Errorf("recipe %d: %w", len(l.Recipes), err)
			}
			l.Recipes = append(l.Recipes, r)
			return n, nil
		}
		return skip(num, typ, v)
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func unmarshalRecipe(b []byte) (recipes.Recipe, error) {
	r := recipes.Recipe{Ingredients: []recipes.Ingredient{}, Steps: []recipes.Step{}}
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if typ != protowire.BytesType {
			return skip(num, typ, v)
		}
		switch num {
		case recipeName:
			return consumeString(v, &r.Name)
		case recipeID:
			return consumeString(v, &r.ID)
		case recipeIngredients:
			msg, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			ing, err := unmarshalIngredient(msg)
			if err != nil {
				return 0, fmt.Errorf("ingredient %d: %w", len(r.Ingredients), err)
			}
			r.Ingredients = append(r.Ingredients, ing)
			return n, nil
		case recipeSteps:
			msg, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			st, err := unmarshalStep(msg)
			if err != nil {
				return 0, fmt.Errorf("step %d: %w", len(r.Steps), err)
			}
			r.Steps = append(r.Steps, st)
			return n, nil
		}
		return skip(num, typ, v)
	})
	return r, err
}

func unmarshalIngredient(b []byte) (recipes.Ingredient, error) {
	var ing recipes.Ingredient
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch {
		case num == ingredientQuantity && typ == protowire.Fixed32Type:
			bits, n := protowire.ConsumeFixed32(v)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			ing.Quantity = math.Float32frombits(bits)
			return n, nil
		case num == ingredientUnit && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(v)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			ing.Unit = recipes.Unit(int32(x))
			return n, nil
		case num == ingredientName && typ == protowire.BytesType:
			return consumeString(v, &ing.Name)
		case num == ingredientID && typ == protowire.BytesType:
			return consumeString(v, &ing.ID)
		}
		return skip(num, typ, v)
	})
	return ing, err
}

func unmarshalStep(b []byte) (recipes.Step, error) {
	var st recipes.Step
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if typ == protowire.BytesType {
			switch num {
			case stepText:
				return consumeString(v, &st.Text)
			case stepID:
				return consumeString(v, &st.ID)
			}
		}
		return skip(num, typ, v)
	})
	return st, err
}

// walk iterates over the fields of one message. fn consumes the field value
// and returns the number of bytes it used.
func walk(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m <= 0 || m > len(b) {
			return errors.New("recipepb: bad field length")
		}
		b = b[m:]
	}
	return nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}

func consumeString(b []byte, dst *string) (int, error) {
	s, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = s
	return n, nil
}
