package recipepb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/starford/recipebox/internal/recipes"
)

func sample() *recipes.RecipeList {
	return &recipes.RecipeList{Recipes: []recipes.Recipe{
		{
			ID:   "r1",
			Name: "Soup",
			Ingredients: []recipes.Ingredient{
				{ID: "i1", Quantity: 1, Unit: recipes.UnitCup, Name: "water"},
				{ID: "i2", Quantity: 0.25, Unit: recipes.UnitTeaspoon, Name: "salt"},
				{ID: "i3", Quantity: 0, Unit: recipes.UnitUnit, Name: ""},
			},
			Steps: []recipes.Step{{ID: "s1", Text: "Boil"}, {ID: "s2", Text: "Season ½ to taste"}},
		},
		{
			Name:        "",
			Ingredients: []recipes.Ingredient{},
			Steps:       []recipes.Step{},
		},
	}}
}

func TestRoundTrip(t *testing.T) {
	in := sample()
	out, err := Unmarshal(Marshal(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshalEmpty(t *testing.T) {
	out, err := Unmarshal(nil)
	require.NoError(t, err)
	assert.NotNil(t, out.Recipes)
	assert.Empty(t, out.Recipes)
}

func TestUnknownFieldsSkipped(t *testing.T) {
	b := Marshal(sample())
	b = protowire.AppendTag(b, 15, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)
	b = protowire.AppendTag(b, 16, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	out, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, sample(), out)
}

func TestNegativeUnitSurvives(t *testing.T) {
	in := &recipes.RecipeList{Recipes: []recipes.Recipe{{
		Name:        "odd",
		Ingredients: []recipes.Ingredient{{Unit: recipes.Unit(-3), Name: "x"}},
		Steps:       []recipes.Step{},
	}}}
	out, err := Unmarshal(Marshal(in))
	require.NoError(t, err)
	assert.Equal(t, recipes.Unit(-3), out.Recipes[0].Ingredients[0].Unit)
}

func TestCorruptInput(t *testing.T) {
	cases := map[string][]byte{
		"truncated length": {0x0a, 0x05, 0x01},
		"truncated varint": {0xff},
		"zero field":       {0x00},
		"bad nested":       {0x0a, 0x02, 0x12, 0x09},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(b)
			assert.Error(t, err)
		})
	}
}
