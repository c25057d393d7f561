package recipes

import (
	"encoding/json"
	"testing"
)

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit(" cup ")
	if err != nil {
		t.Fatalf("ParseUnit: %v", err)
	}
	if u != UnitCup {
		t.Errorf("unit = %v, want CUP", u)
	}
	if _, err := ParseUnit("bucket"); err == nil {
		t.Error("expected error for unknown unit")
	}
}

func TestUnitString_Unknown(t *testing.T) {
	if got := Unit(42).String(); got != "UNIT_42" {
		t.Errorf("String = %q", got)
	}
	if Unit(42).Valid() {
		t.Error("42 should not be valid")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := &RecipeList{Recipes: []Recipe{{
		Name:        "Soup",
		Ingredients: []Ingredient{{Quantity: 1, Unit: UnitCup, Name: "water"}},
		Steps:       []Step{{Text: "Boil"}},
	}}}
	cp := orig.Clone()
	cp.Recipes[0].Ingredients[0].Name = "milk"
	cp.Recipes[0].Steps[0].Text = "Stir"
	if orig.Recipes[0].Ingredients[0].Name != "water" {
		t.Error("ingredient shared with clone")
	}
	if orig.Recipes[0].Steps[0].Text != "Boil" {
		t.Error("step shared with clone")
	}
}

func TestCloneNil(t *testing.T) {
	var l *RecipeList
	if got := l.Clone(); got == nil || len(got.Recipes) != 0 {
		t.Errorf("Clone(nil) = %+v", got)
	}
}

func TestAssignIDs(t *testing.T) {
	l := &RecipeList{Recipes: []Recipe{{
		Name:        "Soup",
		Ingredients: []Ingredient{{Name: "water"}, {ID: "keep", Name: "salt"}},
		Steps:       []Step{{Text: "Boil"}},
	}}}
	if !l.AssignIDs() {
		t.Fatal("expected ids to be assigned")
	}
	r := l.Recipes[0]
	if r.ID == "" || r.Ingredients[0].ID == "" || r.Steps[0].ID == "" {
		t.Errorf("missing ids: %+v", r)
	}
	if r.Ingredients[1].ID != "keep" {
		t.Errorf("existing id overwritten: %q", r.Ingredients[1].ID)
	}
	if l.AssignIDs() {
		t.Error("second pass should be a no-op")
	}
}

func TestUnitJSON(t *testing.T) {
	data, err := json.Marshal(Ingredient{ID: "a", Quantity: 2, Unit: UnitTablespoon, Name: "oil"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":"a","quantity":2,"unit":"TABLESPOON","name":"oil"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	var ing Ingredient
	if err := json.Unmarshal([]byte(`{"unit":"pinch"}`), &ing); err != nil || ing.Unit != UnitPinch {
		t.Errorf("unit = %v, err = %v", ing.Unit, err)
	}
	if err := json.Unmarshal([]byte(`{"unit":"UNIT_42"}`), &ing); err != nil || ing.Unit != Unit(42) {
		t.Errorf("unit = %v, err = %v", ing.Unit, err)
	}
	if err := json.Unmarshal([]byte(`{"unit":"bucket"}`), &ing); err == nil {
		t.Error("unknown unit accepted")
	}
}
