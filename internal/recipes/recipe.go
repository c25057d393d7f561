// Package recipes defines the domain types persisted by recipebox.
package recipes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Unit is the measurement unit of an ingredient quantity.
type Unit int32

// Measurement units. Values match the MeasurementUnit enum on the wire.
const (
	UnitUnit Unit = iota
	UnitGram
	UnitKilogram
	UnitMilliliter
	UnitLiter
	UnitTeaspoon
	UnitTablespoon
	UnitCup
	UnitOunce
	UnitPound
	UnitPinch
)

var unitNames = []string{
	"UNIT",
	"GRAM",
	"KILOGRAM",
	"MILLILITER",
	"LITER",
	"TEASPOON",
	"TABLESPOON",
	"CUP",
	"OUNCE",
	"POUND",
	"PINCH",
}

// Units returns every known unit in enum order.
func Units() []Unit {
	out := make([]Unit, len(unitNames))
	for i := range unitNames {
		out[i] = Unit(i)
	}
	return out
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u >= 0 && int(u) < len(unitNames)
}

func (u Unit) String() string {
	if u.Valid() {
		return unitNames[u]
	}
	return fmt.Sprintf("UNIT_%d", int32(u))
}

// ParseUnit accepts a unit name case-insensitively ("cup", "CUP").
func ParseUnit(s string) (Unit, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range unitNames {
		if name == s {
			return Unit(i), nil
		}
	}
	return 0, fmt.Errorf("unknown unit %q", s)
}

// MarshalText encodes u by name.
func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText accepts a unit name or its enum number.
func (u *Unit) UnmarshalText(b []byte) error {
	v, err := ParseUnit(string(b))
	if err != nil {
		n, nerr := strconv.Atoi(strings.TrimPrefix(string(b), "UNIT_"))
		if nerr != nil {
			return err
		}
		v = Unit(n)
	}
	*u = v
	return nil
}

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	ID       string  `json:"id"`
	Quantity float32 `json:"quantity"`
	Unit     Unit    `json:"unit"`
	Name     string  `json:"name"`
}

// Step is one instruction of a recipe.
type Step struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Recipe is a named list of ingredients and steps.
type Recipe struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []Step       `json:"steps"`
}

// RecipeList is the root document. Recipes are identified by position.
type RecipeList struct {
	Recipes []Recipe `json:"recipes"`
}

// NewID returns a fresh synthetic identifier.
func NewID() string {
	return uuid.NewString()
}

// Clone returns a deep copy of r.
func (r Recipe) Clone() Recipe {
	out := r
	if r.Ingredients != nil {
		out.Ingredients = append([]Ingredient(nil), r.Ingredients...)
	}
	if r.Steps != nil {
		out.Steps = append([]Step(nil), r.Steps...)
	}
	return out
}

// Clone returns a deep copy of l. A nil list clones to an empty one.
func (l *RecipeList) Clone() *RecipeList {
	out := &RecipeList{}
	if l == nil {
		return out
	}
	if l.Recipes != nil {
		out.Recipes = make([]Recipe, len(l.Recipes))
		for i, r := range l.Recipes {
			out.Recipes[i] = r.Clone()
		}
	}
	return out
}

// AssignIDs fills in missing ids and reports whether any were added.
func (l *RecipeList) AssignIDs() bool {
	changed := false
	for i := range l.Recipes {
		r := &l.Recipes[i]
		if r.ID == "" {
			r.ID = NewID()
			changed = true
		}
		for j := range r.Ingredients {
			if r.Ingredients[j].ID == "" {
				r.Ingredients[j].ID = NewID()
				changed = true
			}
		}
		for j := range r.Steps {
			if r.Steps[j].ID == "" {
				r.Steps[j].ID = NewID()
				changed = true
			}
		}
	}
	return changed
}
