package projector

import (
	"strconv"

	"github.com/starford/recipebox/internal/recipes"
)

// Section titles.
const (
	IngredientsTitle = "Ingredients"
	StepsTitle       = "Steps"
)

// DraftIndex is the SourceIndex of a row that has not been saved yet.
const DraftIndex = -1

// Row is one display-ready line of a recipe screen. The set of row types is
// closed: HeaderRow, IngredientRow, StepRow, AddIngredientRow, AddStepRow.
type Row interface {
	row()
}

// Editable is the behaviour shared by ingredient and step rows.
type Editable interface {
	Row
	// Key is the stable id of the item the row shows.
	Key() string
	// Source is the index of the item in the stored recipe, or DraftIndex.
	Source() int
	IsEditing() bool
}

// HeaderRow titles a section.
type HeaderRow struct {
	Title string `json:"title"`
}

// IngredientRow shows one ingredient.
type IngredientRow struct {
	ID          string `json:"id"`
	SourceIndex int    `json:"source_index"`
	Quantity    string `json:"quantity"`
	UnitIndex   int    `json:"unit_index"`
	Name        string `json:"name"`
	Editing     bool   `json:"editing"`
	Error       string `json:"error,omitempty"`
}

// StepRow shows one step. Ordinal is empty for drafts.
type StepRow struct {
	ID          string `json:"id"`
	SourceIndex int    `json:"source_index"`
	Ordinal     string `json:"ordinal"`
	Text        string `json:"text"`
	Editing     bool   `json:"editing"`
	Error       string `json:"error,omitempty"`
}

// AddIngredientRow is the trailing "add ingredient" affordance.
type AddIngredientRow struct{}

// AddStepRow is the trailing "add step" affordance.
type AddStepRow struct{}

func (HeaderRow) row()        {}
func (IngredientRow) row()    {}
func (StepRow) row()          {}
func (AddIngredientRow) row() {}
func (AddStepRow) row()       {}

func (r IngredientRow) Key() string     { return r.ID }
func (r IngredientRow) Source() int     { return r.SourceIndex }
func (r IngredientRow) IsEditing() bool { return r.Editing }

func (r StepRow) Key() string     { return r.ID }
func (r StepRow) Source() int     { return r.SourceIndex }
func (r StepRow) IsEditing() bool { return r.Editing }

// Label is the step text prefixed with its ordinal ("1: Boil").
func (r StepRow) Label() string {
	if r.Ordinal == "" {
		return r.Text
	}
	return r.Ordinal + ": " + r.Text
}

// Kind names a row type for serialisation.
func Kind(r Row) string {
	switch r.(type) {
	case HeaderRow:
		return "header"
	case IngredientRow:
		return "ingredient"
	case StepRow:
		return "step"
	case AddIngredientRow:
		return "add_ingredient"
	case AddStepRow:
		return "add_step"
	}
	return ""
}

// Derive builds the rows for rec with no transient state: every row is in
// viewing mode and there are no drafts.
func Derive(rec recipes.Recipe, m Multiplier) []Row {
	rows := make([]Row, 0, len(rec.Ingredients)+len(rec.Steps)+4)
	rows = append(rows, HeaderRow{Title: IngredientsTitle})
	for i, ing := range rec.Ingredients {
		rows = append(rows, ingredientRow(i, ing, m))
	}
	rows = append(rows, AddIngredientRow{}, HeaderRow{Title: StepsTitle})
	for i, st := range rec.Steps {
		rows = append(rows, stepRow(i, st))
	}
	return append(rows, AddStepRow{})
}

func ingredientRow(i int, ing recipes.Ingredient, m Multiplier) IngredientRow {
	return IngredientRow{
		ID:          ing.ID,
		SourceIndex: i,
		Quantity:    FormatQuantity(ing.Quantity, m),
		UnitIndex:   int(ing.Unit),
		Name:        ing.Name,
	}
}

func stepRow(i int, st recipes.Step) StepRow {
	return StepRow{
		ID:          st.ID,
		SourceIndex: i,
		Ordinal:     strconv.Itoa(i + 1),
		Text:        st.Text,
	}
}

// ListNames is the recipe list screen: one name per recipe, in document
// order, so that position i opens recipe i.
func ListNames(doc *recipes.RecipeList) []string {
	if doc == nil {
		return []string{}
	}
	names := make([]string, len(doc.Recipes))
	for i, r := range doc.Recipes {
		names[i] = r.Name
	}
	return names
}
