// Package projector turns one stored recipe into an ordered list of display
// rows and applies row edits back to the repository.
//
// Transient state (which rows are being edited, unsaved drafts, inline
// errors) is keyed by item id so it survives document reloads.
package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/recipes"
	"github.com/starford/recipebox/internal/repository"
)

// ErrNotEditable is returned when an edit targets a row that does not accept it.
var ErrNotEditable = errors.New("row is not editable")

// Repository is the subset of repository operations the projector issues.
type Repository interface {
	Observe(ctx context.Context) (<-chan *recipes.RecipeList, error)
	UpdateRecipe(ctx context.Context, index int, name string) error
	DeleteRecipe(ctx context.Context, index int) error
	AddIngredient(ctx context.Context, recipeIndex int, ing recipes.Ingredient) error
	UpdateIngredientByID(ctx context.Context, recipeIndex int, id string, ing recipes.Ingredient) error
	RemoveIngredient(ctx context.Context, recipeIndex, ingredientIndex int) error
	AddStep(ctx context.Context, recipeIndex int, st recipes.Step) error
	UpdateStepByID(ctx context.Context, recipeIndex int, id, text string) error
	RemoveStep(ctx context.Context, recipeIndex, stepIndex int) error
}

var _ Repository = (*repository.Repository)(nil)

// State is a full replacement of what the recipe screen shows.
type State struct {
	Version     uint64       `json:"version"`
	Loaded      bool         `json:"loaded"`
	Gone        bool         `json:"gone"`
	RecipeIndex int          `json:"recipe_index"`
	RecipeName  string       `json:"recipe_name"`
	EditingName bool         `json:"editing_name"`
	NameError   string       `json:"name_error,omitempty"`
	Multiplier  Multiplier   `json:"multiplier"`
	Multipliers []Multiplier `json:"multipliers"`
	Rows        []Row        `json:"rows"`
}

// Surface receives every new State. Render is never called concurrently and
// versions arrive in increasing order.
type Surface interface {
	Render(State)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(State)

// Render calls f(s).
func (f SurfaceFunc) Render(s State) { f(s) }

// Confirm asks the user a yes/no question.
type Confirm func(ctx context.Context, prompt string) (bool, error)

// Option configures a Projector.
type Option func(*Projector)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Projector) { p.logger = l }
}

// WithSurface sets the surface notified on every state change.
func WithSurface(s Surface) Option {
	return func(p *Projector) { p.surface = s }
}

// WithConfirm sets the dialog consulted before a recipe is deleted. Without
// one, deletion proceeds unasked.
func WithConfirm(c Confirm) Option {
	return func(p *Projector) { p.confirm = c }
}

// WithMultiplier sets the initial multiplier.
func WithMultiplier(m Multiplier) Option {
	return func(p *Projector) {
		if m.Valid() {
			p.multiplier = m
		}
	}
}

type itemKind int

const (
	kindIngredient itemKind = iota
	kindStep
)

// draft is an item added on screen that the store does not contain yet.
type draft struct {
	kind  itemKind
	id    string
	saved bool

	quantity string
	unit     int
	name     string
	text     string
	err      string
}

// input holds what the user typed into a saved row whose save was rejected.
type input struct {
	quantity string
	unit     int
	name     string
	text     string
}

// Projector is the view state of one recipe. All methods are safe for
// concurrent use; repository calls are made without holding the lock.
type Projector struct {
	repo    Repository
	index   int
	logger  *slog.Logger
	surface Surface
	confirm Confirm

	mu          sync.Mutex
	version     uint64
	recipe      recipes.Recipe
	loaded      bool
	gone        bool
	multiplier  Multiplier
	editingName bool
	nameErr     string
	editing     map[string]bool
	errs        map[string]string
	inputs      map[string]input
	drafts      []*draft
	rows        []Row

	renderMu sync.Mutex
	rendered uint64
}

// New creates a projector for the recipe at index.
func New(repo Repository, index int, opts ...Option) *Projector {
	p := &Projector{
		repo:       repo,
		index:      index,
		logger:     slog.Default(),
		multiplier: Single,
		editing:    map[string]bool{},
		errs:       map[string]string{},
		inputs:     map[string]input{},
	}
	for _, o := range opts {
		o(p)
	}
	p.rows = p.buildRows()
	return p
}

// Run applies every document the repository publishes until ctx is done.
func (p *Projector) Run(ctx context.Context) error {
	ch, err := p.repo.Observe(ctx)
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	for doc := range ch {
		p.Apply(doc)
	}
	return ctx.Err()
}

// Apply rebuilds the rows from a new document.
func (p *Projector) Apply(doc *recipes.RecipeList) {
	p.mu.Lock()
	if doc == nil || p.index < 0 || p.index >= len(doc.Recipes) {
		p.gone = true
		p.recipe = recipes.Recipe{}
	} else {
		p.gone = false
		p.loaded = true
		p.recipe = doc.Recipes[p.index].Clone()
	}
	p.prune()
	st := p.commit()
	p.mu.Unlock()
	p.render(st)
}

// prune drops edit state for items that no longer exist and drafts whose
// save has landed.
func (p *Projector) prune() {
	present := map[string]bool{}
	for _, ing := range p.recipe.Ingredients {
		present[ing.ID] = true
	}
	for _, st := range p.recipe.Steps {
		present[st.ID] = true
	}
	drafts := p.drafts[:0]
	for _, d := range p.drafts {
		if d.saved && present[d.id] {
			continue
		}
		drafts = append(drafts, d)
	}
	p.drafts = drafts
	for id := range p.editing {
		if !present[id] {
			delete(p.editing, id)
		}
	}
	for id := range p.errs {
		if !present[id] {
			delete(p.errs, id)
		}
	}
	for id := range p.inputs {
		if !present[id] {
			delete(p.inputs, id)
		}
	}
}

// State returns the current state.
func (p *Projector) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

// SetMultiplier changes the display multiplier. Stored quantities are untouched.
func (p *Projector) SetMultiplier(m Multiplier) error {
	if !m.Valid() {
		return fmt.Errorf("multiplier %d: %w", int(m), apperr.ErrInvalidInput)
	}
	p.update(func() { p.multiplier = m })
	return nil
}

// Click handles a tap on the row at pos: editable rows enter edit mode and
// add rows create a draft.
func (p *Projector) Click(pos int) error {
	var err error
	p.update(func() {
		var row Row
		if row, err = p.rowAt(pos); err != nil {
			return
		}
		switch r := row.(type) {
		case IngredientRow, StepRow:
			e := r.(Editable)
			if d := p.draft(e.Key()); d != nil {
				if d.saved {
					err = fmt.Errorf("row %d is being saved: %w", pos, ErrNotEditable)
				}
				return
			}
			p.editing[e.Key()] = true
		case AddIngredientRow:
			p.drafts = append(p.drafts, &draft{kind: kindIngredient, id: recipes.NewID()})
		case AddStepRow:
			p.drafts = append(p.drafts, &draft{kind: kindStep, id: recipes.NewID()})
		default:
			err = fmt.Errorf("row %d: %w", pos, ErrNotEditable)
		}
	})
	return err
}

// AddIngredient inserts an ingredient draft in edit mode and returns its position.
func (p *Projector) AddIngredient() int {
	return p.addDraft(kindIngredient)
}

// AddStep inserts a step draft in edit mode and returns its position.
func (p *Projector) AddStep() int {
	return p.addDraft(kindStep)
}

func (p *Projector) addDraft(kind itemKind) int {
	d := &draft{kind: kind, id: recipes.NewID()}
	pos := -1
	p.update(func() {
		p.drafts = append(p.drafts, d)
		p.rows = p.buildRows()
		pos = p.position(d.id)
	})
	return pos
}

// SaveIngredient validates the edited fields of the ingredient row at pos and
// stores them. An unparsable quantity, an unknown unit or a blank name keeps
// the row in edit mode with an inline error and touches nothing.
func (p *Projector) SaveIngredient(ctx context.Context, pos int, quantity string, unit int, name string) error {
	p.mu.Lock()
	row, err := p.editableAt(pos)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	r, ok := row.(IngredientRow)
	if !ok || !r.Editing {
		p.mu.Unlock()
		return fmt.Errorf("row %d: %w", pos, ErrNotEditable)
	}

	in := input{quantity: quantity, unit: unit, name: name}
	ing, verr := parseIngredient(in)
	if verr != nil {
		p.reject(r.ID, in, verr)
		st := p.commit()
		p.mu.Unlock()
		p.render(st)
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, verr)
	}

	var call func(context.Context) error
	if d := p.draft(r.ID); d != nil {
		d.saved, d.err = true, ""
		d.quantity, d.unit, d.name = strconv.FormatFloat(float64(ing.Quantity), 'f', -1, 32), unit, name
		ing.ID = d.id
		call = func(ctx context.Context) error { return p.repo.AddIngredient(ctx, p.index, ing) }
	} else {
		p.clearEdit(r.ID)
		call = func(ctx context.Context) error { return p.repo.UpdateIngredientByID(ctx, p.index, r.ID, ing) }
	}
	st := p.commit()
	p.mu.Unlock()
	p.render(st)

	return p.store(ctx, r.ID, in, call)
}

// SaveStep stores the edited text of the step row at pos. Blank text is
// rejected like an invalid ingredient.
func (p *Projector) SaveStep(ctx context.Context, pos int, text string) error {
	p.mu.Lock()
	row, err := p.editableAt(pos)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	r, ok := row.(StepRow)
	if !ok || !r.Editing {
		p.mu.Unlock()
		return fmt.Errorf("row %d: %w", pos, ErrNotEditable)
	}

	in := input{text: text}
	if verr := validation.Validate(strings.TrimSpace(text), validation.Required); verr != nil {
		p.reject(r.ID, in, validation.Errors{"text": verr})
		st := p.commit()
		p.mu.Unlock()
		p.render(st)
		return fmt.Errorf("%w: text: %v", apperr.ErrInvalidInput, verr)
	}

	var call func(context.Context) error
	if d := p.draft(r.ID); d != nil {
		d.saved, d.err, d.text = true, "", text
		step := recipes.Step{ID: d.id, Text: text}
		call = func(ctx context.Context) error { return p.repo.AddStep(ctx, p.index, step) }
	} else {
		p.clearEdit(r.ID)
		call = func(ctx context.Context) error { return p.repo.UpdateStepByID(ctx, p.index, r.ID, text) }
	}
	st := p.commit()
	p.mu.Unlock()
	p.render(st)

	return p.store(ctx, r.ID, in, call)
}

// store runs a repository call and, on failure, puts the row back into edit
// mode with the error shown inline.
func (p *Projector) store(ctx context.Context, id string, in input, call func(context.Context) error) error {
	err := call(ctx)
	if err == nil {
		return nil
	}
	p.logger.Error("save item", slog.Int("recipe", p.index), slog.String("id", id),
		slog.String("error", err.Error()))
	p.update(func() {
		if d := p.draft(id); d != nil {
			d.saved = false
			d.err = err.Error()
			return
		}
		p.editing[id] = true
		p.errs[id] = err.Error()
		p.inputs[id] = in
	})
	return err
}

// Cancel leaves edit mode for the row at pos. A draft is discarded. Nothing
// is sent to the repository.
func (p *Projector) Cancel(pos int) error {
	var err error
	p.update(func() {
		var row Editable
		if row, err = p.editableAt(pos); err != nil {
			return
		}
		if d := p.draft(row.Key()); d != nil {
			if !d.saved {
				p.dropDraft(d.id)
			}
			return
		}
		p.clearEdit(row.Key())
	})
	return err
}

// Delete removes the item at pos. A draft is discarded locally; a stored item
// is removed with exactly one repository call.
func (p *Projector) Delete(ctx context.Context, pos int) error {
	p.mu.Lock()
	row, err := p.editableAt(pos)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if d := p.draft(row.Key()); d != nil {
		if d.saved {
			p.mu.Unlock()
			return fmt.Errorf("row %d is being saved: %w", pos, ErrNotEditable)
		}
		p.dropDraft(d.id)
		st := p.commit()
		p.mu.Unlock()
		p.render(st)
		return nil
	}
	p.clearEdit(row.Key())
	st := p.commit()
	p.mu.Unlock()
	p.render(st)

	switch row.(type) {
	case IngredientRow:
		err = p.repo.RemoveIngredient(ctx, p.index, row.Source())
	case StepRow:
		err = p.repo.RemoveStep(ctx, p.index, row.Source())
	}
	if err != nil {
		p.logger.Error("delete item", slog.Int("recipe", p.index), slog.String("id", row.Key()),
			slog.String("error", err.Error()))
	}
	return err
}

// EditName enters recipe-name edit mode.
func (p *Projector) EditName() {
	p.update(func() { p.editingName = true })
}

// CancelName leaves recipe-name edit mode.
func (p *Projector) CancelName() {
	p.update(func() { p.editingName, p.nameErr = false, "" })
}

// SaveName renames the recipe. A blank name keeps edit mode with an inline
// error.
func (p *Projector) SaveName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if verr := validation.Validate(name, validation.Required); verr != nil {
		p.update(func() { p.editingName, p.nameErr = true, verr.Error() })
		return fmt.Errorf("%w: name: %v", apperr.ErrInvalidInput, verr)
	}
	if err := p.repo.UpdateRecipe(ctx, p.index, name); err != nil {
		p.update(func() { p.nameErr = err.Error() })
		return err
	}
	p.update(func() { p.editingName, p.nameErr = false, "" })
	return nil
}

// DeleteRecipe asks for confirmation and removes the recipe. It reports
// whether the recipe was deleted.
func (p *Projector) DeleteRecipe(ctx context.Context) (bool, error) {
	if p.confirm != nil {
		p.mu.Lock()
		name := p.recipe.Name
		p.mu.Unlock()
		ok, err := p.confirm(ctx, fmt.Sprintf("Delete %q?", name))
		if err != nil || !ok {
			return false, err
		}
	}
	if err := p.repo.DeleteRecipe(ctx, p.index); err != nil {
		return false, err
	}
	return true, nil
}

// update runs fn under the lock, rebuilds the rows and notifies the surface.
func (p *Projector) update(fn func()) {
	p.mu.Lock()
	fn()
	st := p.commit()
	p.mu.Unlock()
	p.render(st)
}

// commit rebuilds rows and returns a new versioned snapshot. Caller holds mu.
func (p *Projector) commit() State {
	p.rows = p.buildRows()
	p.version++
	return p.snapshot()
}

func (p *Projector) snapshot() State {
	rows := make([]Row, len(p.rows))
	copy(rows, p.rows)
	return State{
		Version:     p.version,
		Loaded:      p.loaded,
		Gone:        p.gone,
		RecipeIndex: p.index,
		RecipeName:  p.recipe.Name,
		EditingName: p.editingName,
		NameError:   p.nameErr,
		Multiplier:  p.multiplier,
		Multipliers: Multipliers(),
		Rows:        rows,
	}
}

func (p *Projector) render(st State) {
	if p.surface == nil {
		return
	}
	p.renderMu.Lock()
	defer p.renderMu.Unlock()
	if st.Version <= p.rendered {
		return
	}
	p.rendered = st.Version
	p.surface.Render(st)
}

// buildRows derives rows from the recipe and overlays edit state and drafts.
// Caller holds mu.
func (p *Projector) buildRows() []Row {
	rec := p.recipe
	rows := make([]Row, 0, len(rec.Ingredients)+len(rec.Steps)+len(p.drafts)+4)

	rows = append(rows, HeaderRow{Title: IngredientsTitle})
	for i, ing := range rec.Ingredients {
		r := ingredientRow(i, ing, p.multiplier)
		if p.editing[r.ID] {
			r.Editing = true
			// Edits apply to the stored quantity, not the scaled one.
			r.Quantity = FormatQuantity(ing.Quantity, Single)
		}
		if in, ok := p.inputs[r.ID]; ok {
			r.Quantity, r.UnitIndex, r.Name = in.quantity, in.unit, in.name
		}
		r.Error = p.errs[r.ID]
		rows = append(rows, r)
	}
	for _, d := range p.drafts {
		if d.kind != kindIngredient {
			continue
		}
		r := IngredientRow{
			ID:          d.id,
			SourceIndex: DraftIndex,
			Quantity:    d.quantity,
			UnitIndex:   d.unit,
			Name:        d.name,
			Editing:     !d.saved,
			Error:       d.err,
		}
		if d.saved {
			if q, err := strconv.ParseFloat(d.quantity, 32); err == nil {
				r.Quantity = FormatQuantity(float32(q), p.multiplier)
			}
		}
		rows = append(rows, r)
	}
	rows = append(rows, AddIngredientRow{}, HeaderRow{Title: StepsTitle})

	for i, st := range rec.Steps {
		r := stepRow(i, st)
		r.Editing = p.editing[r.ID]
		if in, ok := p.inputs[r.ID]; ok {
			r.Text = in.text
		}
		r.Error = p.errs[r.ID]
		rows = append(rows, r)
	}
	for _, d := range p.drafts {
		if d.kind != kindStep {
			continue
		}
		rows = append(rows, StepRow{
			ID:          d.id,
			SourceIndex: DraftIndex,
			Text:        d.text,
			Editing:     !d.saved,
			Error:       d.err,
		})
	}
	return append(rows, AddStepRow{})
}

func (p *Projector) rowAt(pos int) (Row, error) {
	if pos < 0 || pos >= len(p.rows) {
		return nil, fmt.Errorf("row %d of %d: %w", pos, len(p.rows), apperr.ErrOutOfRange)
	}
	return p.rows[pos], nil
}

func (p *Projector) editableAt(pos int) (Editable, error) {
	row, err := p.rowAt(pos)
	if err != nil {
		return nil, err
	}
	e, ok := row.(Editable)
	if !ok {
		return nil, fmt.Errorf("row %d: %w", pos, ErrNotEditable)
	}
	return e, nil
}

func (p *Projector) position(id string) int {
	for i, row := range p.rows {
		if e, ok := row.(Editable); ok && e.Key() == id {
			return i
		}
	}
	return -1
}

func (p *Projector) draft(id string) *draft {
	for _, d := range p.drafts {
		if d.id == id {
			return d
		}
	}
	return nil
}

func (p *Projector) dropDraft(id string) {
	for i, d := range p.drafts {
		if d.id == id {
			p.drafts = append(p.drafts[:i], p.drafts[i+1:]...)
			return
		}
	}
}

func (p *Projector) clearEdit(id string) {
	delete(p.editing, id)
	delete(p.errs, id)
	delete(p.inputs, id)
}

// reject records a failed validation for the row with id. Caller holds mu.
func (p *Projector) reject(id string, in input, err error) {
	if d := p.draft(id); d != nil {
		d.quantity, d.unit, d.name, d.text = in.quantity, in.unit, in.name, in.text
		d.err = err.Error()
		return
	}
	p.editing[id] = true
	p.errs[id] = err.Error()
	p.inputs[id] = in
}

// ParseQuantity reads a decimal quantity as typed by a user.
func ParseQuantity(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("cannot be blank")
	}
	q, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return float32(q), nil
}

func parseIngredient(in input) (recipes.Ingredient, error) {
	errs := validation.Errors{}
	q, err := ParseQuantity(in.quantity)
	if err != nil {
		errs["quantity"] = err
	}
	if strings.TrimSpace(in.name) == "" {
		errs["name"] = errors.New("cannot be blank")
	}
	ing := recipes.Ingredient{Quantity: q, Unit: recipes.Unit(in.unit), Name: in.name}
	if err == nil {
		if verr := repository.ValidateIngredient(ing); verr != nil {
			errs["ingredient"] = verr
		}
	} else if !ing.Unit.Valid() {
		errs["unit"] = errors.New("must be a known unit")
	}
	if err := errs.Filter(); err != nil {
		return recipes.Ingredient{}, err
	}
	return ing, nil
}
