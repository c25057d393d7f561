package projector_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/projector"
	"github.com/starford/recipebox/internal/recipes"
	"github.com/starford/recipebox/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRepo records every mutation it receives.
type fakeRepo struct {
	mu    sync.Mutex
	calls []string
	last  []any
	err   error
	docs  chan *recipes.RecipeList
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: make(chan *recipes.RecipeList, 8)}
}

func (f *fakeRepo) record(op string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := []string{op}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	f.calls = append(f.calls, strings.Join(parts, " "))
	f.last = args
	return f.err
}

func (f *fakeRepo) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRepo) Observe(ctx context.Context) (<-chan *recipes.RecipeList, error) {
	out := make(chan *recipes.RecipeList)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-f.docs:
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (f *fakeRepo) UpdateRecipe(_ context.Context, i int, name string) error {
	return f.record("UpdateRecipe", i, name)
}

func (f *fakeRepo) DeleteRecipe(_ context.Context, i int) error {
	return f.record("DeleteRecipe", i)
}

func (f *fakeRepo) AddIngredient(_ context.Context, i int, ing recipes.Ingredient) error {
	return f.record("AddIngredient", i, ing)
}

func (f *fakeRepo) UpdateIngredientByID(_ context.Context, i int, id string, ing recipes.Ingredient) error {
	return f.record("UpdateIngredientByID", i, id, ing)
}

func (f *fakeRepo) RemoveIngredient(_ context.Context, i, j int) error {
	return f.record("RemoveIngredient", i, j)
}

func (f *fakeRepo) AddStep(_ context.Context, i int, st recipes.Step) error {
	return f.record("AddStep", i, st)
}

func (f *fakeRepo) UpdateStepByID(_ context.Context, i int, id, text string) error {
	return f.record("UpdateStepByID", i, id, text)
}

func (f *fakeRepo) RemoveStep(_ context.Context, i, j int) error {
	return f.record("RemoveStep", i, j)
}

func soup() recipes.Recipe {
	return recipes.Recipe{
		ID:   "r1",
		Name: "Soup",
		Ingredients: []recipes.Ingredient{
			{ID: "i1", Quantity: 1, Unit: recipes.UnitCup, Name: "water"},
			{ID: "i2", Quantity: 0.75, Unit: recipes.UnitTeaspoon, Name: "salt"},
		},
		Steps: []recipes.Step{{ID: "s1", Text: "Boil"}},
	}
}

func doc(rs ...recipes.Recipe) *recipes.RecipeList {
	return &recipes.RecipeList{Recipes: rs}
}

// stepLabels returns the labels of all step rows.
func stepLabels(rows []projector.Row) []string {
	var out []string
	for _, r := range rows {
		if s, ok := r.(projector.StepRow); ok {
			out = append(out, s.Label())
		}
	}
	return out
}

func TestDerive(t *testing.T) {
	got := projector.Derive(soup(), projector.Single)
	want := []projector.Row{
		projector.HeaderRow{Title: projector.IngredientsTitle},
		projector.IngredientRow{ID: "i1", SourceIndex: 0, Quantity: "1", UnitIndex: int(recipes.UnitCup), Name: "water"},
		projector.IngredientRow{ID: "i2", SourceIndex: 1, Quantity: "0.75", UnitIndex: int(recipes.UnitTeaspoon), Name: "salt"},
		projector.AddIngredientRow{},
		projector.HeaderRow{Title: projector.StepsTitle},
		projector.StepRow{ID: "s1", SourceIndex: 0, Ordinal: "1", Text: "Boil"},
		projector.AddStepRow{},
	}
	assert.Equal(t, want, got)
}

func TestDeriveEmptyRecipe(t *testing.T) {
	got := projector.Derive(recipes.Recipe{Name: "x"}, projector.Double)
	want := []projector.Row{
		projector.HeaderRow{Title: projector.IngredientsTitle},
		projector.AddIngredientRow{},
		projector.HeaderRow{Title: projector.StepsTitle},
		projector.AddStepRow{},
	}
	assert.Equal(t, want, got)
}

func TestListNames(t *testing.T) {
	doc := &recipes.RecipeList{Recipes: []recipes.Recipe{{Name: "Soup"}, {Name: "Bread"}}}
	assert.Equal(t, []string{"Soup", "Bread"}, projector.ListNames(doc))
	assert.Empty(t, projector.ListNames(nil))
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		q    float32
		m    projector.Multiplier
		want string
	}{
		{1, projector.Half, "0.5"},
		{1, projector.Single, "1"},
		{1, projector.OneAndAHalf, "1.5"},
		{1, projector.Double, "2"},
		{0.75, projector.Double, "1.5"},
		{0.75, projector.Half, "0.38"},
		{1.1, projector.Single, "1.1"},
		{1.0 / 3, projector.Single, "0.33"},
		{0, projector.Double, "0"},
		{250, projector.OneAndAHalf, "375"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, projector.FormatQuantity(tt.q, tt.m), "FormatQuantity(%v, %s)", tt.q, tt.m)
	}
}

func TestParseMultiplier(t *testing.T) {
	tests := map[string]projector.Multiplier{
		"":               projector.Single,
		"0.5x":           projector.Half,
		"0.5":            projector.Half,
		"HALF":           projector.Half,
		"1.5x":           projector.OneAndAHalf,
		"one_and_a_half": projector.OneAndAHalf,
		"2":              projector.Double,
	}
	for in, want := range tests {
		got, err := projector.ParseMultiplier(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}
	_, err := projector.ParseMultiplier("3x")
	assert.Error(t, err)
}

func TestMultiplierRestoresExactly(t *testing.T) {
	repo := newFakeRepo()
	p := projector.New(repo, 0)
	p.Apply(doc(soup()))
	base := p.State().Rows

	for _, m := range projector.Multipliers() {
		require.NoError(t, p.SetMultiplier(m))
		row := p.State().Rows[2].(projector.IngredientRow)
		assert.Equal(t, projector.FormatQuantity(0.75, m), row.Quantity, "multiplier %s", m)
	}
	require.NoError(t, p.SetMultiplier(projector.Single))

	assert.Equal(t, base, p.State().Rows, "rows after restore")
	assert.Empty(t, repo.Calls())
	assert.ErrorIs(t, p.SetMultiplier(projector.Multiplier(9)), apperr.ErrInvalidInput)
}

func TestSoupScenario(t *testing.T) {
	repo := testutil.TestRepo(t)
	testutil.Seed(t, repo, recipes.Recipe{
		Name:        "Soup",
		Ingredients: []recipes.Ingredient{{Quantity: 1, Unit: recipes.UnitCup, Name: "water"}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	p := projector.New(repo, 0, projector.WithLogger(testutil.Logger()))
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool { return p.State().Loaded }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.SetMultiplier(projector.Double))
	st := p.State()
	assert.Equal(t, "Soup", st.RecipeName)
	assert.Equal(t, "2", st.Rows[1].(projector.IngredientRow).Quantity)

	// Cancel before saving discards the draft and leaves the store alone.
	pos := p.AddStep()
	require.True(t, p.State().Rows[pos].(projector.StepRow).Editing)
	require.NoError(t, p.Cancel(pos))
	assert.Empty(t, stepLabels(p.State().Rows))
	rec, err := repo.Recipe(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, rec.Steps)

	pos = p.AddStep()
	require.NoError(t, p.SaveStep(context.Background(), pos, "Boil"))
	require.Eventually(t, func() bool {
		return cmp.Equal([]string{"1: Boil"}, stepLabels(p.State().Rows))
	}, time.Second, 5*time.Millisecond)

	rec, err = repo.Recipe(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rec.Steps, 1)
	assert.Equal(t, "Boil", rec.Steps[0].Text)
	assert.Equal(t, float32(1), rec.Ingredients[0].Quantity, "multiplier must not be persisted")
}

func TestCancelDraftMakesNoRepositoryCall(t *testing.T) {
	repo := newFakeRepo()
	p := projector.New(repo, 0)
	p.Apply(doc(soup()))
	base := p.State().Rows

	pos := p.AddIngredient()
	assert.Equal(t, 3, pos, "draft sits before the add row")
	draft := p.State().Rows[pos].(projector.IngredientRow)
	assert.True(t, draft.Editing)
	assert.Equal(t, projector.DraftIndex, draft.SourceIndex)

	require.NoError(t, p.Cancel(pos))
	assert.Empty(t, repo.Calls())
	assert.Equal(t, base, p.State().Rows)
}

func TestDeleteIssuesOneRemoval(t *testing.T) {
	repo := newFakeRepo()
	p := projector.New(repo, 3)
	p.Apply(doc(recipes.Recipe{}, recipes.Recipe{}, recipes.Recipe{}, soup()))
	ctx := context.Background()

	require.NoError(t, p.Delete(ctx, 2))
	assert.Equal(t, []string{"RemoveIngredient 3 1"}, repo.Calls())

	require.NoError(t, p.Delete(ctx, 5))
	assert.Equal(t, []string{"RemoveIngredient 3 1", "RemoveStep 3 0"}, repo.Calls())

	assert.ErrorIs(t, p.Delete(ctx, 0), projector.ErrNotEditable)
	assert.ErrorIs(t, p.Delete(ctx, 99), apperr.ErrOutOfRange)
	assert.Len(t, repo.Calls(), 2)
}

func TestDeleteDraftIsLocal(t *testing.T) {
	repo := newFakeRepo()
	p := projector.New(repo, 0)
	p.Apply(doc(soup()))

	pos := p.AddStep()
	require.NoError(t, p.Delete(context.Background(), pos))
	assert.Empty(t, repo.Calls())
	assert.Equal(t, []string{"1: Boil"}, stepLabels(p.State().Rows))
}

func TestInvalidQuantityStaysEditing(t *testing.T) {
	repo := newFakeRepo()
	p := projector.New(repo, 0)
	p.Apply(doc(soup()))
	ctx := context.Background()

	require.NoError(t, p.Click(1))
	err := p.SaveIngredient(ctx, 1, "a lot", int(recipes.UnitCup), "water")
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Empty(t, repo.Calls())

	row := p.State().Rows[1].(projector.IngredientRow)
	assert.True(t, row.Editing)
	assert.NotEmpty(t, row.Error)
	assert.Equal(t, "a lot", row.Quantity)

	require.NoError(t, p.SaveIngredient(ctx, 1, "3", int(recipes.UnitCup), "water"))
	require.Len(t, repo.Calls(), 1)
	assert.Equal(t, 0, repo.last[0])
	assert.Equal(t, "i1", repo.last[1])
	assert.Equal(t, float32(3), repo.last[2].(recipes.Ingredient).Quantity)

	row = p.State().Rows[1].(projector.IngredientRow)
	assert.False(t, row.Editing)
	assert.Empty(t, row.Error)
}

func TestInvalidDraftFields(t *testing.T) {
	repo := newFakeRepo()
	p := projector.New(repo, 0)
	p.Apply(doc(soup()))
	ctx := context.Background()

	pos := p.AddIngredient()
	tests := []struct {
		quantity string
		unit     int
		name     string
	}{
		{"", int(recipes.UnitCup), "oil"},
		{"-1", int(recipes.UnitCup), "oil"},
		{"1", 42, "oil"},
		{"1", int(recipes.UnitCup), "  "},
	}
	for _, tt := range tests {
		err := p.SaveIngredient(ctx, pos, tt.quantity, tt.unit, tt.name)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, "%+v", tt)
		row := p.State().Rows[pos].(projector.IngredientRow)
		assert.True(t, row.Editing)
		assert.NotEmpty(t, row.Error)
	}
	require.ErrorIs(t, p.SaveStep(ctx, p.AddStep(), " "), apperr.ErrInvalidInput)
	assert.Empty(t, repo.Calls())
}

func TestSavedDraftReplacedByDocument(t *testing.T) {
	repo := newFakeRepo()
	p := projector.New(repo, 0)
	rec := soup()
	p.Apply(doc(rec))

	pos := p.AddIngredient()
	require.NoError(t, p.SaveIngredient(context.Background(), pos, "2", int(recipes.UnitGram), "pepper"))
	require.Len(t, repo.Calls(), 1)
	added := repo.last[1].(recipes.Ingredient)

	row := p.State().Rows[pos].(projector.IngredientRow)
	assert.False(t, row.Editing)
	assert.Equal(t, added.ID, row.ID)
	assert.Equal(t, projector.DraftIndex, row.SourceIndex)
	assert.ErrorIs(t, p.Click(pos), projector.ErrNotEditable)

	rec.Ingredients = append(rec.Ingredients, added)
	p.Apply(doc(rec))
	assert.Equal(t, projector.Derive(rec, projector.Single), p.State().Rows)
}

func TestEditStateFollowsID(t *testing.T) {
	repo := newFakeRepo()
	p := projector.New(repo, 0)
	rec := soup()
	p.Apply(doc(rec))
	require.NoError(t, p.Click(2))

	// Another writer inserts an ingredient in front of the edited one.
	rec.Ingredients = append([]recipes.Ingredient{{ID: "i0", Quantity: 5, Name: "stock"}}, rec.Ingredients...)
	p.Apply(doc(rec))

	rows := p.State().Rows
	assert.False(t, rows[2].(projector.IngredientRow).Editing)
	moved := rows[3].(projector.IngredientRow)
	assert.Equal(t, "i2", moved.ID)
	assert.True(t, moved.Editing)

	// Removal of the edited item drops its edit state.
	rec.Ingredients = rec.Ingredients[:2]
	p.Apply(doc(rec))
	for _, r := range p.State().Rows {
		if e, ok := r.(projector.Editable); ok {
			assert.False(t, e.IsEditing(), e.Key())
		}
	}
}

func TestSaveTargetsItemByID(t *testing.T) {
	repo := testutil.TestRepo(t)
	ctx := context.Background()
	testutil.Seed(t, repo, recipes.Recipe{
		Name:        "Soup",
		Ingredients: []recipes.Ingredient{{Quantity: 1, Name: "water"}, {Quantity: 1, Name: "salt"}},
		Steps:       []recipes.Step{{Text: "Boil"}, {Text: "Season"}},
	})
	d, err := repo.Recipes(ctx)
	require.NoError(t, err)
	p := projector.New(repo, 0, projector.WithLogger(testutil.Logger()))
	p.Apply(d)

	// Rows: header, water, salt, add, header, Boil, Season, add.
	require.NoError(t, p.Click(2))
	require.NoError(t, p.Click(6))

	// Another writer drops the first items before this screen re-renders.
	require.NoError(t, repo.RemoveIngredient(ctx, 0, 0))
	require.NoError(t, repo.RemoveStep(ctx, 0, 0))

	require.NoError(t, p.SaveIngredient(ctx, 2, "2", int(recipes.UnitGram), "sea salt"))
	require.NoError(t, p.SaveStep(ctx, 6, "Season to taste"))

	rec, err := repo.Recipe(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rec.Ingredients, 1)
	assert.Equal(t, "sea salt", rec.Ingredients[0].Name)
	assert.Equal(t, float32(2), rec.Ingredients[0].Quantity)
	require.Len(t, rec.Steps, 1)
	assert.Equal(t, "Season to taste", rec.Steps[0].Text)
}

func TestEditingShowsStoredQuantity(t *testing.T) {
	p := projector.New(newFakeRepo(), 0, projector.WithMultiplier(projector.Double))
	p.Apply(doc(soup()))
	assert.Equal(t, "1.5", p.State().Rows[2].(projector.IngredientRow).Quantity)

	require.NoError(t, p.Click(2))
	assert.Equal(t, "0.75", p.State().Rows[2].(projector.IngredientRow).Quantity)
	require.NoError(t, p.Cancel(2))
	assert.Equal(t, "1.5", p.State().Rows[2].(projector.IngredientRow).Quantity)
}

func TestRepositoryFailureReopensRow(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("disk full")
	p := projector.New(repo, 0, projector.WithLogger(testutil.Logger()))
	p.Apply(doc(soup()))

	require.NoError(t, p.Click(5))
	err := p.SaveStep(context.Background(), 5, "Simmer")
	require.Error(t, err)

	row := p.State().Rows[5].(projector.StepRow)
	assert.True(t, row.Editing)
	assert.Equal(t, "Simmer", row.Text)
	assert.Contains(t, row.Error, "disk full")
}

func TestRecipeName(t *testing.T) {
	repo := newFakeRepo()
	p := projector.New(repo, 0)
	p.Apply(doc(soup()))
	ctx := context.Background()

	p.EditName()
	require.ErrorIs(t, p.SaveName(ctx, "  "), apperr.ErrInvalidInput)
	st := p.State()
	assert.True(t, st.EditingName)
	assert.NotEmpty(t, st.NameError)
	assert.Empty(t, repo.Calls())

	require.NoError(t, p.SaveName(ctx, " Stew "))
	assert.Equal(t, []string{"UpdateRecipe 0 Stew"}, repo.Calls())
	assert.False(t, p.State().EditingName)
}

func TestDeleteRecipeAsksFirst(t *testing.T) {
	repo := newFakeRepo()
	answer := false
	var prompt string
	p := projector.New(repo, 0, projector.WithConfirm(func(_ context.Context, q string) (bool, error) {
		prompt = q
		return answer, nil
	}))
	p.Apply(doc(soup()))

	ok, err := p.DeleteRecipe(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, repo.Calls())
	assert.Contains(t, prompt, "Soup")

	answer = true
	ok, err = p.DeleteRecipe(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"DeleteRecipe 0"}, repo.Calls())

	p.Apply(doc())
	assert.True(t, p.State().Gone)
}

func TestSurfaceSeesIncreasingVersions(t *testing.T) {
	repo := newFakeRepo()
	var (
		mu       sync.Mutex
		versions []uint64
	)
	p := projector.New(repo, 0, projector.WithSurface(projector.SurfaceFunc(func(s projector.State) {
		mu.Lock()
		versions = append(versions, s.Version)
		mu.Unlock()
	})))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	repo.docs <- doc(soup())

	var wg sync.WaitGroup
	for _, m := range []projector.Multiplier{projector.Half, projector.Double, projector.OneAndAHalf} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.SetMultiplier(m)
		}()
	}
	wg.Wait()
	require.Eventually(t, func() bool { return p.State().Loaded }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, versions)
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}
