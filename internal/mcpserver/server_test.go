package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/recipebox/internal/api"
	"github.com/starford/recipebox/internal/recipes"
	"github.com/starford/recipebox/internal/repository"
	"github.com/starford/recipebox/internal/testutil"
)

func testServer(t *testing.T) (*Server, *repository.Repository) {
	t.Helper()
	repo := testutil.TestRepo(t)
	srv := New(api.NewService(repo, nil, testutil.Logger()))
	return srv, repo
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" helper; call the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_recipes":
		result, err = srv.listRecipes(ctx, req)
	case "read_recipe":
		result, err = srv.readRecipe(ctx, req)
	case "view_recipe":
		result, err = srv.viewRecipe(ctx, req)
	case "create_recipe":
		result, err = srv.createRecipe(ctx, req)
	case "add_ingredient":
		result, err = srv.addIngredient(ctx, req)
	case "add_step":
		result, err = srv.addStep(ctx, req)
	case "search_recipes":
		result, err = srv.searchRecipes(ctx, req)
	case "recipes_with_ingredient":
		result, err = srv.recipesWithIngredient(ctx, req)
	case "get_recipe_format":
		result, err = srv.getRecipeFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadRecipe(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_recipe", map[string]any{
		"content": "---\nname: Soup\n---\n## Ingredients\n- 1 cup water\n## Steps\n1. Boil\n",
	})
	if text := resultText(r); text != "created: 0 Soup" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_recipe", map[string]any{"index": 0})
	text := resultText(r)
	if !strings.Contains(text, "- 1 cup water") || !strings.Contains(text, "1. Boil") {
		t.Errorf("read result = %q", text)
	}
}

func TestCreateRecipeInvalid(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_recipe", map[string]any{"content": "## Ingredients\n- 1 cup water\n"})
	if !r.IsError {
		t.Error("expected error for recipe without a name")
	}
}

func TestListRecipes(t *testing.T) {
	srv, repo := testServer(t)
	if text := resultText(callTool(t, srv, "list_recipes", map[string]any{})); text != "no recipes" {
		t.Errorf("empty list = %q", text)
	}
	testutil.Seed(t, repo, recipes.Recipe{Name: "a", Steps: []recipes.Step{{Text: "x"}}}, recipes.Recipe{Name: "b"})

	text := resultText(callTool(t, srv, "list_recipes", map[string]any{}))
	want := "0: a (0 ingredients, 1 steps)\n1: b (0 ingredients, 0 steps)"
	if text != want {
		t.Errorf("list = %q, want %q", text, want)
	}
}

func TestReadRecipeMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_recipe", map[string]any{"index": 3})
	if !r.IsError {
		t.Error("expected error for missing recipe")
	}
}

func TestAddItemsAndView(t *testing.T) {
	srv, repo := testServer(t)
	testutil.Seed(t, repo, recipes.Recipe{Name: "Bread"})

	r := callTool(t, srv, "add_ingredient", map[string]any{"index": 0, "quantity": 250.0, "unit": "gram", "name": "flour"})
	if r.IsError {
		t.Fatalf("add_ingredient: %s", resultText(r))
	}
	r = callTool(t, srv, "add_ingredient", map[string]any{"index": 0, "quantity": 3.0, "name": "eggs"})
	if r.IsError {
		t.Fatalf("add_ingredient: %s", resultText(r))
	}
	r = callTool(t, srv, "add_step", map[string]any{"index": 0, "text": "Knead"})
	if text := resultText(r); text != "added step 1 to Bread" {
		t.Errorf("add_step = %q", text)
	}

	text := resultText(callTool(t, srv, "view_recipe", map[string]any{"index": 0, "multiplier": "0.5x"}))
	for _, want := range []string{"Bread (0.5x)", "- 125 gram flour", "- 1.5 eggs", "1: Knead"} {
		if !strings.Contains(text, want) {
			t.Errorf("view missing %q:\n%s", want, text)
		}
	}

	bad := callTool(t, srv, "add_ingredient", map[string]any{"index": 0, "quantity": -1.0, "name": "x"})
	if !bad.IsError {
		t.Error("expected error for negative quantity")
	}
	bad = callTool(t, srv, "view_recipe", map[string]any{"index": 0, "multiplier": "3x"})
	if !bad.IsError {
		t.Error("expected error for unknown multiplier")
	}
}

func TestSearchRecipes(t *testing.T) {
	srv, repo := testServer(t)
	testutil.Seed(t, repo,
		recipes.Recipe{Name: "Bread", Ingredients: []recipes.Ingredient{{Quantity: 1, Name: "flour"}}},
		recipes.Recipe{Name: "Salad"},
	)
	text := resultText(callTool(t, srv, "search_recipes", map[string]any{"query": "flour"}))
	if !strings.Contains(text, `"name": "Bread"`) || strings.Contains(text, "Salad") {
		t.Errorf("search = %s", text)
	}
}

func TestRecipesWithIngredient(t *testing.T) {
	srv, repo := testServer(t)
	testutil.Seed(t, repo,
		recipes.Recipe{Name: "Bread", Ingredients: []recipes.Ingredient{{Quantity: 1, Name: "flour"}}},
		recipes.Recipe{Name: "Flourless cake", Ingredients: []recipes.Ingredient{{Quantity: 2, Name: "egg"}}},
	)
	text := resultText(callTool(t, srv, "recipes_with_ingredient", map[string]any{"name": "Flour"}))
	if text != "0: Bread (1 ingredients, 0 steps)" {
		t.Errorf("with flour = %q", text)
	}
	if text := resultText(callTool(t, srv, "recipes_with_ingredient", map[string]any{"name": "milk"})); text != "no recipes" {
		t.Errorf("with milk = %q", text)
	}
	if res := callTool(t, srv, "recipes_with_ingredient", map[string]any{}); !res.IsError {
		t.Error("expected error without name")
	}
}

func TestRecipeFormat(t *testing.T) {
	srv, _ := testServer(t)
	if text := resultText(callTool(t, srv, "get_recipe_format", nil)); text != RecipeFormatContract {
		t.Error("contract text mismatch")
	}
	res, err := srv.readFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(res) != 1 {
		t.Fatalf("resource = %v, %v", res, err)
	}
}
