// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes recipebox tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/recipebox/internal/api"
	"github.com/starford/recipebox/internal/projector"
	"github.com/starford/recipebox/internal/recipes"
)

// FormatURI is the resource URI of the recipe Markdown contract.
const FormatURI = "recipebox://recipe-format"

// Server wraps the MCP server with recipebox tools.
type Server struct {
	mcp *server.MCPServer
	svc *api.Service
}

// New creates a new MCP server with all recipebox tools registered.
func New(svc *api.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"recipebox",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_recipes",
		mcp.WithDescription("List every recipe with its index. Indexes shift down when a recipe is deleted."),
	), s.listRecipes)

	s.mcp.AddTool(mcp.NewTool("read_recipe",
		mcp.WithDescription("Read a recipe as Markdown in the recipebox recipe format."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Recipe index from list_recipes")),
	), s.readRecipe)

	s.mcp.AddTool(mcp.NewTool("view_recipe",
		mcp.WithDescription("Show a recipe with ingredient quantities scaled by a multiplier."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Recipe index from list_recipes")),
		mcp.WithString("multiplier", mcp.Description("One of 0.5x, 1x, 1.5x, 2x (default 1x)")),
	), s.viewRecipe)

	s.mcp.AddTool(mcp.NewTool("create_recipe",
		mcp.WithDescription("Create a recipe from Markdown. "+
			"Content MUST follow the recipebox recipe format (YAML frontmatter with name, "+
			"## Ingredients and ## Steps sections). Read the contract first via "+
			"the get_recipe_format tool or the "+FormatURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the recipe format contract")),
	), s.createRecipe)

	s.mcp.AddTool(mcp.NewTool("add_ingredient",
		mcp.WithDescription("Append an ingredient to a recipe."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Recipe index")),
		mcp.WithNumber("quantity", mcp.Required(), mcp.Description("Non-negative quantity")),
		mcp.WithString("unit", mcp.Description("Unit name, e.g. cup, gram, teaspoon (default unit)")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Ingredient name")),
	), s.addIngredient)

	s.mcp.AddTool(mcp.NewTool("add_step",
		mcp.WithDescription("Append a step to a recipe."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Recipe index")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Step text")),
	), s.addStep)

	s.mcp.AddTool(mcp.NewTool("search_recipes",
		mcp.WithDescription("Search recipe names, ingredients and steps."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchRecipes)

	s.mcp.AddTool(mcp.NewTool("recipes_with_ingredient",
		mcp.WithDescription("List the recipes that use an ingredient, matched by exact name ignoring case."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Ingredient name, e.g. flour")),
	), s.recipesWithIngredient)

	s.mcp.AddTool(mcp.NewTool("get_recipe_format",
		mcp.WithDescription("Returns the recipebox recipe format contract. "+
			"Call this before creating recipes to ensure correct structure."),
	), s.getRecipeFormat)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Recipe Format Contract",
			mcp.WithResourceDescription("Markdown recipe format accepted by create_recipe."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listRecipes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return summaryText(items), nil
}

func (s *Server) recipesWithIngredient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.svc.WithIngredient(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return summaryText(items), nil
}

func summaryText(items []api.RecipeSummary) *mcp.CallToolResult {
	if len(items) == 0 {
		return mcp.NewToolResultText("no recipes")
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%d: %s (%d ingredients, %d steps)", it.Index, it.Name, it.Ingredients, it.Steps)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n"))
}

func (s *Server) readRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	i, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.svc.Markdown(ctx, i)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) viewRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	i, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := projector.ParseMultiplier(req.GetString("multiplier", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.View(ctx, i, m)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", view.Name, view.Multiplier)
	for _, row := range view.Rows {
		switch r := row.Data.(type) {
		case projector.HeaderRow:
			fmt.Fprintf(&b, "\n%s\n", r.Title)
		case projector.IngredientRow:
			fmt.Fprintf(&b, "- %s %s\n", r.Quantity, withUnit(recipes.Unit(r.UnitIndex), r.Name))
		case projector.StepRow:
			fmt.Fprintf(&b, "%s\n", r.Label())
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func withUnit(u recipes.Unit, name string) string {
	if u == recipes.UnitUnit {
		return name
	}
	return strings.ToLower(u.String()) + " " + name
}

func (s *Server) createRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Import(ctx, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %d %s", rec.Index, rec.Name)), nil
}

func (s *Server) addIngredient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	i, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q, err := req.RequireFloat("quantity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.AddIngredient(ctx, i, api.IngredientRequest{
		Quantity: float32(q),
		Unit:     req.GetString("unit", ""),
		Name:     name,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added ingredient %d to %s", len(rec.Ingredients)-1, rec.Name)), nil
}

func (s *Server) addStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	i, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.AddStep(ctx, i, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added step %d to %s", len(rec.Steps), rec.Name)), nil
}

func (s *Server) searchRecipes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getRecipeFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecipeFormatContract), nil
}

func (s *Server) readFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     RecipeFormatContract,
		},
	}, nil
}
