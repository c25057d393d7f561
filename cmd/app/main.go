package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:   "recipebox",
		Usage:  "Local-first recipe book with a JSON API, MCP tools and Markdown import/export",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:   "list",
				Usage:  "List recipes with their index",
				Action: list,
			},
			{
				Name:      "show",
				Usage:     "Show a recipe",
				ArgsUsage: "<index>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "multiplier", Aliases: []string{"m"}, Value: "1x", Usage: "0.5x, 1x, 1.5x or 2x"},
				},
				Action: show,
			},
			{
				Name:      "create",
				Usage:     "Create an empty recipe",
				ArgsUsage: "[name]",
				Action:    create,
			},
			{
				Name:      "rename",
				Usage:     "Rename a recipe",
				ArgsUsage: "<index> <name>",
				Action:    rename,
			},
			{
				Name:      "delete",
				Usage:     "Delete a recipe; later recipes shift down",
				ArgsUsage: "<index>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
				},
				Action: deleteRecipe,
			},
			{
				Name:  "ingredient",
				Usage: "Edit the ingredients of a recipe",
				Commands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Append an ingredient",
						ArgsUsage: "<index>",
						Flags:     ingredientFlags(),
						Action:    addIngredient,
					},
					{
						Name:      "update",
						Usage:     "Change an ingredient; omitted flags keep their stored value",
						ArgsUsage: "<index> <item>",
						Flags:     ingredientUpdateFlags(),
						Action:    updateIngredient,
					},
					{
						Name:      "remove",
						Usage:     "Remove an ingredient",
						ArgsUsage: "<index> <item>",
						Action:    removeIngredient,
					},
				},
			},
			{
				Name:  "step",
				Usage: "Edit the steps of a recipe",
				Commands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Append a step",
						ArgsUsage: "<index> <text>",
						Action:    addStep,
					},
					{
						Name:      "update",
						Usage:     "Replace the text of a step",
						ArgsUsage: "<index> <item> <text>",
						Action:    updateStep,
					},
					{
						Name:      "remove",
						Usage:     "Remove a step",
						ArgsUsage: "<index> <item>",
						Action:    removeStep,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search recipe names, ingredients and steps",
				ArgsUsage: "<query>",
				Action:    search,
			},
			{
				Name:      "export",
				Usage:     "Write every recipe as a Markdown file",
				ArgsUsage: "<dir>",
				Action:    export,
			},
			{
				Name:      "import",
				Usage:     "Append recipes from Markdown files",
				ArgsUsage: "<file.md>...",
				Action:    importFiles,
			},
			{
				Name:   "reset",
				Usage:  "Move a corrupt recipe file aside and start from an empty book",
				Action: reset,
			},
		},
	}
}

func ingredientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{Name: "quantity", Aliases: []string{"q"}, Value: 1, Usage: "Non-negative quantity"},
		&cli.StringFlag{Name: "unit", Aliases: []string{"u"}, Usage: "Unit name, e.g. cup or gram"},
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Ingredient name", Required: true},
	}
}

func ingredientUpdateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{Name: "quantity", Aliases: []string{"q"}, Usage: "Non-negative quantity"},
		&cli.StringFlag{Name: "unit", Aliases: []string{"u"}, Usage: "Unit name, e.g. cup or gram"},
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Ingredient name"},
	}
}

func fatalf(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), 2)
}
