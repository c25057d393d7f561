package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/recipebox/internal"
	"github.com/starford/recipebox/internal/api"
	"github.com/starford/recipebox/internal/datastore"
	"github.com/starford/recipebox/internal/mdrecipe"
	"github.com/starford/recipebox/internal/projector"
	"github.com/starford/recipebox/internal/recipes"
	"github.com/starford/recipebox/internal/storage"
	pkgconfig "github.com/starford/recipebox/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

// session is what one short-lived command works with.
type session struct {
	stack *internal.Stack
	svc   *api.Service
	out   io.Writer
	in    io.Reader
}

// withSession opens the stack for the duration of fn. The index, if enabled,
// is brought up to date afterwards so a running server and later searches
// see the change.
func withSession(ctx context.Context, cmd *cli.Command, fn func(*session) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel)
	stack, err := internal.Open(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	s := &session{
		stack: stack,
		svc:   api.NewService(stack.Repo, stack.Index(), logger),
		out:   cmd.Root().Writer,
		in:    cmd.Root().Reader,
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.in == nil {
		s.in = os.Stdin
	}
	if err := fn(s); err != nil {
		return err
	}
	return stack.SyncIndex(ctx)
}

func argIndex(cmd *cli.Command, pos int, what string) (int, error) {
	v := cmd.Args().Get(pos)
	if v == "" {
		return 0, fatalf("missing %s", what)
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return 0, fatalf("%s must be a non-negative integer, got %q", what, v)
	}
	return i, nil
}

func restFrom(cmd *cli.Command, pos int) string {
	return strings.TrimSpace(strings.Join(cmd.Args().Slice()[min(pos, cmd.Args().Len()):], " "))
}

func list(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, func(s *session) error {
		doc, err := s.stack.Repo.Recipes(ctx)
		if err != nil {
			return err
		}
		for i, name := range projector.ListNames(doc) {
			fmt.Fprintf(s.out, "%d\t%s\n", i, name)
		}
		return nil
	})
}

func show(ctx context.Context, cmd *cli.Command) error {
	i, err := argIndex(cmd, 0, "recipe index")
	if err != nil {
		return err
	}
	m, err := projector.ParseMultiplier(cmd.String("multiplier"))
	if err != nil {
		return fatalf("%v", err)
	}
	return withSession(ctx, cmd, func(s *session) error {
		view, err := s.svc.View(ctx, i, m)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s (%s)\n", view.Name, view.Multiplier)
		for _, row := range view.Rows {
			switch r := row.Data.(type) {
			case projector.HeaderRow:
				fmt.Fprintf(s.out, "\n%s\n", r.Title)
			case projector.IngredientRow:
				unit := ""
				if u := recipes.Unit(r.UnitIndex); u != recipes.UnitUnit {
					unit = strings.ToLower(u.String()) + " "
				}
				fmt.Fprintf(s.out, "  %d. %s %s%s\n", r.SourceIndex, r.Quantity, unit, r.Name)
			case projector.StepRow:
				fmt.Fprintf(s.out, "  %s\n", r.Label())
			}
		}
		return nil
	})
}

func create(ctx context.Context, cmd *cli.Command) error {
	return withSession(ctx, cmd, func(s *session) error {
		rec, err := s.svc.Create(ctx, restFrom(cmd, 0))
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%d\t%s\n", rec.Index, rec.Name)
		return nil
	})
}

func rename(ctx context.Context, cmd *cli.Command) error {
	i, err := argIndex(cmd, 0, "recipe index")
	if err != nil {
		return err
	}
	return withSession(ctx, cmd, func(s *session) error {
		_, err := s.svc.Rename(ctx, i, restFrom(cmd, 1))
		return err
	})
}

func deleteRecipe(ctx context.Context, cmd *cli.Command) error {
	i, err := argIndex(cmd, 0, "recipe index")
	if err != nil {
		return err
	}
	return withSession(ctx, cmd, func(s *session) error {
		doc, err := s.stack.Repo.Recipes(ctx)
		if err != nil {
			return err
		}
		p := projector.New(s.stack.Repo, i, projector.WithConfirm(s.confirm(cmd.Bool("yes"))))
		p.Apply(doc)
		if p.State().Gone {
			return fatalf("no recipe at index %d", i)
		}
		deleted, err := p.DeleteRecipe(ctx)
		if err != nil {
			return err
		}
		if !deleted {
			fmt.Fprintln(s.out, "kept")
		}
		return nil
	})
}

// confirm asks on the session's input unless yes is set.
func (s *session) confirm(yes bool) projector.Confirm {
	return func(_ context.Context, prompt string) (bool, error) {
		if yes {
			return true, nil
		}
		fmt.Fprintf(s.out, "%s [y/N] ", prompt)
		line, err := bufio.NewReader(s.in).ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

func ingredientRequest(cmd *cli.Command) api.IngredientRequest {
	return api.IngredientRequest{
		Quantity: float32(cmd.Float("quantity")),
		Unit:     cmd.String("unit"),
		Name:     cmd.String("name"),
	}
}

func addIngredient(ctx context.Context, cmd *cli.Command) error {
	i, err := argIndex(cmd, 0, "recipe index")
	if err != nil {
		return err
	}
	return withSession(ctx, cmd, func(s *session) error {
		_, err := s.svc.AddIngredient(ctx, i, ingredientRequest(cmd))
		return err
	})
}

func updateIngredient(ctx context.Context, cmd *cli.Command) error {
	i, err := argIndex(cmd, 0, "recipe index")
	if err != nil {
		return err
	}
	item, err := argIndex(cmd, 1, "ingredient index")
	if err != nil {
		return err
	}
	return withSession(ctx, cmd, func(s *session) error {
		r, err := s.svc.Get(ctx, i)
		if err != nil {
			return err
		}
		if item >= len(r.Ingredients) {
			return fatalf("no ingredient at index %d", item)
		}
		_, err = s.svc.UpdateIngredient(ctx, i, item, mergeIngredient(cmd, r.Ingredients[item]))
		return err
	})
}

// mergeIngredient starts from the stored ingredient and applies only the
// flags given on the command line.
func mergeIngredient(cmd *cli.Command, cur recipes.Ingredient) api.IngredientRequest {
	req := api.IngredientRequest{Quantity: cur.Quantity, Name: cur.Name}
	if cur.Unit.Valid() {
		req.Unit = cur.Unit.String()
	}
	if cmd.IsSet("quantity") {
		req.Quantity = float32(cmd.Float("quantity"))
	}
	if cmd.IsSet("unit") {
		req.Unit = cmd.String("unit")
	}
	if cmd.IsSet("name") {
		req.Name = cmd.String("name")
	}
	return req
}

func removeIngredient(ctx context.Context, cmd *cli.Command) error {
	i, err := argIndex(cmd, 0, "recipe index")
	if err != nil {
		return err
	}
	item, err := argIndex(cmd, 1, "ingredient index")
	if err != nil {
		return err
	}
	return withSession(ctx, cmd, func(s *session) error {
		return s.svc.RemoveIngredient(ctx, i, item)
	})
}

func addStep(ctx context.Context, cmd *cli.Command) error {
	i, err := argIndex(cmd, 0, "recipe index")
	if err != nil {
		return err
	}
	return withSession(ctx, cmd, func(s *session) error {
		_, err := s.svc.AddStep(ctx, i, restFrom(cmd, 1))
		return err
	})
}

func updateStep(ctx context.Context, cmd *cli.Command) error {
	i, err := argIndex(cmd, 0, "recipe index")
	if err != nil {
		return err
	}
	item, err := argIndex(cmd, 1, "step index")
	if err != nil {
		return err
	}
	return withSession(ctx, cmd, func(s *session) error {
		_, err := s.svc.UpdateStep(ctx, i, item, restFrom(cmd, 2))
		return err
	})
}

func removeStep(ctx context.Context, cmd *cli.Command) error {
	i, err := argIndex(cmd, 0, "recipe index")
	if err != nil {
		return err
	}
	item, err := argIndex(cmd, 1, "step index")
	if err != nil {
		return err
	}
	return withSession(ctx, cmd, func(s *session) error {
		return s.svc.RemoveStep(ctx, i, item)
	})
}

func search(ctx context.Context, cmd *cli.Command) error {
	q := restFrom(cmd, 0)
	if q == "" {
		return fatalf("missing query")
	}
	return withSession(ctx, cmd, func(s *session) error {
		if err := s.stack.SyncIndex(ctx); err != nil {
			return err
		}
		results, err := s.svc.Search(ctx, q, 0)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Snippet != "" {
				fmt.Fprintf(s.out, "%d\t%s\t%s\n", r.Index, r.Name, r.Snippet)
				continue
			}
			fmt.Fprintf(s.out, "%d\t%s\n", r.Index, r.Name)
		}
		return nil
	})
}

func export(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fatalf("missing output directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	target, err := storage.NewFS(dir)
	if err != nil {
		return err
	}
	return withSession(ctx, cmd, func(s *session) error {
		doc, err := s.stack.Repo.Recipes(ctx)
		if err != nil {
			return err
		}
		for i, r := range doc.Recipes {
			data, err := mdrecipe.Format(r)
			if err != nil {
				return err
			}
			name := mdrecipe.FileName(i, r)
			if err := target.Write(name, data); err != nil {
				return err
			}
			fmt.Fprintln(s.out, name)
		}
		return nil
	})
}

func importFiles(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return fatalf("missing Markdown files")
	}
	return withSession(ctx, cmd, func(s *session) error {
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				return err
			}
			rec, err := s.svc.Import(ctx, data)
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			fmt.Fprintf(s.out, "%d\t%s\n", rec.Index, rec.Name)
		}
		return nil
	})
}

func reset(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	p, err := storage.NewFS(cfg.Store.Dir)
	if err != nil {
		return err
	}
	aside, err := datastore.Quarantine(p, cfg.Store.File, time.Now())
	if err != nil {
		return err
	}
	out := cmd.Root().Writer
	if out == nil {
		out = os.Stdout
	}
	if aside == "" {
		fmt.Fprintln(out, "nothing to reset")
		return nil
	}
	fmt.Fprintf(out, "moved %s to %s\n", cfg.Store.File, aside)
	return nil
}
