// Package mdrecipe converts recipes to and from Markdown with YAML
// frontmatter.
//
//	---
//	id: 5f0c...
//	name: Soup
//	---
//	# Soup
//
//	## Ingredients
//
//	- 1 cup water
//
//	## Steps
//
//	1. Boil
package mdrecipe

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/recipes"
)

const (
	ingredientsHeading = "Ingredients"
	stepsHeading       = "Steps"
)

var (
	bulletRe   = regexp.MustCompile(`^[-*+]\s+(.*)$`)
	numberedRe = regexp.MustCompile(`^\d+[.)]\s+(.*)$`)
	slugRe     = regexp.MustCompile(`[^a-z0-9]+`)
)

type frontmatter struct {
	ID   string `yaml:"id,omitempty"`
	Name string `yaml:"name"`
}

// Format renders r as Markdown.
func Format(r recipes.Recipe) ([]byte, error) {
	fm, err := yaml.Marshal(frontmatter{ID: r.ID, Name: r.Name})
	if err != nil {
		return nil, fmt.Errorf("mdrecipe: frontmatter: %w", err)
	}
	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n")
	fmt.Fprintf(&b, "# %s\n\n## %s\n\n", r.Name, ingredientsHeading)
	for _, ing := range r.Ingredients {
		fmt.Fprintf(&b, "- %s\n", formatIngredient(ing))
	}
	fmt.Fprintf(&b, "\n## %s\n\n", stepsHeading)
	for i, st := range r.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, oneLine(st.Text))
	}
	return b.Bytes(), nil
}

func formatIngredient(ing recipes.Ingredient) string {
	q := strconv.FormatFloat(float64(ing.Quantity), 'f', -1, 32)
	name := oneLine(ing.Name)
	if ing.Unit == recipes.UnitUnit && !startsWithUnit(name) {
		return q + " " + name
	}
	return q + " " + strings.ToLower(ing.Unit.String()) + " " + name
}

func startsWithUnit(name string) bool {
	first, _, _ := strings.Cut(name, " ")
	_, ok := parseUnit(first)
	return ok
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FileName returns a stable file name for the recipe at index.
func FileName(index int, r recipes.Recipe) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(r.Name), "-"), "-")
	if slug == "" {
		slug = "recipe"
	}
	return fmt.Sprintf("%02d-%s.md", index+1, slug)
}

// Parse reads a recipe from Markdown. Item ids are left empty; the recipe id
// comes from frontmatter when present. Malformed ingredient lines are
// reported with their line number and wrap apperr.ErrInvalidInput.
func Parse(data []byte) (recipes.Recipe, error) {
	fm, body, offset, err := splitFrontmatter(data)
	if err != nil {
		return recipes.Recipe{}, err
	}
	r := recipes.Recipe{
		ID:          fm.ID,
		Name:        strings.TrimSpace(fm.Name),
		Ingredients: []recipes.Ingredient{},
		Steps:       []recipes.Step{},
	}

	section := ""
	sc := bufio.NewScanner(strings.NewReader(body))
	line := offset
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "":
			continue
		case strings.HasPrefix(text, "## "):
			section = strings.ToLower(strings.TrimSpace(text[3:]))
			continue
		case strings.HasPrefix(text, "# "):
			if r.Name == "" {
				r.Name = strings.TrimSpace(text[2:])
			}
			continue
		}

		switch section {
		case strings.ToLower(ingredientsHeading):
			m := bulletRe.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			ing, err := parseIngredient(m[1])
			if err != nil {
				return recipes.Recipe{}, fmt.Errorf("mdrecipe: line %d: %w: %v", line, apperr.ErrInvalidInput, err)
			}
			r.Ingredients = append(r.Ingredients, ing)
		case strings.ToLower(stepsHeading):
			m := numberedRe.FindStringSubmatch(text)
			if m == nil {
				m = bulletRe.FindStringSubmatch(text)
			}
			if m == nil {
				continue
			}
			r.Steps = append(r.Steps, recipes.Step{Text: strings.TrimSpace(m[1])})
		}
	}
	if err := sc.Err(); err != nil {
		return recipes.Recipe{}, fmt.Errorf("mdrecipe: scan: %w", err)
	}
	if r.Name == "" {
		return recipes.Recipe{}, fmt.Errorf("mdrecipe: %w: recipe has no name", apperr.ErrInvalidInput)
	}
	return r, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. offset is the number of lines before the body.
func splitFrontmatter(data []byte) (frontmatter, string, int, error) {
	const delim = "---"
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")
	skipped := bytes.Count(data[:len(data)-len(trimmed)], []byte("\n"))

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data), 0, nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter: everything is body.
		return fm, string(data), 0, nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return fm, "", 0, fmt.Errorf("mdrecipe: %w: frontmatter: %v", apperr.ErrInvalidInput, err)
	}
	offset := skipped + bytes.Count(trimmed[:len(trimmed)-len(afterDelim)], []byte("\n"))
	return fm, string(afterDelim), offset, nil
}

// parseIngredient reads "<quantity> [unit] <name>".
func parseIngredient(s string) (recipes.Ingredient, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return recipes.Ingredient{}, fmt.Errorf("%q: want \"<quantity> [unit] <name>\"", s)
	}
	q, err := parseQuantity(fields[0])
	if err != nil {
		return recipes.Ingredient{}, err
	}
	ing := recipes.Ingredient{Quantity: q, Unit: recipes.UnitUnit}
	rest := fields[1:]
	if u, ok := parseUnit(rest[0]); ok && len(rest) > 1 {
		ing.Unit = u
		rest = rest[1:]
	}
	ing.Name = strings.Join(rest, " ")
	return ing, nil
}

// parseQuantity accepts decimals ("1.5") and simple fractions ("1/2").
func parseQuantity(s string) (float32, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 32)
		d, err2 := strconv.ParseFloat(den, 32)
		if err1 != nil || err2 != nil || d == 0 || n < 0 || d < 0 {
			return 0, fmt.Errorf("quantity %q is not a number", s)
		}
		return float32(n / d), nil
	}
	q, err := strconv.ParseFloat(s, 32)
	if err != nil || q < 0 {
		return 0, fmt.Errorf("quantity %q is not a number", s)
	}
	return float32(q), nil
}

// parseUnit matches a unit name, tolerating a plural "s".
func parseUnit(s string) (recipes.Unit, bool) {
	if u, err := recipes.ParseUnit(s); err == nil {
		return u, true
	}
	if strings.HasSuffix(strings.ToLower(s), "s") {
		if u, err := recipes.ParseUnit(s[:len(s)-1]); err == nil {
			return u, true
		}
	}
	return 0, false
}
