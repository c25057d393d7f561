package mcpserver

// RecipeFormatContract describes the Markdown recipe format that LLM
// consumers should follow when creating recipes.
const RecipeFormatContract = `# recipebox Recipe Format Contract

Recipes passed to create_recipe MUST follow this structure.

## Structure

` + "```" + `markdown
---
name: Human-readable recipe name    # REQUIRED unless a "# Name" heading follows
---

# Human-readable recipe name

## Ingredients

- <quantity> [unit] <ingredient name>

## Steps

1. First instruction
2. Second instruction
` + "```" + `

## Rules

1. **A name is required.** It comes from the frontmatter ` + "`" + `name` + "`" + ` field or,
   when that is missing, from the first ` + "`" + `# ` + "`" + ` heading.
2. **Ingredients** are bullet lines under ` + "`" + `## Ingredients` + "`" + `. Each starts with a
   non-negative quantity: a decimal (` + "`" + `1.5` + "`" + `) or a fraction (` + "`" + `1/2` + "`" + `).
3. **Units** are optional. Known units: unit, gram, kilogram, milliliter, liter,
   teaspoon, tablespoon, cup, ounce, pound, pinch. A plural "s" is accepted.
   Without a known unit the ingredient is counted in plain units (` + "`" + `- 2 eggs` + "`" + `).
4. **Steps** are numbered or bullet lines under ` + "`" + `## Steps` + "`" + `, kept in order.
5. Other lines and sections are ignored.
6. Do not set ` + "`" + `id` + "`" + `; ids are assigned on import.
7. **Encoding** is UTF-8.

## Example

` + "```" + `markdown
---
name: Tomato soup
---

# Tomato soup

## Ingredients

- 800 gram tomatoes
- 1 cup water
- 1/2 teaspoon salt
- 1 onion

## Steps

1. Chop the onion.
2. Simmer everything for 20 minutes.
3. Blend and season.
` + "```" + `
`
