package crew

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_recipe/internal/engine"
)

// Recipe is the structured answer of the recipe writer.
type Recipe struct {
	Title       string   `json:"title"`
	Servings    string   `json:"servings,omitempty"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	Notes       string   `json:"notes,omitempty"`
}

// ParseRecipe decodes a recipe JSON answer. It returns nil when s is not a
// JSON object with a title and at least one ingredient or step.
func ParseRecipe(s string) *Recipe {
	var r Recipe
	if err := json.Unmarshal([]byte(engine.StripFences(s)), &r); err != nil {
		return nil
	}
	if strings.TrimSpace(r.Title) == "" || len(r.Ingredients)+len(r.Steps) == 0 {
		return nil
	}
	return &r
}

// Markdown renders the recipe for humans.
func (r *Recipe) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", r.Title)
	if r.Servings != "" {
		fmt.Fprintf(&sb, "\n*Servings: %s*\n", r.Servings)
	}
	if len(r.Ingredients) > 0 {
		sb.WriteString("\n## Ingredients\n\n")
		for _, ing := range r.Ingredients {
			fmt.Fprintf(&sb, "- %s\n", ing)
		}
	}
	if len(r.Steps) > 0 {
		sb.WriteString("\n## Steps\n\n")
		for i, st := range r.Steps {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, st)
		}
	}
	if r.Notes != "" {
		fmt.Fprintf(&sb, "\n## Notes\n\n%s\n", r.Notes)
	}
	return sb.String()
}
