package crew

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStepAndFinalAnswer(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		action string
		answer string
	}{
		{"tool call", `{"action":"t","action_input":{}}`, "t", ""},
		{"string answer", `{"final_answer":"  done "}`, "", "done"},
		{"object answer", `{"final_answer":{"title":"x"}}`, "", `{"title":"x"}`},
		{"plain text", "just text", "", "just text"},
		{"bare object", `{"title":"x"}`, "", `{"title":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parseStep(tt.raw)
			assert.Equal(t, tt.action, s.Action)
			if tt.action == "" {
				assert.Equal(t, tt.answer, finalAnswer(s, tt.raw))
			}
		})
	}
}

func TestToolArgs(t *testing.T) {
	assert.JSONEq(t, `{"a":1}`, string(toolArgs(json.RawMessage(`{"a":1}`))))
	assert.JSONEq(t, `{"a":1}`, string(toolArgs(json.RawMessage(`"{\"a\":1}"`))))
	assert.Empty(t, toolArgs(nil))
}

func TestRecipeMarkdown(t *testing.T) {
	r := ParseRecipe("```json\n" + recipeJSON + "\n```")
	if assert.NotNil(t, r) {
		md := r.Markdown()
		assert.Contains(t, md, "# Omelette")
		assert.Contains(t, md, "*Servings: 2*")
		assert.Contains(t, md, "- 3 eggs")
		assert.Contains(t, md, "2. Cook")
		assert.NotContains(t, md, "## Notes")
	}
	assert.Nil(t, ParseRecipe(`{"title":""}`))
	assert.Nil(t, ParseRecipe("not json"))
}
