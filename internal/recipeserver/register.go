// Package recipeserver exposes the transcript tool and the recipe crew as MCP tools.
package recipeserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_recipe/internal/crew"
	"github.com/anatolykoptev/go_recipe/internal/transcript"
)

// Deps are the components behind the tools. Crew may be nil when no LLM is
// configured; recipe_from_youtube is then not registered.
type Deps struct {
	Transcripts *transcript.Tool
	Crew        *crew.Crew
}

// TranscriptOutput is the youtube_transcript result.
type TranscriptOutput struct {
	VideoID    string `json:"video_id"`
	Transcript string `json:"transcript"`
}

// RecipeInput is the recipe_from_youtube input.
type RecipeInput struct {
	VideoID   string   `json:"video_id" jsonschema:"YouTube video ID of a cooking video"`
	Languages []string `json:"languages" jsonschema:"Transcript language codes in priority order (e.g. [fr en it])"`
}

// RecipeOutput is the recipe_from_youtube result.
type RecipeOutput struct {
	RunID    string       `json:"run_id"`
	Recipe   *crew.Recipe `json:"recipe,omitempty"`
	Markdown string       `json:"markdown"`
}

// RegisterTools registers the tools available for d on server and returns their count.
func RegisterTools(server *mcp.Server, d Deps) int {
	n := 0
	if d.Transcripts != nil {
		registerTranscript(server, d.Transcripts)
		n++
	}
	if d.Crew != nil {
		registerRecipe(server, d.Crew)
		n++
	}
	return n
}

func registerTranscript(server *mcp.Server, tool *transcript.Tool) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        transcript.ToolName,
		Description: transcript.ToolDescription,
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, transcriptHandler(tool))
}

func transcriptHandler(tool *transcript.Tool) func(context.Context, *mcp.CallToolRequest, transcript.Request) (*mcp.CallToolResult, TranscriptOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input transcript.Request) (*mcp.CallToolResult, TranscriptOutput, error) {
		text, err := tool.Fetch(ctx, input)
		if err != nil {
			return nil, TranscriptOutput{}, retryHint(err)
		}
		return nil, TranscriptOutput{VideoID: input.VideoID, Transcript: text}, nil
	}
}

func registerRecipe(server *mcp.Server, c *crew.Crew) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "recipe_from_youtube",
		Description: "Turn a YouTube cooking video into a recipe. Fetches the video transcript in the first available language of the given list and extracts title, servings, ingredients and steps. Returns structured JSON plus a Markdown rendering.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, recipeHandler(c))
}

func recipeHandler(c *crew.Crew) func(context.Context, *mcp.CallToolRequest, RecipeInput) (*mcp.CallToolResult, RecipeOutput, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RecipeInput) (*mcp.CallToolResult, RecipeOutput, error) {
		res, err := c.Kickoff(ctx, crew.Inputs{VideoID: input.VideoID, Languages: input.Languages})
		if err != nil {
			var runErr *crew.RunError
			if errors.As(err, &runErr) {
				slog.Warn("recipe_from_youtube failed", slog.String("run_id", runErr.RunID), slog.Any("error", runErr.Err))
			}
			return nil, RecipeOutput{}, retryHint(err)
		}
		out := RecipeOutput{RunID: res.RunID, Recipe: res.Recipe, Markdown: res.Final}
		if res.Recipe != nil {
			out.Markdown = res.Recipe.Markdown()
		}
		return nil, out, nil
	}
}

// retryHint tells MCP clients which failures are worth repeating as is.
func retryHint(err error) error {
	if transcript.Retryable(err) {
		return fmt.Errorf("%w (temporary failure, safe to retry)", err)
	}
	return err
}
