package recipeserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_recipe/internal/crew"
	"github.com/anatolykoptev/go_recipe/internal/toolreg"
	"github.com/anatolykoptev/go_recipe/internal/transcript"
)

func stubTool() *transcript.Tool {
	return transcript.NewTool(transcript.ServiceFunc(func(_ context.Context, id string, langs []string) (*transcript.Transcript, error) {
		if id == "gone" {
			return nil, &transcript.VideoUnavailableError{VideoID: id}
		}
		if id == "flaky" {
			return nil, &transcript.TransientError{VideoID: id, Op: "watch page", StatusCode: 429}
		}
		return &transcript.Transcript{VideoID: id, LanguageCode: langs[0], Segments: []transcript.Segment{
			{Text: "Bonjour"}, {Text: "le monde"},
		}}, nil
	}))
}

func TestTranscriptHandler(t *testing.T) {
	h := transcriptHandler(stubTool())

	_, out, err := h(context.Background(), nil, transcript.Request{VideoID: "E2L3bQKow3U", Languages: []string{"fr"}})
	require.NoError(t, err)
	assert.Equal(t, TranscriptOutput{VideoID: "E2L3bQKow3U", Transcript: "Bonjour le monde"}, out)

	_, _, err = h(context.Background(), nil, transcript.Request{VideoID: "gone", Languages: []string{"fr"}})
	assert.ErrorIs(t, err, transcript.ErrVideoUnavailable)
	assert.NotContains(t, err.Error(), "safe to retry")

	_, _, err = h(context.Background(), nil, transcript.Request{VideoID: "flaky", Languages: []string{"fr"}})
	assert.ErrorIs(t, err, transcript.ErrTransient)
	assert.Contains(t, err.Error(), "safe to retry")

	_, _, err = h(context.Background(), nil, transcript.Request{VideoID: "x"})
	assert.ErrorIs(t, err, transcript.ErrInvalidInput)
}

type fixedLLM struct{}

func (fixedLLM) Complete(_ context.Context, system, _ string) (string, error) {
	if strings.Contains(system, "Transcript Researcher") {
		return `{"action":"youtube_transcript","action_input":{"video_id":"E2L3bQKow3U","languages":["fr"]}}`, nil
	}
	return `{"final_answer":{"title":"Soupe","ingredients":["eau"],"steps":["Chauffer"]}}`, nil
}

func TestRecipeHandler(t *testing.T) {
	tool := stubTool()
	rt, err := toolreg.New(transcript.ToolName, transcript.ToolDescription, tool.Fetch)
	require.NoError(t, err)
	reg, err := toolreg.NewRegistry(rt)
	require.NoError(t, err)
	c, err := crew.New(fixedLLM{}, reg)
	require.NoError(t, err)

	_, out, err := recipeHandler(c)(context.Background(), nil, RecipeInput{VideoID: "E2L3bQKow3U", Languages: []string{"fr", "en"}})
	require.NoError(t, err)
	require.NotNil(t, out.Recipe)
	assert.Equal(t, "Soupe", out.Recipe.Title)
	assert.Contains(t, out.Markdown, "# Soupe")
	assert.NotEmpty(t, out.RunID)

	_, _, err = recipeHandler(c)(context.Background(), nil, RecipeInput{VideoID: "gone", Languages: []string{"fr"}})
	var runErr *crew.RunError
	assert.ErrorAs(t, err, &runErr)
}

func TestRegisterToolsOverMCP(t *testing.T) {
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "go_recipe", Version: "test"}, nil)
	require.Equal(t, 1, RegisterTools(server, Deps{Transcripts: stubTool()}))

	ct, st := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      transcript.ToolName,
		Arguments: map[string]any{"video_id": "E2L3bQKow3U", "languages": []string{"fr", "en", "it"}},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out TranscriptOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "Bonjour le monde", out.Transcript)
}
