package crew

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_recipe/internal/toolreg"
	"github.com/anatolykoptev/go_recipe/internal/transcript"
)

// scriptedLLM answers per agent role from a queue of replies.
type scriptedLLM struct {
	mu      sync.Mutex
	replies map[string][]string // role substring → replies
	prompts []string
	err     error
}

func (s *scriptedLLM) Complete(_ context.Context, system, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	for role, queue := range s.replies {
		if strings.Contains(system, role) && len(queue) > 0 {
			s.replies[role] = queue[1:]
			return queue[0], nil
		}
	}
	return "", errors.New("scriptedLLM: no reply left")
}

type countingService struct {
	calls atomic.Int32
	fn    transcript.ServiceFunc
}

func (c *countingService) Fetch(ctx context.Context, id string, langs []string) (*transcript.Transcript, error) {
	c.calls.Add(1)
	return c.fn(ctx, id, langs)
}

func frenchOnly() *countingService {
	return &countingService{fn: func(_ context.Context, id string, langs []string) (*transcript.Transcript, error) {
		for _, l := range langs {
			if l == "fr" {
				return &transcript.Transcript{VideoID: id, LanguageCode: "fr", Segments: []transcript.Segment{
					{Text: "Bonjour"}, {Text: "le monde"},
				}}, nil
			}
		}
		return nil, &transcript.NotFoundError{VideoID: id, Requested: langs}
	}}
}

func registry(t *testing.T, svc transcript.Service) *toolreg.Registry {
	t.Helper()
	tool := transcript.NewTool(svc)
	rt, err := toolreg.New(transcript.ToolName, transcript.ToolDescription, tool.Fetch)
	require.NoError(t, err)
	reg, err := toolreg.NewRegistry(rt)
	require.NoError(t, err)
	return reg
}

const recipeJSON = `{"title":"Omelette","servings":"2","ingredients":["3 eggs","salt"],"steps":["Beat the eggs","Cook"],"notes":""}`

var inputs = Inputs{VideoID: "E2L3bQKow3U", Languages: []string{"fr", "en", "it"}}

func TestKickoffFetchesTranscriptAndWritesRecipe(t *testing.T) {
	svc := frenchOnly()
	llm := &scriptedLLM{replies: map[string][]string{
		"Transcript Researcher": {`{"thought":"fetch","action":"youtube_transcript","action_input":{"video_id":"E2L3bQKow3U","languages":["fr","en","it"]}}`},
		"Recipe Writer":         {"```json\n{\"final_answer\": " + recipeJSON + "}\n```"},
	}}
	c, err := New(llm, registry(t, svc))
	require.NoError(t, err)

	res, err := c.Kickoff(context.Background(), inputs)
	require.NoError(t, err)

	require.Len(t, res.Tasks, 2)
	assert.Equal(t, "fetch_transcript_task", res.Tasks[0].Name)
	assert.Equal(t, "Bonjour le monde", res.Tasks[0].Output, "tool result is the task answer")
	assert.NotEmpty(t, res.RunID)
	require.NotNil(t, res.Recipe)
	assert.Equal(t, "Omelette", res.Recipe.Title)
	assert.Equal(t, []string{"3 eggs", "salt"}, res.Recipe.Ingredients)
	assert.Equal(t, int32(1), svc.calls.Load())

	// the recipe writer saw the transcript as context
	last := llm.prompts[len(llm.prompts)-1]
	assert.Contains(t, last, "Bonjour le monde")
}

func TestKickoffInterpolatesInputs(t *testing.T) {
	llm := &scriptedLLM{replies: map[string][]string{
		"Transcript Researcher": {`{"action":"youtube_transcript","action_input":{"video_id":"E2L3bQKow3U","languages":["fr"]}}`},
		"Recipe Writer":         {recipeJSON},
	}}
	c, err := New(llm, registry(t, frenchOnly()))
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), inputs)
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[0], "E2L3bQKow3U")
	assert.Contains(t, llm.prompts[0], `["fr","en","it"]`)
}

func TestKickoffNotFoundIsReturnedToAgent(t *testing.T) {
	svc := frenchOnly()
	llm := &scriptedLLM{replies: map[string][]string{
		"Transcript Researcher": {
			`{"action":"youtube_transcript","action_input":{"video_id":"E2L3bQKow3U","languages":["en"]}}`,
			`{"action":"youtube_transcript","action_input":"{\"video_id\":\"E2L3bQKow3U\",\"languages\":[\"fr\"]}"}`,
		},
		"Recipe Writer": {recipeJSON},
	}}
	c, err := New(llm, registry(t, svc))
	require.NoError(t, err)

	res, err := c.Kickoff(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, "Bonjour le monde", res.Tasks[0].Output)
	assert.Equal(t, int32(2), svc.calls.Load())
	assert.Contains(t, llm.prompts[1], "Observation: Error: no transcript")
}

func TestKickoffVideoUnavailableAborts(t *testing.T) {
	svc := &countingService{fn: func(_ context.Context, id string, _ []string) (*transcript.Transcript, error) {
		return nil, &transcript.VideoUnavailableError{VideoID: id, Reason: "Private video"}
	}}
	llm := &scriptedLLM{replies: map[string][]string{
		"Transcript Researcher": {`{"action":"youtube_transcript","action_input":{"video_id":"x","languages":["fr"]}}`},
	}}
	c, err := New(llm, registry(t, svc))
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), inputs)
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.NotEmpty(t, runErr.RunID)
	assert.ErrorIs(t, err, transcript.ErrVideoUnavailable)
	assert.True(t, strings.HasPrefix(err.Error(), "an error occurred while running the crew: "))
	assert.Contains(t, err.Error(), "Private video")
}

func TestKickoffTransientAborts(t *testing.T) {
	svc := &countingService{fn: func(_ context.Context, id string, _ []string) (*transcript.Transcript, error) {
		return nil, &transcript.TransientError{VideoID: id, StatusCode: 503}
	}}
	llm := &scriptedLLM{replies: map[string][]string{
		"Transcript Researcher": {`{"action":"youtube_transcript","action_input":{"video_id":"x","languages":["fr"]}}`},
	}}
	c, err := New(llm, registry(t, svc))
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), inputs)
	assert.ErrorIs(t, err, transcript.ErrTransient)
	assert.True(t, transcript.Retryable(err))
	assert.Equal(t, int32(1), svc.calls.Load(), "no retry inside the crew")
}

func TestKickoffInvalidInputsFailFast(t *testing.T) {
	svc := frenchOnly()
	llm := &scriptedLLM{}
	c, err := New(llm, registry(t, svc))
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), Inputs{VideoID: "", Languages: []string{"fr"}})
	assert.ErrorIs(t, err, transcript.ErrInvalidInput)
	_, err = c.Kickoff(context.Background(), Inputs{VideoID: "abc"})
	assert.ErrorIs(t, err, transcript.ErrInvalidInput)

	assert.Empty(t, llm.prompts)
	assert.Equal(t, int32(0), svc.calls.Load())
}

func TestKickoffMaxIterations(t *testing.T) {
	svc := frenchOnly()
	reply := `{"action":"youtube_transcript","action_input":{"video_id":"x","languages":["de"]}}`
	llm := &scriptedLLM{replies: map[string][]string{
		"Transcript Researcher": {reply, reply, reply, reply, reply},
	}}
	c, err := New(llm, registry(t, svc))
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), inputs)
	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, int32(4), svc.calls.Load())
}

func TestKickoffLLMError(t *testing.T) {
	boom := errors.New("401 unauthorized")
	c, err := New(&scriptedLLM{err: boom}, registry(t, frenchOnly()))
	require.NoError(t, err)

	_, err = c.Kickoff(context.Background(), inputs)
	assert.ErrorIs(t, err, boom)
}

func TestKickoffPlainTextFinalAnswer(t *testing.T) {
	llm := &scriptedLLM{replies: map[string][]string{
		"Transcript Researcher": {`{"action":"youtube_transcript","action_input":{"video_id":"x","languages":["fr"]}}`},
		"Recipe Writer":         {"Omelette: beat eggs, cook."},
	}}
	c, err := New(llm, registry(t, frenchOnly()))
	require.NoError(t, err)

	res, err := c.Kickoff(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, "Omelette: beat eggs, cook.", res.Final)
	assert.Nil(t, res.Recipe)
}

func TestNewRejectsMissingTool(t *testing.T) {
	empty, err := toolreg.NewRegistry()
	require.NoError(t, err)
	_, err = New(&scriptedLLM{}, empty)
	assert.ErrorIs(t, err, toolreg.ErrUnknownTool)

	_, err = New(&scriptedLLM{}, nil)
	assert.Error(t, err)
}

func TestWithMaxRPMCancelsOnContext(t *testing.T) {
	llm := &scriptedLLM{replies: map[string][]string{
		"Transcript Researcher": {`{"action":"youtube_transcript","action_input":{"video_id":"x","languages":["fr"]}}`},
		"Recipe Writer":         {recipeJSON},
	}}
	c, err := New(llm, registry(t, frenchOnly()), WithMaxRPM(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Kickoff(ctx, inputs)
	assert.ErrorIs(t, err, context.Canceled)
}
