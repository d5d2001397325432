package crew

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_recipe/internal/engine"
	"github.com/anatolykoptev/go_recipe/internal/toolreg"
	"github.com/anatolykoptev/go_recipe/internal/transcript"
)

// ErrMaxIterations is returned when an agent exhausts max_iter without a final answer.
var ErrMaxIterations = errors.New("agent reached max iterations without a final answer")

const agentSystemPrompt = `You are %s.
%s
Your personal goal is: %s`

const toolInstructions = `

You have access to the following tools:

%s

To use a tool, reply with ONLY a JSON object:
{"thought": "what you are doing", "action": "<tool name>", "action_input": {<arguments matching the tool schema>}}

When you know the final answer, reply with ONLY a JSON object:
{"thought": "I now know the final answer", "final_answer": <your complete answer>}`

const noToolInstructions = `

Reply with your final answer only, without any preamble.`

// step is one parsed agent reply.
type step struct {
	Thought     string          `json:"thought"`
	Action      string          `json:"action"`
	ActionInput json.RawMessage `json:"action_input"`
	FinalAnswer json.RawMessage `json:"final_answer"`
}

// agent executes a single task: it alternates LLM turns and tool calls until
// the model gives a final answer.
type agent struct {
	name  string
	cfg   AgentConfig
	llm   Completer
	tools *toolreg.Registry // tools this agent may call; nil when none
	wait  func(context.Context) error
}

func (a *agent) systemPrompt(inputs map[string]string) string {
	p := fmt.Sprintf(agentSystemPrompt,
		interpolate(a.cfg.Role, inputs),
		strings.TrimSpace(interpolate(a.cfg.Backstory, inputs)),
		interpolate(a.cfg.Goal, inputs))
	if a.tools != nil {
		return p + fmt.Sprintf(toolInstructions, a.tools.Describe())
	}
	return p + noToolInstructions
}

func taskPrompt(task TaskConfig, inputs map[string]string, prior string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current Task: %s\n\n", strings.TrimSpace(interpolate(task.Description, inputs)))
	if task.ExpectedOutput != "" {
		fmt.Fprintf(&sb, "This is the expected criteria for your final answer: %s\n", strings.TrimSpace(interpolate(task.ExpectedOutput, inputs)))
	}
	if prior != "" {
		fmt.Fprintf(&sb, "\nThis is the context you're working with:\n%s\n", prior)
	}
	return sb.String()
}

// run executes task and returns the final answer text.
func (a *agent) run(ctx context.Context, runID string, task TaskConfig, inputs map[string]string, prior string) (string, error) {
	system := a.systemPrompt(inputs)
	base := taskPrompt(task, inputs, prior)
	var scratch strings.Builder

	for iter := 1; iter <= a.cfg.MaxIter; iter++ {
		if err := a.wait(ctx); err != nil {
			return "", err
		}
		prompt := base
		if scratch.Len() > 0 {
			prompt += "\n" + scratch.String()
		}
		raw, err := a.llm.Complete(ctx, system, prompt)
		if err != nil {
			return "", fmt.Errorf("agent %s: llm: %w", a.name, err)
		}
		raw = engine.StripFences(raw)

		s := parseStep(raw)
		if s.Action == "" || a.tools == nil {
			answer := finalAnswer(s, raw)
			slog.Info("crew: task answered",
				slog.String("run_id", runID),
				slog.String("task", task.Name),
				slog.Int("iterations", iter),
				slog.String("answer", engine.Preview(answer)))
			return answer, nil
		}

		slog.Info("crew: tool call",
			slog.String("run_id", runID),
			slog.String("agent", a.name),
			slog.String("tool", s.Action),
			slog.String("args", string(s.ActionInput)))

		out, err := a.tools.Call(ctx, s.Action, toolArgs(s.ActionInput))
		if err != nil {
			if !recoverable(err) {
				return "", fmt.Errorf("agent %s: tool %s: %w", a.name, s.Action, err)
			}
			slog.Warn("crew: tool error returned to agent",
				slog.String("run_id", runID),
				slog.String("tool", s.Action),
				slog.Any("error", err))
			out = "Error: " + err.Error()
		} else if task.ToolResultAsAnswer {
			return out, nil
		}

		fmt.Fprintf(&scratch, "Thought: %s\nAction: %s\nAction Input: %s\nObservation: %s\n",
			s.Thought, s.Action, bytes.TrimSpace(s.ActionInput), out)
	}
	return "", fmt.Errorf("agent %s: %w (%d)", a.name, ErrMaxIterations, a.cfg.MaxIter)
}

// recoverable reports tool errors the agent can act on by changing its
// arguments. Unavailable videos and transient service failures end the run.
func recoverable(err error) bool {
	return errors.Is(err, transcript.ErrNotFound) ||
		errors.Is(err, transcript.ErrInvalidInput) ||
		errors.Is(err, toolreg.ErrInvalidArgs) ||
		errors.Is(err, toolreg.ErrUnknownTool)
}

// parseStep decodes a JSON reply. Non-JSON replies yield a zero step.
func parseStep(raw string) step {
	var s step
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return step{}
	}
	return s
}

// finalAnswer extracts the answer: the final_answer field when present
// (a JSON string is unquoted, other JSON kept verbatim), else the raw reply.
func finalAnswer(s step, raw string) string {
	fa := bytes.TrimSpace(s.FinalAnswer)
	if len(fa) == 0 || bytes.Equal(fa, []byte("null")) {
		return strings.TrimSpace(raw)
	}
	var str string
	if err := json.Unmarshal(fa, &str); err == nil {
		return strings.TrimSpace(str)
	}
	return string(fa)
}

// toolArgs accepts action_input as an object or as a JSON-encoded string.
func toolArgs(in json.RawMessage) json.RawMessage {
	in = bytes.TrimSpace(in)
	if len(in) > 0 && in[0] == '"' {
		var s string
		if err := json.Unmarshal(in, &s); err == nil {
			return json.RawMessage(s)
		}
	}
	return in
}
