// Package crew runs a sequence of LLM agents over a shared tool registry.
// The recipe crew fetches a YouTube transcript and turns it into a recipe.
package crew

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_recipe/internal/engine"
	"github.com/anatolykoptev/go_recipe/internal/toolreg"
	"github.com/anatolykoptev/go_recipe/internal/transcript"
)

// Completer is the LLM chat call agents use. engine.LLM satisfies it.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Inputs are the run inputs interpolated into agent and task text.
type Inputs struct {
	VideoID   string   `json:"video_id"`
	Languages []string `json:"languages"`
}

func (in Inputs) vars() map[string]string {
	langs, _ := json.Marshal(in.Languages)
	return map[string]string{
		"video_id":  in.VideoID,
		"languages": string(langs),
	}
}

// TaskOutput is one finished task.
type TaskOutput struct {
	Name   string `json:"name"`
	Agent  string `json:"agent"`
	Output string `json:"output"`
}

// Result is a finished run. Recipe is nil when the last answer is not
// a recipe JSON object.
type Result struct {
	RunID  string       `json:"run_id"`
	Tasks  []TaskOutput `json:"tasks"`
	Final  string       `json:"final"`
	Recipe *Recipe      `json:"recipe,omitempty"`
}

// RunError wraps any failure of a run, keeping the original cause.
type RunError struct {
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return "an error occurred while running the crew: " + e.Err.Error()
}

func (e *RunError) Unwrap() error { return e.Err }

// Crew is a configured, reusable crew. Kickoff may be called concurrently.
type Crew struct {
	def             *Definition
	llm             Completer
	tools           *toolreg.Registry
	limiter         *rate.Limiter // nil = unlimited
	maxContextRunes int
	agents          map[string]*agent
}

// Option configures a Crew.
type Option func(*Crew)

// WithDefinition replaces the embedded recipe crew.
func WithDefinition(d *Definition) Option {
	return func(c *Crew) { c.def = d }
}

// WithMaxRPM caps LLM requests per minute across all agents. 0 disables.
func WithMaxRPM(n int) Option {
	return func(c *Crew) {
		if n > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

// WithMaxContextRunes caps how much prior task output is passed to each task.
func WithMaxContextRunes(n int) Option {
	return func(c *Crew) { c.maxContextRunes = n }
}

// New builds a crew. Every tool referenced by an agent must be in tools.
func New(llm Completer, tools *toolreg.Registry, opts ...Option) (*Crew, error) {
	c := &Crew{llm: llm, tools: tools, maxContextRunes: 60000}
	for _, o := range opts {
		o(c)
	}
	if c.def == nil {
		d, err := DefaultDefinition()
		if err != nil {
			return nil, err
		}
		c.def = d
	}

	c.agents = make(map[string]*agent, len(c.def.Agents))
	for name, cfg := range c.def.Agents {
		a := &agent{name: name, cfg: cfg, llm: llm, wait: c.wait}
		if len(cfg.Tools) > 0 {
			if tools == nil {
				return nil, fmt.Errorf("agent %q needs tools but no registry was given", name)
			}
			sub, err := tools.Subset(cfg.Tools...)
			if err != nil {
				return nil, fmt.Errorf("agent %q: %w", name, err)
			}
			a.tools = sub
		}
		c.agents[name] = a
	}
	return c, nil
}

func (c *Crew) wait(ctx context.Context) error {
	if c.limiter == nil {
		return ctx.Err()
	}
	return c.limiter.Wait(ctx)
}

// Kickoff runs every task in order. Each task sees the outputs of the
// previous ones as context. Failures come back as *RunError.
func (c *Crew) Kickoff(ctx context.Context, in Inputs) (*Result, error) {
	runID := uuid.NewString()
	engine.IncrCrewRuns()
	res, err := c.kickoff(ctx, runID, in)
	if err != nil {
		engine.IncrCrewFailures()
		slog.Error("crew: run failed",
			slog.String("run_id", runID),
			slog.Bool("retryable", transcript.Retryable(err)),
			slog.Any("error", err))
		return nil, &RunError{RunID: runID, Err: err}
	}
	return res, nil
}

func (c *Crew) kickoff(ctx context.Context, runID string, in Inputs) (*Result, error) {
	req := transcript.Request{VideoID: in.VideoID, Languages: in.Languages}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	vars := in.vars()
	res := &Result{RunID: runID}

	slog.Info("crew: kickoff",
		slog.String("run_id", runID),
		slog.String("video_id", in.VideoID),
		slog.Any("languages", in.Languages),
		slog.Int("tasks", len(c.def.Tasks)))

	for _, task := range c.def.Tasks {
		a := c.agents[task.Agent]
		var out string
		err := engine.TrackOperation(ctx, "task "+task.Name, 30*time.Second, func(ctx context.Context) error {
			var err error
			out, err = a.run(ctx, runID, task, vars, c.priorContext(res.Tasks))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", task.Name, err)
		}
		res.Tasks = append(res.Tasks, TaskOutput{Name: task.Name, Agent: task.Agent, Output: out})
	}

	res.Final = res.Tasks[len(res.Tasks)-1].Output
	res.Recipe = ParseRecipe(res.Final)
	slog.Info("crew: finished", slog.String("run_id", runID), slog.Bool("recipe", res.Recipe != nil))
	return res, nil
}

func (c *Crew) priorContext(done []TaskOutput) string {
	if len(done) == 0 {
		return ""
	}
	parts := make([]string, len(done))
	for i, t := range done {
		parts[i] = t.Output
	}
	joined := strings.Join(parts, "\n\n----------\n\n")
	if c.maxContextRunes > 0 {
		joined = engine.TruncateRunes(joined, c.maxContextRunes, "...")
	}
	return joined
}
