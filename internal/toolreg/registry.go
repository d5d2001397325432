// Package toolreg is the lookup table agents consult to call tools by name.
// Each tool has a typed input, a JSON schema derived from that type and a
// plain string result.
package toolreg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/anatolykoptev/go_recipe/internal/engine"
)

var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrDuplicateTool = errors.New("tool already registered")
	ErrInvalidArgs   = errors.New("invalid tool arguments")
)

// Tool is one capability an agent can invoke.
type Tool interface {
	Name() string
	Description() string
	Schema() *jsonschema.Schema
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// ArgsError reports arguments that could not be decoded into the tool's input type.
type ArgsError struct {
	Tool string
	Err  error
}

func (e *ArgsError) Error() string {
	return fmt.Sprintf("tool %q: invalid arguments: %v", e.Tool, e.Err)
}

func (e *ArgsError) Is(target error) bool { return target == ErrInvalidArgs }
func (e *ArgsError) Unwrap() error        { return e.Err }

type typedTool[In any] struct {
	name        string
	description string
	schema      *jsonschema.Schema
	fn          func(context.Context, In) (string, error)
}

// New wraps fn as a Tool. The input schema is inferred from In's json and
// jsonschema struct tags.
func New[In any](name, description string, fn func(context.Context, In) (string, error)) (Tool, error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("tool %q schema: %w", name, err)
	}
	return &typedTool[In]{name: name, description: description, schema: schema, fn: fn}, nil
}

func (t *typedTool[In]) Name() string               { return t.name }
func (t *typedTool[In]) Description() string        { return t.description }
func (t *typedTool[In]) Schema() *jsonschema.Schema { return t.schema }

func (t *typedTool[In]) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in In
	if len(bytes.TrimSpace(args)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(args))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return "", &ArgsError{Tool: t.name, Err: err}
		}
	}
	return t.fn(ctx, in)
}

// Registry maps tool names to tools. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry returns a registry holding tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t. Names are unique.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Call dispatches args to the named tool.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q (available: %s)", ErrUnknownTool, name, strings.Join(r.Names(), ", "))
	}
	engine.IncrToolCalls()
	return t.Call(ctx, args)
}

// Tools returns tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n])
	}
	return out
}

// Names returns registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Subset returns a registry with only the named tools, in the given order.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := &Registry{tools: make(map[string]Tool)}
	for _, n := range names {
		t, ok := r.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTool, n)
		}
		if err := sub.Register(t); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// Describe renders tools for an agent prompt: name, description and the
// JSON schema of the arguments.
func (r *Registry) Describe() string {
	var sb strings.Builder
	for _, t := range r.Tools() {
		schema, err := json.Marshal(t.Schema())
		if err != nil {
			schema = []byte("{}")
		}
		fmt.Fprintf(&sb, "Tool Name: %s\nTool Description: %s\nTool Arguments: %s\n\n", t.Name(), t.Description(), schema)
	}
	return strings.TrimSpace(sb.String())
}
