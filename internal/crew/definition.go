package crew

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed crew.yaml
var defaultDefinition []byte

// AgentConfig describes one agent.
type AgentConfig struct {
	Role      string   `yaml:"role"`
	Goal      string   `yaml:"goal"`
	Backstory string   `yaml:"backstory"`
	Tools     []string `yaml:"tools"`
	MaxIter   int      `yaml:"max_iter"`
}

// TaskConfig describes one task. Tasks run in file order.
type TaskConfig struct {
	Name           string `yaml:"name"`
	Agent          string `yaml:"agent"`
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
	// ToolResultAsAnswer makes the first successful tool result the task
	// output verbatim.
	ToolResultAsAnswer bool `yaml:"tool_result_as_answer"`
}

// Definition is a crew: its agents and the sequence of tasks.
type Definition struct {
	Agents map[string]AgentConfig `yaml:"agents"`
	Tasks  []TaskConfig           `yaml:"tasks"`
}

const defaultMaxIter = 5

// ParseDefinition decodes and checks a YAML crew definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse crew definition: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	for name, a := range d.Agents {
		if a.MaxIter <= 0 {
			a.MaxIter = defaultMaxIter
			d.Agents[name] = a
		}
	}
	return &d, nil
}

// DefaultDefinition returns the embedded recipe crew.
func DefaultDefinition() (*Definition, error) {
	return ParseDefinition(defaultDefinition)
}

func (d *Definition) validate() error {
	if len(d.Tasks) == 0 {
		return errors.New("crew definition has no tasks")
	}
	seen := make(map[string]bool, len(d.Tasks))
	for i, t := range d.Tasks {
		if t.Name == "" {
			return fmt.Errorf("task #%d has no name", i+1)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate task %q", t.Name)
		}
		seen[t.Name] = true
		if _, ok := d.Agents[t.Agent]; !ok {
			return fmt.Errorf("task %q references unknown agent %q", t.Name, t.Agent)
		}
		if strings.TrimSpace(t.Description) == "" {
			return fmt.Errorf("task %q has no description", t.Name)
		}
	}
	return nil
}

// interpolate replaces {key} placeholders with inputs[key]. Unknown
// placeholders are left as is.
func interpolate(s string, inputs map[string]string) string {
	if len(inputs) == 0 {
		return s
	}
	pairs := make([]string, 0, len(inputs)*2)
	for k, v := range inputs {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
