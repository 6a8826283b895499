package travel

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/travelmesh/agent"
	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/logging"
	"github.com/hupe1980/travelmesh/model"
	"github.com/hupe1980/travelmesh/tool"
)

//go:embed agents.yaml
var defaultAgentsYAML []byte

// AgentSpec declares one agent of the tree.
type AgentSpec struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Instruction     string   `yaml:"instruction"`
	Temperature     *float64 `yaml:"temperature,omitempty"`
	MaxOutputTokens *int     `yaml:"max_output_tokens,omitempty"`
	Tools           []string `yaml:"tools,omitempty"`
	SubAgents       []string `yaml:"sub_agents,omitempty"`
	// Logging attaches the ModelLogger callbacks.
	Logging bool `yaml:"logging"`
}

// TreeSpec declares the whole agent tree.
type TreeSpec struct {
	Model  string      `yaml:"model"`
	Root   string      `yaml:"root"`
	Agents []AgentSpec `yaml:"agents"`
}

// ParseTreeSpec decodes and checks a tree declaration.
func ParseTreeSpec(data []byte) (*TreeSpec, error) {
	var spec TreeSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse agent tree: %w", err)
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return &spec, nil
}

// DefaultTreeSpec returns the embedded travel assistant tree.
func DefaultTreeSpec() *TreeSpec {
	spec, err := ParseTreeSpec(defaultAgentsYAML)
	if err != nil {
		panic(err)
	}
	return spec
}

// Validate checks names, references and tools of the declaration.
func (s *TreeSpec) Validate() error {
	if s.Root == "" {
		return fmt.Errorf("agent tree: root is required")
	}

	names := make(map[string]bool, len(s.Agents))
	for _, a := range s.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent tree: agent without name")
		}
		if names[a.Name] {
			return fmt.Errorf("agent tree: duplicate agent %q", a.Name)
		}
		names[a.Name] = true

		for _, t := range a.Tools {
			if _, ok := toolFactories[t]; !ok {
				return fmt.Errorf("agent tree: agent %q uses unknown tool %q", a.Name, t)
			}
		}
	}

	if !names[s.Root] {
		return fmt.Errorf("agent tree: root %q is not declared", s.Root)
	}

	for _, a := range s.Agents {
		for _, child := range a.SubAgents {
			if !names[child] {
				return fmt.Errorf("agent tree: agent %q has unknown sub-agent %q", a.Name, child)
			}
		}
	}

	return nil
}

// AssistantOptions configures NewAssistant.
type AssistantOptions struct {
	// Spec is the tree to build. Defaults to the embedded agents.yaml.
	Spec *TreeSpec
	// Sink receives the model interaction log. Nil disables the callbacks.
	Sink logging.Sink
	// EnableStreaming streams partial model output as events.
	EnableStreaming bool
	// MaxHistoryMessages caps the history sent per model call.
	MaxHistoryMessages int
}

// NewAssistant builds the agent tree on llm and returns its root.
func NewAssistant(llm model.Model, optFns ...func(o *AssistantOptions)) (*agent.ModelAgent, error) {
	opts := AssistantOptions{MaxHistoryMessages: 40}
	for _, fn := range optFns {
		fn(&opts)
	}

	spec := opts.Spec
	if spec == nil {
		spec = DefaultTreeSpec()
	} else if err := spec.Validate(); err != nil {
		return nil, err
	}

	var logger *ModelLogger
	if opts.Sink != nil {
		logger = NewModelLogger(opts.Sink)
	}

	byName := make(map[string]AgentSpec, len(spec.Agents))
	for _, a := range spec.Agents {
		byName[a.Name] = a
	}

	built := map[string]*agent.ModelAgent{}
	building := map[string]bool{}

	var build func(name string) (*agent.ModelAgent, error)
	build = func(name string) (*agent.ModelAgent, error) {
		if a, ok := built[name]; ok {
			return nil, fmt.Errorf("agent tree: agent %q is attached twice", a.Name())
		}
		if building[name] {
			return nil, fmt.Errorf("agent tree: cycle through %q", name)
		}
		building[name] = true

		as := byName[name]

		children := make([]core.Agent, 0, len(as.SubAgents))
		for _, childName := range as.SubAgents {
			child, err := build(childName)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}

		tools := make([]tool.Tool, 0, len(as.Tools))
		for _, t := range as.Tools {
			tl, err := NewTool(t)
			if err != nil {
				return nil, err
			}
			tools = append(tools, tl)
		}

		a, err := agent.NewModelAgent(as.Name, llm,
			agent.WithInstruction(as.Instruction),
			agent.WithTools(tools...),
			agent.WithSubAgents(children...),
			func(o *agent.ModelAgentOptions) {
				o.Description = as.Description
				o.Temperature = as.Temperature
				o.MaxOutputTokens = as.MaxOutputTokens
				o.EnableStreaming = opts.EnableStreaming
				o.MaxHistoryMessages = opts.MaxHistoryMessages
				// attraction appends are read-modify-write
				o.MaxParallelTools = 1
				if as.Logging && logger != nil {
					o.BeforeModel = append(o.BeforeModel, logger.BeforeModel)
					o.AfterModel = append(o.AfterModel, logger.AfterModel)
				}
			},
		)
		if err != nil {
			return nil, err
		}

		built[name] = a

		return a, nil
	}

	return build(spec.Root)
}
