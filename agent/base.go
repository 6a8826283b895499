package agent

import (
	"fmt"
	"sync"

	"github.com/hupe1980/travelmesh/core"
)

// BaseAgent bundles identity and hierarchy management. Embed it in concrete
// agent implementations, supply a Run method and call bind from the
// constructor so parent links point at the concrete agent. All exported
// methods are goroutine-safe.
type BaseAgent struct {
	name        string
	description string

	mu        sync.RWMutex
	self      core.Agent
	parent    core.Agent
	subAgents []core.Agent
}

// NewBaseAgent constructs a BaseAgent with a generated description.
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

func (b *BaseAgent) bind(self core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.self = self
}

// agent returns the concrete agent embedding b.
func (b *BaseAgent) agent() core.Agent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.self != nil {
		return b.self
	}
	return &agentWrapper{b}
}

// Name returns the agent name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns what the agent is for. Other agents see it when
// deciding whether to transfer.
func (b *BaseAgent) Description() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.description
}

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = desc
}

// SetSubAgents replaces the child set and assigns this agent as parent of
// each child. An agent has at most one parent and sibling names must be
// unique.
func (b *BaseAgent) SetSubAgents(children ...core.Agent) error {
	self := b.agent()

	seen := map[string]bool{b.name: true}
	for _, child := range children {
		if child == nil {
			return fmt.Errorf("agent %s: nil sub-agent", b.name)
		}
		if seen[child.Name()] {
			return fmt.Errorf("agent %s: duplicate agent name %q", b.name, child.Name())
		}
		seen[child.Name()] = true

		if p := child.Parent(); p != nil && p.Name() != b.name {
			return fmt.Errorf("agent %q already has parent %q", child.Name(), p.Name())
		}
	}

	b.mu.Lock()
	old := b.subAgents
	b.subAgents = append([]core.Agent{}, children...)
	b.mu.Unlock()

	for _, child := range old {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(nil)
		}
	}

	for _, child := range children {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(self)
		}
	}

	return nil
}

func (b *BaseAgent) setParent(p core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent = p
}

// Parent returns the parent agent or nil for the root.
func (b *BaseAgent) Parent() core.Agent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.parent
}

// SubAgents returns a copy of the child agents.
func (b *BaseAgent) SubAgents() []core.Agent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Agent{}, b.subAgents...)
}

// Root returns the top of the tree this agent belongs to.
func (b *BaseAgent) Root() core.Agent { return core.RootAgent(b.agent()) }

// FindAgent performs a depth-first search over the subtree rooted at this
// agent (including itself). Returns nil if no agent has that name.
func (b *BaseAgent) FindAgent(name string) core.Agent {
	if b.name == name {
		return b.agent()
	}

	for _, child := range b.SubAgents() {
		if found := child.FindAgent(name); found != nil {
			return found
		}
	}

	return nil
}

// TransferTargets lists the agents this one may hand control to: its
// children, its parent and its peers.
func (b *BaseAgent) TransferTargets() []core.Agent {
	targets := b.SubAgents()

	parent := b.Parent()
	if parent == nil {
		return targets
	}

	targets = append(targets, parent)
	for _, peer := range parent.SubAgents() {
		if peer.Name() != b.name {
			targets = append(targets, peer)
		}
	}

	return targets
}

// agentWrapper lets a bare BaseAgent appear in the tree.
type agentWrapper struct{ *BaseAgent }

func (w *agentWrapper) Run(_ *core.RunContext) error {
	return fmt.Errorf("agent %s cannot run: embed BaseAgent in a concrete agent", w.name)
}
