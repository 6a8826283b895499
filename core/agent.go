package core

// Agent defines the interface every agent in a travelmesh tree implements.
//
// Agents receive a RunContext, talk to a model and tools, and emit events
// through the context so the Runner can persist them. Agents form a tree:
// a root delegates to named sub-agents and any agent may hand control to
// any other agent in the same tree.
//
// Implementations must:
//   - Respect context cancellation
//   - Emit events only through the provided RunContext
type Agent interface {
	Name() string
	Description() string
	Run(runCtx *RunContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes the implementation (e.g. "model").
type AgentInfo struct{ Name, Type string }

// RootAgent walks Parent links up to the top of the tree.
func RootAgent(a Agent) Agent {
	if a == nil {
		return nil
	}
	for a.Parent() != nil {
		a = a.Parent()
	}
	return a
}
