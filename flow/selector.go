package flow

// Selector determines which flow to use based on agent capabilities.
type Selector struct{}

// NewSelector creates a new flow selector.
func NewSelector() *Selector { return &Selector{} }

// SelectFlow chooses the appropriate flow for the given agent:
//   - SingleAgentFlow for isolated agents without transfer targets
//   - MultiAgentFlow for agents that may hand over control
func (s *Selector) SelectFlow(agent FlowAgent) Flow {
	if len(transferTargetNames(agent)) == 0 {
		return NewSingleAgentFlow(agent)
	}
	return NewMultiAgentFlow(agent)
}
