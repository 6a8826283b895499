package flow

// SingleAgentFlow runs a standalone agent (no transfers).
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow creates a flow with the default processors.
func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddRequestProcessor(NewToolsProcessor())
	baseFlow.AddResponseProcessor(NewOutputKeyProcessor())

	return &SingleAgentFlow{BaseFlow: baseFlow}
}
