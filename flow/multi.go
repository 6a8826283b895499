package flow

// MultiAgentFlow runs an agent that may transfer control to other agents of
// its tree.
type MultiAgentFlow struct{ *BaseFlow }

// NewMultiAgentFlow creates a flow with the default processors plus the
// transfer tool injector.
func NewMultiAgentFlow(agent FlowAgent) *MultiAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddRequestProcessor(NewToolsProcessor())
	baseFlow.AddRequestProcessor(NewTransferToolInjector())
	baseFlow.AddResponseProcessor(NewOutputKeyProcessor())

	return &MultiAgentFlow{BaseFlow: baseFlow}
}
