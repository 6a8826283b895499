package agent

import "github.com/hupe1980/travelmesh/core"

// InstructionProvider supplies the system instruction of an agent. The
// returned text may contain {key} and {key?} state placeholders; the flow
// fills them in.
type InstructionProvider interface {
	Instruction(runCtx *core.RunContext) (string, error)
}

// Text is a static instruction.
type Text string

// Instruction implements InstructionProvider.
func (t Text) Instruction(*core.RunContext) (string, error) { return string(t), nil }

// InstructionFunc adapts a function to InstructionProvider, e.g. to pick
// the instruction from session state.
type InstructionFunc func(runCtx *core.RunContext) (string, error)

// Instruction implements InstructionProvider.
func (f InstructionFunc) Instruction(runCtx *core.RunContext) (string, error) { return f(runCtx) }
