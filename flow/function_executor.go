package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/tool"
)

// FunctionExecutor executes a batch of function calls and emits one function
// response event per call through emit. Implementations must:
//   - Respect runCtx.Context cancellation
//   - Never panic (recover internally and report the panic as a tool error)
//   - Apply ToolContext accumulated actions to emitted events
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, toolRegistry map[string]tool.Tool, fnCalls []core.FunctionCall, emit func(core.Event) error)
}

// FunctionExecutorConfig configures the default executor.
type FunctionExecutorConfig struct {
	MaxParallel    int           // 0 or <1 => no explicit limit (len(fnCalls)); 1 => sequential
	PreserveOrder  bool          // if true, buffer results and emit in original order
	LogStartEvents bool          // log a start line per function
	Timeout        time.Duration // per call; 0 disables
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fnCalls []core.FunctionCall,
	emit func(core.Event) error,
) {
	n := len(fnCalls)
	if n == 0 {
		return
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	// Sequential path: run and emit inline so each call sees the state
	// written by the previous one.
	if maxPar == 1 {
		for _, fc := range fnCalls {
			if runCtx.Err() != nil {
				return
			}
			respEv := e.runCall(runCtx, agent, toolRegistry, fc)
			if err := emit(respEv); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", fc.Name, "error", err.Error())
				return
			}
		}
		return
	}

	results := make([]*core.Event, n) // used only if PreserveOrder
	var mu sync.Mutex                  // serializes unordered emits & results writes
	var wg sync.WaitGroup

	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range fnCalls {
		if runCtx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			if runCtx.Err() != nil {
				return
			}

			respEv := e.runCall(runCtx, agent, toolRegistry, fc)

			mu.Lock()
			defer mu.Unlock()

			if e.cfg.PreserveOrder {
				results[idx] = &respEv
				return
			}

			if err := emit(respEv); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", fc.Name, "error", err.Error())
			}
		}(i, fnCalls[i])
	}

	wg.Wait()

	if e.cfg.PreserveOrder {
		for i, ev := range results {
			if ev == nil {
				continue
			}
			if err := emit(*ev); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", fnCalls[i].Name, "error", err.Error())
				return
			}
		}
	}

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"preserve_order", e.cfg.PreserveOrder,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
}

// runCall executes one call with panic safety and the optional timeout and
// returns its response event.
func (e *parallelFunctionExecutor) runCall(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fc core.FunctionCall,
) core.Event {
	callCtx := runCtx
	if e.cfg.Timeout > 0 {
		ctx, cancel := context.WithTimeout(runCtx.Context, e.cfg.Timeout)
		defer cancel()
		callCtx = runCtx.WithContext(ctx)
	}

	toolCtx := core.NewToolContext(callCtx, fc.ID)
	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agent.GetName(), "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()

	var (
		result any
		err    error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				runCtx.LogError("agent.function.panic", "agent", agent.GetName(), "function", fc.Name, "recover", r)
			}
		}()
		result, err = executeTool(toolRegistry, toolCtx, fc.Name, fc.Arguments)
	}()

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.GetName(),
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	respEv := core.NewFunctionResponseEvent(agent.GetName(), fc.ID, fc.Name, result, err)
	toolCtx.InternalApplyActions(&respEv)

	return respEv
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// executeTool centralizes tool lookup & execution using the tool registry.
func executeTool(toolRegistry map[string]tool.Tool, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, ok := toolRegistry[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return impl.Call(toolCtx, argMap)
}
