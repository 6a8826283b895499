package flow

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/travelmesh/core"
	"github.com/hupe1980/travelmesh/internal/testutil"
	"github.com/hupe1980/travelmesh/tool"
)

func newExecAgent(tools map[string]tool.Tool) *stubAgent {
	return &stubAgent{name: "A", tools: tools}
}

func TestFunctionExecutor_Single(t *testing.T) {
	a := newExecAgent(map[string]tool.Tool{
		"one": &mockTool{name: "one", result: 42},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 4, PreserveOrder: true})
	rc := testutil.NewHarness("sess").RunCtx
	fnCalls := []core.FunctionCall{{ID: "1", Name: "one", Arguments: "{}"}}
	events := make([]core.Event, 0)
	emit := func(ev core.Event) error { events = append(events, ev); return nil }
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if len(events) != 1 {
		t.Fatalf("expected 1 event got %d", len(events))
	}
	assert.Equal(t, 42, events[0].GetFunctionResponses()[0].Response)
}

func TestFunctionExecutor_ParallelUnordered(t *testing.T) {
	a := newExecAgent(map[string]tool.Tool{
		"slow": &mockTool{name: "slow", delay: 60 * time.Millisecond, result: "s"},
		"fast": &mockTool{name: "fast", delay: 5 * time.Millisecond, result: "f"},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2, PreserveOrder: false})
	rc := testutil.NewHarness("sess").RunCtx
	fnCalls := []core.FunctionCall{{ID: "1", Name: "slow", Arguments: "{}"}, {ID: "2", Name: "fast", Arguments: "{}"}}
	var order []string
	emit := func(ev core.Event) error { order = append(order, ev.GetFunctionResponses()[0].Name); return nil }
	start := time.Now()
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if len(order) != 2 {
		t.Fatalf("want 2 events got %d", len(order))
	}
	if order[0] != "fast" {
		t.Fatalf("expected fast first got %s", order[0])
	}
	if elapsed := time.Since(start); elapsed > 90*time.Millisecond {
		t.Fatalf("expected parallel speedup, elapsed=%v", elapsed)
	}
}

func TestFunctionExecutor_PreserveOrder(t *testing.T) {
	a := newExecAgent(map[string]tool.Tool{
		"t1": &mockTool{name: "t1", delay: 30 * time.Millisecond, result: 1},
		"t2": &mockTool{name: "t2", delay: 5 * time.Millisecond, result: 2},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2, PreserveOrder: true})
	rc := testutil.NewHarness("sess").RunCtx
	fnCalls := []core.FunctionCall{{ID: "1", Name: "t1", Arguments: "{}"}, {ID: "2", Name: "t2", Arguments: "{}"}}
	var order []string
	emit := func(ev core.Event) error { order = append(order, ev.GetFunctionResponses()[0].Name); return nil }
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if order[0] != "t1" || order[1] != "t2" {
		t.Fatalf("order not preserved: %v", order)
	}
}

func TestFunctionExecutor_SequentialLastWriteWins(t *testing.T) {
	a := newExecAgent(map[string]tool.Tool{
		"first":  &mockTool{name: "first", delay: 20 * time.Millisecond, actionState: map[string]any{"pais": "España"}},
		"second": &mockTool{name: "second", actionState: map[string]any{"pais": "Italia"}},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 1, PreserveOrder: true})
	h := testutil.NewHarness("sess")
	fnCalls := []core.FunctionCall{{ID: "1", Name: "first"}, {ID: "2", Name: "second"}}

	var evs []core.Event
	te.Execute(h.RunCtx, a, a.tools, fnCalls, func(ev core.Event) error {
		evs = append(evs, ev)
		return h.RunCtx.EmitEvent(ev)
	})

	require.Len(t, evs, 2)
	assert.Equal(t, "first", evs[0].GetFunctionResponses()[0].Name)
	assert.Equal(t, "Italia", evs[1].Actions.StateDelta["pais"])
	assert.Equal(t, "Italia", h.State("pais", nil))
}

func TestFunctionExecutor_ErrorIsolation(t *testing.T) {
	a := newExecAgent(map[string]tool.Tool{
		"ok":  &mockTool{name: "ok", result: "fine"},
		"bad": &mockTool{name: "bad", err: errors.New("boom")},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2, PreserveOrder: false})
	rc := testutil.NewHarness("sess").RunCtx
	fnCalls := []core.FunctionCall{{ID: "1", Name: "ok", Arguments: "{}"}, {ID: "2", Name: "bad", Arguments: "{}"}}
	var errs int32
	emit := func(ev core.Event) error {
		if ev.GetFunctionResponses()[0].Error != "" {
			atomic.AddInt32(&errs, 1)
		}
		return nil
	}
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if atomic.LoadInt32(&errs) != 1 {
		t.Fatalf("expected 1 error event got %d", errs)
	}
}

func TestFunctionExecutor_UnknownToolAndBadArgs(t *testing.T) {
	a := newExecAgent(map[string]tool.Tool{"ok": &mockTool{name: "ok"}})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 1})
	rc := testutil.NewHarness("sess").RunCtx
	fnCalls := []core.FunctionCall{{ID: "1", Name: "missing"}, {ID: "2", Name: "ok", Arguments: "{not json"}}

	var msgs []string
	te.Execute(rc, a, a.tools, fnCalls, func(ev core.Event) error {
		msgs = append(msgs, ev.GetFunctionResponses()[0].Error)
		return nil
	})

	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "tool missing not found")
	assert.Contains(t, msgs[1], "failed to unmarshal args")
}

func TestFunctionExecutor_PanicRecovery(t *testing.T) {
	a := newExecAgent(map[string]tool.Tool{
		"panic": &mockTool{name: "panic", panicMsg: "boom"},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := testutil.NewHarness("sess").RunCtx
	fnCalls := []core.FunctionCall{{ID: "1", Name: "panic", Arguments: "{}"}}
	var got string
	emit := func(ev core.Event) error {
		got = ev.GetFunctionResponses()[0].Error
		return nil
	}
	te.Execute(rc, a, a.tools, fnCalls, emit)
	assert.Equal(t, "panic recovered: boom", got)
}

func TestFunctionExecutor_Timeout(t *testing.T) {
	a := newExecAgent(map[string]tool.Tool{
		"slow": &mockTool{name: "slow", delay: time.Second},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{Timeout: 20 * time.Millisecond})
	rc := testutil.NewHarness("sess").RunCtx

	var got string
	start := time.Now()
	te.Execute(rc, a, a.tools, []core.FunctionCall{{ID: "1", Name: "slow"}}, func(ev core.Event) error {
		got = ev.GetFunctionResponses()[0].Error
		return nil
	})

	assert.Contains(t, got, "deadline exceeded")
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.NoError(t, rc.Err(), "timeout must not cancel the run")
}

func TestFunctionExecutor_ActionsApplied(t *testing.T) {
	a := newExecAgent(map[string]tool.Tool{
		"act": &mockTool{name: "act", actionState: map[string]any{"k": "v"}, transferTo: "next"},
	})
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := testutil.NewHarness("sess").RunCtx
	fnCalls := []core.FunctionCall{{ID: "1", Name: "act", Arguments: "{}"}}
	var evs []core.Event
	emit := func(ev core.Event) error { evs = append(evs, ev); return nil }
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if len(evs) != 1 {
		t.Fatalf("expected 1 event got %d", len(evs))
	}
	if evs[0].Actions.StateDelta["k"] != "v" {
		t.Fatalf("state delta missing")
	}
	if evs[0].Actions.TransferToAgent == nil || *evs[0].Actions.TransferToAgent != "next" {
		t.Fatalf("transfer action missing")
	}
}
