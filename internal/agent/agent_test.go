package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/suPer8Hu/csv-agent/internal/ai"
	"github.com/suPer8Hu/csv-agent/internal/table"
	"github.com/suPer8Hu/csv-agent/internal/tools"
)

type call struct {
	messages []ai.Message
	tools    []ai.ToolDefinition
}

// scriptedProvider replays responses in order and records every request.
type scriptedProvider struct {
	responses []ai.Response
	errs      []error
	calls     []call
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "test" }

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message, defs []ai.ToolDefinition) (ai.Response, error) {
	_ = ctx
	i := len(p.calls)
	p.calls = append(p.calls, call{messages: append([]ai.Message(nil), messages...), tools: defs})
	if i < len(p.errs) && p.errs[i] != nil {
		return ai.Response{}, p.errs[i]
	}
	if i >= len(p.responses) {
		return ai.Response{}, errors.New("no scripted response")
	}
	return p.responses[i], nil
}

type countingRunner struct {
	inner ToolRunner
	n     int
}

func (r *countingRunner) Execute(ctx context.Context, name, rawArgs string) (any, error) {
	r.n++
	return r.inner.Execute(ctx, name, rawArgs)
}

func newRunner(t *testing.T) *countingRunner {
	t.Helper()
	tbl, err := table.Read(strings.NewReader("name,score\nA,10\nB,20\nC,30\n"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return &countingRunner{inner: tools.NewExecutor(tbl, nil)}
}

func TestRespond_PlainContentSkipsTools(t *testing.T) {
	prov := &scriptedProvider{responses: []ai.Response{{Content: "Hello there"}}}
	runner := newRunner(t)
	a := New(prov, runner, "", nil)

	history := []ai.Message{
		{Role: ai.RoleUser, Content: "hi"},
		{Role: ai.RoleAssistant, Content: "hey"},
	}
	got, err := a.Respond(context.Background(), history, "who are you?")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got != "Hello there" {
		t.Fatalf("expected verbatim content, got %q", got)
	}
	if len(prov.calls) != 1 {
		t.Fatalf("expected exactly one model call, got %d", len(prov.calls))
	}
	if runner.n != 0 {
		t.Fatalf("expected no tool execution, got %d", runner.n)
	}

	msgs := prov.calls[0].messages
	if len(msgs) != 4 {
		t.Fatalf("expected system+history+user, got %d messages", len(msgs))
	}
	if msgs[0].Role != ai.RoleSystem || msgs[0].Content != DefaultSystemPrompt {
		t.Fatalf("unexpected system message: %+v", msgs[0])
	}
	if msgs[1].Content != "hi" || msgs[2].Content != "hey" {
		t.Fatalf("history not preserved in order: %+v", msgs[1:3])
	}
	if msgs[3].Role != ai.RoleUser || msgs[3].Content != "who are you?" {
		t.Fatalf("unexpected user message: %+v", msgs[3])
	}
	if len(prov.calls[0].tools) != len(tools.Kinds()) {
		t.Fatalf("first call should advertise the tool catalogue")
	}
}

func TestRespond_RunsToolThenSummarizes(t *testing.T) {
	prov := &scriptedProvider{responses: []ai.Response{
		{ToolCalls: []ai.ToolCall{{ID: "call_9", Name: "average", Arguments: `{"column":"score"}`}}},
		{Content: "- The average score is **20**."},
	}}
	runner := newRunner(t)
	a := New(prov, runner, "custom prompt", nil)

	got, err := a.Respond(context.Background(), nil, "average score?")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got != "- The average score is **20**." {
		t.Fatalf("unexpected answer %q", got)
	}
	if len(prov.calls) != 2 || runner.n != 1 {
		t.Fatalf("expected 2 model calls and 1 tool run, got %d/%d", len(prov.calls), runner.n)
	}

	second := prov.calls[1]
	if second.tools != nil {
		t.Fatalf("summary call must not advertise tools")
	}
	msgs := second.messages
	if msgs[0].Content != "custom prompt" {
		t.Fatalf("custom system prompt not used")
	}
	n := len(msgs)
	if msgs[n-3].Role != ai.RoleAssistant || len(msgs[n-3].ToolCalls) != 1 || msgs[n-3].ToolCalls[0].ID != "call_9" {
		t.Fatalf("expected assistant tool-call message, got %+v", msgs[n-3])
	}
	if msgs[n-2].Role != ai.RoleTool || msgs[n-2].ToolCallID != "call_9" || msgs[n-2].Content != `{"average":20}` {
		t.Fatalf("unexpected tool message %+v", msgs[n-2])
	}
	if msgs[n-1].Role != ai.RoleUser || !strings.Contains(msgs[n-1].Content, "Do NOT show JSON") {
		t.Fatalf("expected summary instruction, got %+v", msgs[n-1])
	}
}

func TestRespond_OnlyFirstToolCallHonored(t *testing.T) {
	prov := &scriptedProvider{responses: []ai.Response{
		{ToolCalls: []ai.ToolCall{
			{ID: "a", Name: "list_columns", Arguments: `{}`},
			{ID: "b", Name: "average", Arguments: `{"column":"score"}`},
		}},
		{Content: "done"},
	}}
	runner := newRunner(t)
	a := New(prov, runner, "", nil)

	if _, err := a.Respond(context.Background(), nil, "q"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if runner.n != 1 {
		t.Fatalf("expected a single tool run, got %d", runner.n)
	}
	msgs := prov.calls[1].messages
	tool := msgs[len(msgs)-2]
	if tool.ToolCallID != "a" || tool.Content != `{"columns":["name","score"]}` {
		t.Fatalf("expected first call result, got %+v", tool)
	}
	assistant := msgs[len(msgs)-3]
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("dropped calls must not be echoed back, got %d", len(assistant.ToolCalls))
	}
}

func TestRespond_UnknownToolFlowsForward(t *testing.T) {
	prov := &scriptedProvider{responses: []ai.Response{
		{ToolCalls: []ai.ToolCall{{ID: "x", Name: "median", Arguments: `{"column":"score"}`}}},
		{Content: "I can't compute medians."},
	}}
	a := New(prov, newRunner(t), "", nil)

	got, err := a.Respond(context.Background(), nil, "median?")
	if err != nil {
		t.Fatalf("unknown tool must not abort the turn: %v", err)
	}
	if got != "I can't compute medians." {
		t.Fatalf("unexpected answer %q", got)
	}
	msgs := prov.calls[1].messages
	if msgs[len(msgs)-2].Content != `{"error":"Unknown tool: median"}` {
		t.Fatalf("unexpected tool payload %q", msgs[len(msgs)-2].Content)
	}
}

func TestRespond_ColumnErrorPropagates(t *testing.T) {
	prov := &scriptedProvider{responses: []ai.Response{
		{ToolCalls: []ai.ToolCall{{ID: "x", Name: "average", Arguments: `{"column":"name"}`}}},
	}}
	a := New(prov, newRunner(t), "", nil)

	_, err := a.Respond(context.Background(), nil, "avg name")
	var ce *table.ColumnError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ColumnError, got %v", err)
	}
	if len(prov.calls) != 1 {
		t.Fatalf("no summary call expected after a failed tool, got %d calls", len(prov.calls))
	}
}

func TestRespond_ArgumentErrorPropagates(t *testing.T) {
	prov := &scriptedProvider{responses: []ai.Response{
		{ToolCalls: []ai.ToolCall{{ID: "x", Name: "filter_rows", Arguments: `not json`}}},
	}}
	a := New(prov, newRunner(t), "", nil)

	_, err := a.Respond(context.Background(), nil, "filter")
	var ae *tools.ArgumentError
	if !errors.As(err, &ae) {
		t.Fatalf("expected ArgumentError, got %v", err)
	}
}

func TestRespond_TransportErrors(t *testing.T) {
	boom := errors.New("connection reset")

	prov := &scriptedProvider{errs: []error{boom}}
	_, err := New(prov, newRunner(t), "", nil).Respond(context.Background(), nil, "q")
	var te *TransportError
	if !errors.As(err, &te) || te.Stage != StageSelect || !errors.Is(err, boom) {
		t.Fatalf("expected select TransportError, got %v", err)
	}

	prov = &scriptedProvider{
		responses: []ai.Response{{ToolCalls: []ai.ToolCall{{ID: "x", Name: "list_columns"}}}},
		errs:      []error{nil, boom},
	}
	_, err = New(prov, newRunner(t), "", nil).Respond(context.Background(), nil, "q")
	if !errors.As(err, &te) || te.Stage != StageSummarize {
		t.Fatalf("expected summarize TransportError, got %v", err)
	}
}

func TestRespond_DoesNotMutateHistory(t *testing.T) {
	prov := &scriptedProvider{responses: []ai.Response{
		{ToolCalls: []ai.ToolCall{{ID: "x", Name: "list_columns"}}},
		{Content: "cols"},
	}}
	history := []ai.Message{{Role: ai.RoleUser, Content: "earlier"}}
	if _, err := New(prov, newRunner(t), "", nil).Respond(context.Background(), history, "q"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if len(history) != 1 || history[0].Content != "earlier" {
		t.Fatalf("history mutated: %+v", history)
	}
}
