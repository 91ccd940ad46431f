package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/suPer8Hu/csv-agent/internal/ai"
	"github.com/suPer8Hu/csv-agent/internal/tools"
)

const DefaultSystemPrompt = "You are a data analysis agent.\n" +
	"The user is inside a student performance CSV dataset.\n" +
	"Choose the correct tool based on the question.\n" +
	"After tool execution, explain the result in Markdown.\n" +
	"Never output raw JSON."

// summaryInstruction is sent after the tool result so the second call only
// narrates values that were already computed.
const summaryInstruction = "Explain the result in **Markdown**.\n" +
	"- Use bullet points\n" +
	"- Give insights\n" +
	"- Do NOT show JSON"

type Stage string

const (
	StageSelect    Stage = "select"
	StageSummarize Stage = "summarize"
)

// TransportError wraps a failed model call.
type TransportError struct {
	Stage    Stage
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s model call (%s): %v", e.Stage, e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ToolRunner executes one tool call. *tools.Executor implements it.
type ToolRunner interface {
	Execute(ctx context.Context, name, rawArgs string) (any, error)
}

// Agent answers one user turn with at most one tool call. It keeps no
// per-session state; history is passed in by the caller and never written.
type Agent struct {
	provider     ai.Provider
	runner       ToolRunner
	tools        []ai.ToolDefinition
	systemPrompt string
	logger       *slog.Logger
}

func New(provider ai.Provider, runner ToolRunner, systemPrompt string, logger *slog.Logger) *Agent {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		provider:     provider,
		runner:       runner,
		tools:        tools.Definitions(),
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

func (a *Agent) Provider() ai.Provider { return a.provider }

// Respond runs one turn: a tool-selection call, the selected tool if any,
// and a summary call without tools. Only the first requested tool call is run.
func (a *Agent) Respond(ctx context.Context, history []ai.Message, input string) (string, error) {
	start := time.Now()

	messages := make([]ai.Message, 0, len(history)+5)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: a.systemPrompt})
	for _, h := range history {
		messages = append(messages, ai.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: input})

	first, err := a.provider.Chat(ctx, messages, a.tools)
	if err != nil {
		return "", &TransportError{Stage: StageSelect, Provider: a.provider.Name(), Err: err}
	}
	if len(first.ToolCalls) == 0 {
		a.logger.InfoContext(ctx, "turn answered without tool",
			slog.Int("history", len(history)), slog.Duration("cost", time.Since(start)))
		return first.Content, nil
	}

	call := first.ToolCalls[0]
	if dropped := len(first.ToolCalls) - 1; dropped > 0 {
		a.logger.WarnContext(ctx, "extra tool calls dropped",
			slog.String("tool", call.Name), slog.Int("dropped", dropped))
	}
	if call.ID == "" {
		call.ID = "call_0"
	}

	result, err := a.runner.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		return "", err
	}
	payload, err := tools.Encode(result)
	if err != nil {
		return "", fmt.Errorf("encode %s result: %w", call.Name, err)
	}

	messages = append(messages,
		ai.Message{Role: ai.RoleAssistant, Content: first.Content, ToolCalls: []ai.ToolCall{call}},
		ai.Message{Role: ai.RoleTool, ToolCallID: call.ID, Content: payload},
		ai.Message{Role: ai.RoleUser, Content: summaryInstruction},
	)

	final, err := a.provider.Chat(ctx, messages, nil)
	if err != nil {
		return "", &TransportError{Stage: StageSummarize, Provider: a.provider.Name(), Err: err}
	}

	a.logger.InfoContext(ctx, "turn answered",
		slog.String("tool", call.Name),
		slog.Int("history", len(history)),
		slog.Duration("cost", time.Since(start)))
	return final.Content, nil
}
