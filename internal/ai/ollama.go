package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1:latest"
	}
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: model,
		Client:    &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaChatReq struct {
	Model    string           `json:"model"`
	Messages []ollamaMsg      `json:"messages"`
	Tools    []openRouterTool `json:"tools,omitempty"`
	Stream   bool             `json:"stream"`
}

type ollamaMsg struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

// Ollama sends and expects tool arguments as a JSON object, not a string.
type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Error   string    `json:"error,omitempty"`
}

func (p *OllamaProvider) Name() string  { return "ollama" }
func (p *OllamaProvider) Model() string { return p.ModelName }

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (Response, error) {
	if p.Client == nil {
		return Response{}, errors.New("ollama: http client is nil")
	}

	reqBody := ollamaChatReq{
		Model:  p.ModelName,
		Stream: false,
		Messages: func() []ollamaMsg {
			out := make([]ollamaMsg, 0, len(messages))
			for _, m := range messages {
				om := ollamaMsg{Role: m.Role, Content: m.Content}
				for _, tc := range m.ToolCalls {
					var call ollamaToolCall
					call.Function.Name = tc.Name
					call.Function.Arguments = rawArguments(tc.Arguments)
					om.ToolCalls = append(om.ToolCalls, call)
				}
				out = append(out, om)
			}
			return out
		}(),
	}
	for _, t := range tools {
		reqBody.Tools = append(reqBody.Tools, openRouterTool{Type: "function", Function: t})
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return Response{}, err
	}

	url := fmt.Sprintf("%s/api/chat", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("ollama: status %d", resp.StatusCode)
	}

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Response{}, err
	}
	if decoded.Error != "" {
		return Response{}, errors.New(decoded.Error)
	}

	out := Response{Content: decoded.Message.Content}
	for i, tc := range decoded.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      tc.Function.Name,
			Arguments: argumentString(tc.Function.Arguments),
		})
	}
	return out, nil
}

func rawArguments(args string) json.RawMessage {
	if strings.TrimSpace(args) == "" || !json.Valid([]byte(args)) {
		return json.RawMessage("{}")
	}
	return json.RawMessage(args)
}

// argumentString normalises an arguments value that may be an object or a
// JSON-encoded string.
func argumentString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
