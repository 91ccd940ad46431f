package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/suPer8Hu/csv-agent/internal/ai"
)

type fakeTurns struct {
	inputs  []string
	cleared int
	failOn  string
}

func (f *fakeTurns) SendMessage(ctx context.Context, sessionID string, content string) (string, []ai.Message, error) {
	f.inputs = append(f.inputs, content)
	if content == f.failOn {
		return "", nil, errors.New(`column "grade" not found`)
	}
	return "**answer** to " + content, nil, nil
}

func (f *fakeTurns) Clear(ctx context.Context, sessionID string) error {
	f.cleared++
	return nil
}

func TestRun_CommandsAndTurns(t *testing.T) {
	turns := &fakeTurns{failOn: "average grade"}
	r := &REPL{Turns: turns, SessionID: "default"}

	in := strings.NewReader("What columns?\n\n   \naverage grade\nCLEAR\nshow overview\nquit\nnever read\n")
	var out bytes.Buffer
	if err := r.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"What columns?", "average grade", "show overview"}
	if len(turns.inputs) != len(want) {
		t.Fatalf("expected inputs %v, got %v", want, turns.inputs)
	}
	for i := range want {
		if turns.inputs[i] != want[i] {
			t.Fatalf("input %d: want %q got %q", i, want[i], turns.inputs[i])
		}
	}
	if turns.cleared != 1 {
		t.Fatalf("expected one clear, got %d", turns.cleared)
	}

	s := out.String()
	if !strings.Contains(s, "**answer** to What columns?") {
		t.Fatalf("raw answer missing from output: %s", s)
	}
	if !strings.Contains(s, `column "grade" not found`) {
		t.Fatalf("error not printed: %s", s)
	}
	if !strings.Contains(s, "Goodbye") {
		t.Fatalf("missing goodbye: %s", s)
	}
}

func TestRun_EOFEnds(t *testing.T) {
	turns := &fakeTurns{}
	r := &REPL{Turns: turns, Render: func(md string) (string, error) { return "<" + md + ">", nil }}
	var out bytes.Buffer
	if err := r.Run(context.Background(), strings.NewReader("hi"), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "<**answer** to hi>") {
		t.Fatalf("render not applied: %s", out.String())
	}
}

func TestNewMarkdownRenderer(t *testing.T) {
	render, err := NewMarkdownRenderer(80)
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	s, err := render("- **mean**: 20")
	if err != nil || !strings.Contains(s, "mean") {
		t.Fatalf("unexpected render %q err=%v", s, err)
	}
}
