// Package repl is the terminal front end: one line in, one rendered answer out.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/suPer8Hu/csv-agent/internal/ai"
)

// Turns is the slice of *chat.Service the loop needs.
type Turns interface {
	SendMessage(ctx context.Context, sessionID string, content string) (string, []ai.Message, error)
	Clear(ctx context.Context, sessionID string) error
}

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

type REPL struct {
	Turns     Turns
	SessionID string
	// Render turns the Markdown answer into terminal output. Nil prints it raw.
	Render func(markdown string) (string, error)
}

// NewMarkdownRenderer returns a glamour renderer wrapped at width columns.
func NewMarkdownRenderer(width int) (func(string) (string, error), error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}

// Run reads lines until EOF, exit or quit. Turn errors are printed and the
// loop continues.
func (r *REPL) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, promptStyle.Render("CSV Data Agent"))
	fmt.Fprintln(out, dimStyle.Render("Commands: 'exit' or 'quit' to leave, 'clear' to reset"))

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "\n"+promptStyle.Render("You: "))
		if !sc.Scan() {
			fmt.Fprintln(out, "\nGoodbye")
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "\nGoodbye")
			return nil
		case "clear":
			if err := r.Turns.Clear(ctx, r.SessionID); err != nil {
				fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
				continue
			}
			fmt.Fprintln(out, dimStyle.Render("History cleared"))
			continue
		}

		reply, _, err := r.Turns.SendMessage(ctx, r.SessionID, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
			continue
		}
		fmt.Fprintln(out, "\n"+promptStyle.Render("Assistant:"))
		fmt.Fprintln(out, r.render(reply))
	}
}

func (r *REPL) render(md string) string {
	if r.Render == nil {
		return md
	}
	s, err := r.Render(md)
	if err != nil {
		return md
	}
	return s
}
