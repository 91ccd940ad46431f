package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/csv-agent/internal/app"
	"github.com/suPer8Hu/csv-agent/internal/chat"
	"github.com/suPer8Hu/csv-agent/internal/config"
	"github.com/suPer8Hu/csv-agent/internal/logging"
	"github.com/suPer8Hu/csv-agent/internal/repl"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		csvPath   string
		sessionID string
		wrap      int
		plain     bool
	)

	cmd := &cobra.Command{
		Use:           "csv-agent",
		Short:         "Ask questions about a CSV file in the terminal",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if csvPath != "" {
				cfg.CSVPath = csvPath
			}
			// keep the prompt readable: logs go to stderr as text
			logger := logging.NewLogger(os.Stderr, "warn", "text")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			r := &repl.REPL{Turns: a.ChatSvc, SessionID: chat.NormalizeSessionID(sessionID)}
			if !plain {
				render, err := repl.NewMarkdownRenderer(wrap)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warn: markdown renderer unavailable: %v\n", err)
				} else {
					r.Render = render
				}
			}

			err = r.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file to load (overrides CSV_PATH)")
	cmd.Flags().StringVar(&sessionID, "session", chat.DefaultSessionID, "session id for history")
	cmd.Flags().IntVar(&wrap, "wrap", 100, "wrap rendered answers at this width")
	cmd.Flags().BoolVar(&plain, "plain", false, "print answers as raw Markdown")
	return cmd
}
