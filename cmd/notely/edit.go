package main

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aretw0/notely/pkg/client"
	"github.com/aretw0/notely/pkg/editor"
	"github.com/aretw0/notely/pkg/tui"
)

var editStyle string

var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Browse and edit notes in the terminal",
	Long: `Open the terminal editor. Changes are saved shortly after you leave a
field. With an id, that note is opened right away.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := newClient()
		if _, err := c.Me(ctx); err != nil {
			fatal("Not logged in", err)
		}

		// The alt screen owns the terminal; keep logs below warnings.
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
		opts := []tui.Option{
			tui.WithLogger(logger),
			tui.WithPreviewStyle(editStyle),
			tui.WithSessionOptions(editor.WithDelay(cfg.Client.Debounce)),
		}
		if len(args) == 1 {
			opts = append(opts, tui.WithOpenNote(parseID(args[0])))
		}

		model := tui.New(ctx, client.NewCachingStore(c), opts...)
		if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
			fatal("Editor failed", err)
		}
		model.Session().Stop()
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVar(&editStyle, "style", "auto", "Preview style: auto, dark, light or notty")
}
