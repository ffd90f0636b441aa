// Package cli is the command-line driving adapter: it parses commands,
// prompts the user and prints results.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/nauta/internal/application"
	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

// App holds the services and I/O the commands work with.
type App struct {
	Cards    *application.CardService
	Sessions *application.SessionService
	Prompter Prompter
	Out      io.Writer
	// ConnLog is the append-only connection history.
	ConnLog *slog.Logger
	// LogLevel is raised to debug by --debug.
	LogLevel *slog.LevelVar
}

// NewRootCommand builds the command tree.
func NewRootCommand(app *App) *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "nauta",
		Short: "Log in to and out of the captive portal from the terminal",
		Long: `nauta manages prepaid portal accounts ("cards") and keeps a login session
open until you press Ctrl+C, run 'nauta down', or an optional time limit expires.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if debug && app.LogLevel != nil {
				app.LogLevel.Set(slog.LevelDebug)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "show debug info")
	root.SetOut(app.Out)
	root.SetErr(app.Out)

	root.AddCommand(newUpCommand(app), newDownCommand(app), newCardsCommand(app))
	return root
}

// Execute runs the command line. A network failure is reported to the user
// and logged, and is not treated as a failure of the process.
func Execute(ctx context.Context, app *App, args []string) error {
	root := NewRootCommand(app)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if errors.Is(err, driven.ErrNetwork) {
		warn(app.Out, "Connection error. Check your connection and try again.")
		app.ConnLog.Error("connection error", "error", err)
		return nil
	}
	return err
}

// resolve expands a short username against the stored cards.
func (app *App) resolve(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", nil
	}
	return app.Cards.ResolveUsername(ctx, username)
}

func (app *App) printf(format string, args ...any) {
	fmt.Fprintf(app.Out, format, args...)
}

func (app *App) println(args ...any) {
	fmt.Fprintln(app.Out, args...)
}

func warn(w io.Writer, msg string) {
	color.New(color.FgYellow).Fprintln(w, msg)
}

func fail(w io.Writer, msg string) {
	color.New(color.FgRed).Fprintln(w, msg)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
