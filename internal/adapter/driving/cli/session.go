package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/nauta/internal/application"
	"github.com/ericfisherdev/nauta/internal/domain/model"
	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

func newUpCommand(app *App) *cobra.Command {
	var seconds int

	cmd := &cobra.Command{
		Use:   "up [username]",
		Short: "Log in and stay connected until Ctrl+C",
		Long: `Log in with the given card, or with the card that has the least time left.
The session stays open until Ctrl+C, 'nauta down', or the --time limit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var username string
			if len(args) == 1 {
				var err error
				if username, err = app.resolve(ctx, args[0]); err != nil {
					return err
				}
			}
			if seconds < 0 {
				return errors.New("--time must not be negative")
			}

			res, err := app.Sessions.Up(ctx, application.UpRequest{
				Username:    username,
				MaxDuration: time.Duration(seconds) * time.Second,
				Observer:    &upPrinter{out: app.Out},
			})
			switch {
			case errors.Is(err, driven.ErrCardNotFound):
				fail(app.Out, fmt.Sprintf("Invalid card: %s", username))
				return nil
			case errors.Is(err, application.ErrNoCardAvailable):
				fail(app.Out, "No card available, add one with 'nauta cards add'")
				return nil
			case errors.Is(err, driven.ErrAlreadyConnected):
				app.println("Looks like you're already connected. Use 'nauta down' to log out.")
				return nil
			case errors.Is(err, driven.ErrAuthFailed):
				fail(app.Out, "Log in failed :(")
				return nil
			case err != nil:
				return err
			}

			if res.Outcome == model.StateLoggedOutExternally {
				app.println()
				app.println("Logged out from another terminal.")
				return nil
			}
			if res.LoggedOut {
				app.println("Connection closed successfully")
			} else {
				warn(app.Out, "The portal did not confirm the logout. Run 'nauta down' to retry.")
			}
			app.println("Connection time:", model.FormatClock(res.Elapsed))
			app.println("Reported time left:", orNA(res.TimeLeftAfter))
			return nil
		},
	}
	cmd.Flags().IntVarP(&seconds, "time", "t", 0, "maximum duration of this connection, in seconds")
	return cmd
}

func newDownCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Log out of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := app.Sessions.Down(cmd.Context())
			if err != nil {
				return err
			}
			switch status {
			case application.DownNotConnected:
				app.println("Connection seems to be down already. To connect, use 'nauta up'")
			case application.DownLoggedOut:
				app.println("Connection closed successfully")
			case application.DownRejected:
				warn(app.Out, "The portal did not confirm the logout. Run 'nauta down' again to retry.")
			}
			return nil
		},
	}
}

// upPrinter renders session progress on a single terminal line.
type upPrinter struct {
	out io.Writer
}

func (p *upPrinter) CardSelected(username, timeLeft string) {
	fmt.Fprintf(p.out, "Using card %s. Time left: %s\n", username, orNA(timeLeft))
}

func (p *upPrinter) Connected(string) {
	fmt.Fprintln(p.out, "Logged in successfully. To logout, run 'nauta down'")
	fmt.Fprintln(p.out, "or just hit Ctrl+C here, I'll stick around...")
}

func (p *upPrinter) Tick(elapsed, remaining time.Duration, limited bool) {
	fmt.Fprintf(p.out, "\rConnection time: %s ", model.FormatClock(elapsed))
	if limited {
		fmt.Fprintf(p.out, ". Automatically disconnect in %s", model.FormatClock(remaining))
	}
}

func (p *upPrinter) Disconnecting(reason model.SessionState) {
	fmt.Fprintln(p.out)
	switch reason {
	case model.StateTimedOut:
		fmt.Fprintln(p.out, "Time limit reached, logging out...")
	default:
		fmt.Fprintln(p.out, "Got a Ctrl+C, logging out...")
	}
}
