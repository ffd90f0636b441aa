package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/nauta/internal/application"
	"github.com/ericfisherdev/nauta/internal/domain/model"
	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

func newCardsCommand(app *App) *cobra.Command {
	var (
		verbose bool
		fresh   bool
		cached  bool
	)

	cmd := &cobra.Command{
		Use:   "cards",
		Short: "List stored cards with their time left and expiry date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode := model.RefreshNormal
			switch {
			case fresh && cached:
				return errors.New("--fresh and --cached are mutually exclusive")
			case fresh:
				mode = model.RefreshFresh
			case cached:
				mode = model.RefreshCached
			}

			listing, err := app.Cards.List(cmd.Context(), mode)
			if err != nil {
				return err
			}
			if listing.Offline {
				warn(app.Out, "WARNING: It seems that you have no network access. Showing data from cache.")
			}

			tw := tabwriter.NewWriter(app.Out, 0, 8, 1, '\t', 0)
			for _, st := range listing.Cards {
				password := st.Card.MaskedPassword()
				if verbose {
					password = st.Card.Password
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t(expires %s)\n",
					st.Card.Username, password, orNA(st.TimeLeft), orNA(st.ExpireDate))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show passwords")
	cmd.Flags().BoolVarP(&fresh, "fresh", "f", false, "force a refresh of every value")
	cmd.Flags().BoolVarP(&cached, "cached", "c", false, "show cached values without contacting the portal")

	cmd.AddCommand(
		newCardsAddCommand(app),
		newCardsCleanCommand(app),
		newCardsRmCommand(app),
		newCardsInfoCommand(app),
	)
	return cmd
}

func newCardsAddCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add [username]",
		Short: "Verify and store a card",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var username string
			if len(args) == 1 {
				var err error
				if username, err = app.resolve(ctx, args[0]); err != nil {
					return err
				}
			} else {
				var err error
				if username, err = app.Prompter.ReadLine("Username: "); err != nil {
					return err
				}
			}

			password, err := app.Prompter.ReadPassword("Password: ")
			if err != nil {
				return err
			}

			err = app.Cards.Add(ctx, username, password)
			if errors.Is(err, driven.ErrInvalidCredentials) {
				fail(app.Out, "Credentials seem incorrect")
				return nil
			}
			return err
		},
	}
}

func newCardsCleanCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete cards with no time left",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exhausted, _, err := app.Cards.Clean(cmd.Context(), app.confirmer())
			if err != nil {
				return err
			}
			if len(exhausted) == 0 {
				app.println("No exhausted cards.")
			}
			return nil
		},
	}
}

func newCardsRmCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm username...",
		Short: "Delete cards",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			usernames := make([]string, 0, len(args))
			for _, a := range args {
				u, err := app.resolve(ctx, a)
				if err != nil {
					return err
				}
				usernames = append(usernames, model.NormalizeUsername(u))
			}

			_, err := app.Cards.Remove(ctx, usernames, app.confirmer())
			if errors.Is(err, driven.ErrCardNotFound) {
				for _, u := range usernames {
					if _, getErr := app.Cards.Card(ctx, u); errors.Is(getErr, driven.ErrCardNotFound) {
						fail(app.Out, fmt.Sprintf("Invalid card: %s", u))
					}
				}
				return nil
			}
			return err
		},
	}
}

func newCardsInfoCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "info username",
		Short: "Show the portal's account summary and recent sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			username, err := app.resolve(ctx, args[0])
			if err != nil {
				return err
			}

			info, err := app.Cards.Info(ctx, username)
			switch {
			case errors.Is(err, driven.ErrCardNotFound):
				fail(app.Out, fmt.Sprintf("Invalid card: %s", username))
				return nil
			case errors.Is(err, driven.ErrInvalidCredentials):
				fail(app.Out, "Credentials seem incorrect")
				return nil
			case err != nil:
				return err
			}

			app.println("Información")
			app.println("-----------")
			for _, f := range info.Fields {
				app.println(f.Label, f.Value)
			}
			app.println()
			app.println("Sesiones")
			app.println("--------")
			for _, row := range info.Sessions {
				app.println(strings.Join(row, "\t"))
			}
			return nil
		},
	}
}

func (app *App) confirmer() application.Confirmer {
	return &promptConfirmer{out: app.Out, prompter: app.Prompter}
}
