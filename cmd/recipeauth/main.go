// Command recipeauth drives the session coordinator from a terminal: sign up,
// sign in (password or Google), sign out, and password/verification flows.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/panyam/recipeauth/internal/config"
)

var (
	cfg    *config.Config
	logger *slog.Logger
	debug  bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "recipeauth",
		Short:         "Sign in to the recipe app from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.NewConfig(); err != nil {
				return err
			}
			level := cfg.SlogLevel()
			if debug {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(newSignUpCmd())
	rootCmd.AddCommand(newSignInCmd())
	rootCmd.AddCommand(newGoogleCmd())
	rootCmd.AddCommand(newSignOutCmd())
	rootCmd.AddCommand(newResetPasswordCmd())
	rootCmd.AddCommand(newVerifyEmailCmd())
	rootCmd.AddCommand(newSetPasswordCmd())
	rootCmd.AddCommand(newWhoAmICmd())
	rootCmd.AddCommand(newStashCmd())

	return rootCmd
}
