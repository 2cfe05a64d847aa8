package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hongminglow/all-in-dash/internal/app"
	"github.com/hongminglow/all-in-dash/internal/config"
	"github.com/hongminglow/all-in-dash/internal/logging"
)

var errNotLoggedIn = errors.New("not logged in; run `dash login` first")

// runtime builds the app per command so commands like version need no config.
type runtime struct {
	opts app.Options
}

// run starts the app, hands it to fn and shuts it down afterwards.
func (rt *runtime) run(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, logger, err := rt.start(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
		_ = logger.Sync()
	}()
	return fn(a)
}

func (rt *runtime) start(cmd *cobra.Command) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	opts := rt.opts
	if opts.Logger == nil {
		logger, err := logging.Init(logging.ConfigFromEnv())
		if err != nil {
			return nil, nil, fmt.Errorf("init logger: %w", err)
		}
		opts.Logger = logger
	}
	if opts.Navigate == nil {
		stderr := cmd.ErrOrStderr()
		opts.Navigate = func(route string) {
			fmt.Fprintln(stderr, "Your session has expired. Please log in again.")
		}
	}

	a := app.New(cfg, opts)
	if err := a.Start(cmd.Context()); err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	return a, opts.Logger, nil
}

// NewRootCmd builds the dash command tree. Zero opts mean production wiring.
func NewRootCmd(opts app.Options) *cobra.Command {
	rt := &runtime{opts: opts}

	root := &cobra.Command{
		Use:   "dash",
		Short: "Personalized crypto dashboard client",
		Long: `dash signs you in to the ALL-IN backend and shows your personalized
crypto dashboard: market news, prices, AI insight and the meme of the day.

Configuration comes from the environment (or a .env file):
  BACKEND_URL                  API root, default http://localhost:5000/api
  DASH_CREDENTIAL_PATH         where the session token is kept
  DASH_CONFIG                  optional YAML file with the same settings
  LOG_LEVEL, LOG_DEV           logging`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newSignupCmd(rt),
		newLoginCmd(rt),
		newLogoutCmd(rt),
		newStatusCmd(rt),
		newOnboardCmd(rt),
		newProfileCmd(rt),
		newDashboardCmd(rt),
		newVoteCmd(rt),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI until it finishes or is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(app.Options{}).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
