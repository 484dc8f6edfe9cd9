// Command jcsy is the operator CLI: it processes JCSY list files and
// inspects stored lists.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Domenick1991/jcsyfill/config"
	"github.com/Domenick1991/jcsyfill/internal/bootstrap"
	"github.com/Domenick1991/jcsyfill/internal/logging"
	"github.com/Domenick1991/jcsyfill/internal/service/processing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globalFlags struct {
	configPath string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "jcsy",
		Short:         "Fill JCSY flight lists with live arrival and departure times",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default $CONFIG_PATH or config.yaml)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log at info level")

	root.AddCommand(
		newProcessCmd(flags),
		newShowCmd(flags),
		newHistoryCmd(flags),
		newSearchCmd(flags),
		newLookupCmd(flags),
		newExportCmd(flags),
		newPrintCmd(flags),
	)
	return root
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	config.LoadEnv()
	path := flags.configPath
	if path == "" {
		path = config.PathFromEnv()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if !flags.verbose && cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	return cfg, nil
}

// withApp builds the app for one command run and closes it afterwards.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(*bootstrap.App) error, opts ...processing.Option) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	app, err := bootstrap.NewApp(cmd.Context(), cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close app", zap.Error(err))
		}
	}()
	return fn(app)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid list id %q", arg)
	}
	return id, nil
}
