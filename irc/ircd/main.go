// Package main runs the relay IRC server.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/presbrey/relay/irc"
	"github.com/presbrey/relay/irc/admind"
	"github.com/presbrey/relay/irc/config"
)

var (
	logger = logrus.New()

	configSource string

	rootCmd = &cobra.Command{
		Use:   "ircd [port] [password]",
		Short: "Runs a single-server IRC relay.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 2 {
				return errors.Errorf("accepts at most 2 args, received %d", len(args))
			}
			if len(args) > 0 {
				if _, err := parsePort(args[0]); err != nil {
					return err
				}
			}
			return nil
		},
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&configSource, "config", "c", "", "configuration file or URL (yaml, toml or json)")
}

func parsePort(arg string) (int, error) {
	port, err := strconv.Atoi(arg)
	if err != nil || port < 0 || port > 65535 {
		return 0, errors.Errorf("invalid port %q", arg)
	}
	return port, nil
}

func loadConfig(args []string) (*config.Config, error) {
	loaded, err := config.LoadDotEnv()
	if err != nil {
		return nil, errors.Wrap(err, "load .env failed")
	}
	for _, path := range loaded {
		logger.Debugf("Loaded environment from %s", path)
	}

	cfg, err := config.Load(configSource)
	if err != nil {
		return nil, errors.Wrap(err, "load config failed")
	}
	if len(args) > 0 {
		cfg.Server.Port, _ = parsePort(args[0])
	}
	if len(args) > 1 {
		cfg.Server.Password = args[1]
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return errors.Wrap(err, "parse log level failed")
	}
	logger.SetLevel(level)
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if err := setupLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := irc.NewServer(cfg, irc.WithLogger(logger))
	if err != nil {
		return errors.Wrap(err, "new server failed")
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g.Go(func() error {
		defer cancel()
		return srv.Run(ctx)
	})

	if cfg.Admin.Enabled {
		admin := admind.New(srv, srv.Registry(), cfg.Admin.Tokens, logger)
		g.Go(func() error {
			return admin.Start(cfg.GetAdminListenAddress())
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return admin.Shutdown(shutdownCtx)
		})
	}

	logger.WithField("network", cfg.Server.Network).Info("Server is running. Press Ctrl+C to stop.")
	return g.Wait()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Error("ircd exited")
		os.Exit(1)
	}
}
