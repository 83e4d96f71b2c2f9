package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/podlens/podlens/internal/aggregate"
	"github.com/podlens/podlens/internal/cache"
	"github.com/podlens/podlens/internal/config"
	"github.com/podlens/podlens/internal/dashboard"
	"github.com/podlens/podlens/internal/db"
	"github.com/podlens/podlens/internal/ingest"
	"github.com/podlens/podlens/internal/notify"
	"github.com/podlens/podlens/internal/notify/discord"
	"github.com/podlens/podlens/internal/notify/slack"
	"github.com/podlens/podlens/internal/scheduler"
	"github.com/podlens/podlens/internal/settings"
	"github.com/podlens/podlens/internal/timetrack"
	"github.com/podlens/podlens/internal/warehouse"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath     string
		port           int
		promptPassword bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync scheduler and the reporting API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, promptPassword)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "podlens.yaml", "path to podlens config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "API port (overrides config)")
	cmd.Flags().BoolVar(&promptPassword, "prompt-password", false, "prompt for the store password instead of reading config")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, promptPassword bool) error {
	cfg, gormDB, err := connectFromConfig(configPath, promptPassword)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	reader, err := warehouse.Open(cfg.Warehouse.DSN, cfg.Warehouse.ConnectTimeout, cfg.Warehouse.QueryTimeout)
	if err != nil {
		return err
	}
	defer reader.Close()

	var tracker ingest.TimeTracker
	if cfg.Jibble.ClientID != "" {
		client, err := timetrack.New(timetrack.Opts{
			BaseURL:      cfg.Jibble.BaseURL,
			TokenURL:     cfg.Jibble.TokenURL,
			ClientID:     cfg.Jibble.ClientID,
			ClientSecret: cfg.Jibble.ClientSecret,
		})
		if err != nil {
			return err
		}
		tracker = client
	}

	engine, err := ingest.New(ingest.Opts{
		DB:      gormDB,
		Source:  reader,
		Tracker: tracker,
		Out:     cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	responseCache := cache.New(cfg.Sync.CacheTTL)
	engine.OnComplete(func(res ingest.Result) {
		if res.OK() {
			responseCache.Flush()
		}
	})

	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Opts{
		Engine:      engine,
		Schedule:    cfg.Sync.Schedule,
		Tables:      cfg.Sync.Tables,
		Notifiers:   notifiers,
		StartupSync: cfg.Sync.StartupSync,
		Out:         cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	go func() {
		if err := sched.Run(ctx); err != nil {
			log.Printf("scheduler stopped: %v", err)
			cancel()
		}
	}()

	httpPort := cfg.HTTP.Port
	if port > 0 {
		httpPort = port
	}
	return dashboard.Start(ctx, dashboard.StartOpts{
		DB:       gormDB,
		Engine:   engine,
		Service:  aggregate.New(gormDB, settings.New(gormDB)),
		Settings: settings.New(gormDB),
		Cache:    responseCache,
		Port:     httpPort,
		Out:      cmd.OutOrStdout(),
	})
}

func buildNotifiers(cfg *config.Config) ([]notify.Notifier, error) {
	var notifiers []notify.Notifier
	if cfg.Notify.Slack.BotToken != "" {
		n, err := slack.New(cfg.Notify.Slack.BotToken, cfg.Notify.Slack.ChannelID)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	if cfg.Notify.Discord.BotToken != "" {
		n, err := discord.New(cfg.Notify.Discord.BotToken, cfg.Notify.Discord.ChannelID)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	return notifiers, nil
}
