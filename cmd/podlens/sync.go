package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/podlens/podlens/internal/db"
	"github.com/podlens/podlens/internal/ingest"
	"github.com/podlens/podlens/internal/timetrack"
	"github.com/podlens/podlens/internal/warehouse"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var (
		configPath     string
		tables         []string
		promptPassword bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, configPath, tables, promptPassword)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "podlens.yaml", "path to podlens config file")
	cmd.Flags().StringSliceVarP(&tables, "tables", "t", nil, "tables to sync (default: all)")
	cmd.Flags().BoolVar(&promptPassword, "prompt-password", false, "prompt for the store password instead of reading config")
	return cmd
}

func runSync(cmd *cobra.Command, configPath string, tables []string, promptPassword bool) error {
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := engine.Run(ctx, tables, ingest.TriggerManual)
	if err != nil {
		return err
	}
	// Returning the error lets the deferred reader.Close run and still
	// exits non-zero through cobra.
	return syncResultErr(res)
}

// syncResultErr maps a finished pass to the command's exit error.
func syncResultErr(res ingest.Result) error {
	if !res.OK() {
		return fmt.Errorf("sync finished with failures")
	}
	return nil
}
