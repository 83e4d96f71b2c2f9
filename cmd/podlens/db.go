package main

import (
	"context"
	"fmt"

	"github.com/podlens/podlens/internal/db"
	"github.com/podlens/podlens/internal/warehouse"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	var (
		configPath     string
		promptPassword bool
	)

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Reporting-store maintenance commands",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "podlens.yaml", "path to podlens config file")
	cmd.PersistentFlags().BoolVar(&promptPassword, "prompt-password", false, "prompt for the store password instead of reading config")

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update all reporting-store tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath, promptPassword)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(gormDB); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(db.AllModels()))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to the store and the warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath, promptPassword)
			if err != nil {
				return err
			}
			if err := db.Ping(gormDB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "store: ok")

			reader, err := warehouse.Open(cfg.Warehouse.DSN, cfg.Warehouse.ConnectTimeout, cfg.Warehouse.QueryTimeout)
			if err != nil {
				return err
			}
			defer reader.Close()
			if err := reader.Ping(context.Background()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "warehouse: ok")
			return nil
		},
	})

	return cmd
}
