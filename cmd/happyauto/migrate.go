package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"happyauto/internal/infra"
	"happyauto/internal/logx"
	"happyauto/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded SQL migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DB.Driver != "postgres" {
		return errors.New("migrate requires db.driver=postgres")
	}
	log := logx.Component(logx.New(cfg.Log), "migrate")

	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	names, err := migrations.Names()
	if err != nil {
		return err
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		return err
	}
	log.Info().Strs("files", names).Msg("migrations applied")
	return nil
}
