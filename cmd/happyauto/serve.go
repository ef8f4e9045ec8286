package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	httptransport "happyauto/internal/http"
	"happyauto/internal/logx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logx.New(cfg.Log)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Deliveries: app.deliveries,
		Matching:   app.matching,
		Location:   app.location,
		Verifier:   app.verifier,
		Gatherer:   app.registry,
		Log:        logx.Component(log, "http"),
	})
	return httptransport.NewServer(cfg.HTTP.Addr, router, log).Run(ctx)
}
