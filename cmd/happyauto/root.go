package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"happyauto/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "happyauto",
	Short:         "Vehicle delivery booking service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "YAML config file (default $HAPPYAUTO_CONFIG)")
}

func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if cfgPath != "" {
		_ = godotenv.Load()
		cfg, err = config.LoadFrom(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
