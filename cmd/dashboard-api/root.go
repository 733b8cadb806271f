package main

import (
	"github.com/retinalab/retina-dashboard/internal/cli"
	"github.com/retinalab/retina-dashboard/internal/config"
	"github.com/retinalab/retina-dashboard/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
)

var rootCmd = &cobra.Command{
	Use:          "dashboard-api",
	Short:        "Retina diagnostics dashboard api",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cli.NewCmdToken())

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
}

// setup loads the configuration and installs the global logger. The returned func
// flushes and restores the previous logger.
func setup() (*config.Config, func()) {
	cfg, err := config.Load(configFile)
	if err != nil {
		zap.S().Fatalw("reading configuration", "error", err)
	}

	logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel))
	undo := zap.ReplaceGlobals(logger)

	return cfg, func() {
		_ = logger.Sync()
		undo()
	}
}
