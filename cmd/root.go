// Package cmd holds the organicscan command line: the API server plus the
// offline dataset and training tools.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"organicscan/config"
	"organicscan/logging"
)

var (
	configPath string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "organicscan",
	Short:         "Classify fruit and organic status from spectral readings",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := config.Find(configPath)
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		l, err := logging.New(loaded.Log)
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		zap.ReplaceGlobals(logger)
		if path != "" {
			logger.Debug("config loaded", zap.String("path", path))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default config.yaml, then ../config.yaml)")
}

// Execute runs the command selected by os.Args and exits non-zero on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
