package cmd

import (
	"os"

	"github.com/isdelr/dirback/internal/config"
	"github.com/isdelr/dirback/internal/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfgFile string
	engine  string
	cfg     *config.Config
}

// NewRootCmd builds the dirback command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "dirback",
		Short: "Directory backup engine",
		Long: `dirback registers directories as backup targets, archives them to .tar.gz
files and restores them on demand. It runs as an HTTP service (serve) or
executes single commands from the shell.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfgFile != "" {
				os.Setenv("DIRBACK_CONFIG", opts.cfgFile)
			}
			if opts.engine != "" {
				os.Setenv("DIRBACK_ENGINE", opts.engine)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel, cfg.LogPretty)
			opts.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "YAML config file (overrides DIRBACK_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&opts.engine, "engine", "", "engine mode: live or simulated (overrides DIRBACK_ENGINE)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newRegisterCmd(opts),
		newBackupCmd(opts),
		newRestoreCmd(opts),
		newDeleteBackupCmd(opts),
		newDeleteTargetCmd(opts),
		newExecCmd(opts),
		newTokenCmd(opts),
	)
	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}
