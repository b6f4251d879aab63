package cmd

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/acwea904/qlback/internal/logger"
)

var (
	// ConfigFile is the path to the YAML configuration.
	ConfigFile string
	// Verbose switches the logger to debug level.
	Verbose bool

	// rootCmd is the base command for qlback.
	rootCmd = &cobra.Command{
		Use:   "qlback",
		Short: "Back up a Qinglong panel data directory to WebDAV storage",
		Long: `qlback snapshots a Qinglong panel data directory, uploads the
archive to a WebDAV collection, keeps only the newest copies there and
reports the run to Telegram, based on your YAML configuration file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if Verbose {
				_, err := logger.Init(true)
				return err
			}
			return nil
		},
	}
)

// Execute runs the root command and exits non-zero when it failed.
func Execute() {
	if _, err := logger.Init(false); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: init logger: %v\n", err)
		os.Exit(1)
	}

	err := rootCmd.Execute()
	if err != nil {
		logger.Global().Error("command failed", "error", err)
	}
	logger.Cleanup()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "./configs/qlback.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().
		BoolVarP(&Verbose, "verbose", "v", false, "log debug detail")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(pruneCmd)
}
