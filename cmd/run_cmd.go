package cmd

import (
	"github.com/spf13/cobra"

	"github.com/acwea904/qlback/internal/operations"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Snapshot the data directory, upload it and clean up old copies",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := operations.NewManager(ConfigFile)
		if err != nil {
			return err
		}
		return m.Run(cmd.Context())
	},
}
