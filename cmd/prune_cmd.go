package cmd

import (
	"github.com/spf13/cobra"

	"github.com/acwea904/qlback/internal/operations"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete remote artifacts beyond the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := operations.NewManager(ConfigFile)
		if err != nil {
			return err
		}
		res, err := m.Prune(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("retained %d, deleted %d\n", res.Retained, len(res.Deleted))
		return nil
	},
}
