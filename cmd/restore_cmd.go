package cmd

import (
	"github.com/spf13/cobra"

	"github.com/acwea904/qlback/internal/operations"
)

var (
	restoreName string
	restoreDest string
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Download a backup artifact and unpack it",
	Long: `restore fetches the named artifact from the WebDAV collection,
or the newest one when no name is given, and unpacks it into the
destination directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := operations.NewManager(ConfigFile)
		if err != nil {
			return err
		}
		return m.Restore(cmd.Context(), restoreName, restoreDest)
	},
}

func init() {
	restoreCmd.Flags().
		StringVarP(&restoreName, "name", "n", "", "artifact to restore (defaults to the newest)")
	restoreCmd.Flags().
		StringVarP(&restoreDest, "dest", "d", ".", "directory to unpack into")
}
