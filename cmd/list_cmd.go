package cmd

import (
	"fmt"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/acwea904/qlback/internal/archive"
	"github.com/acwea904/qlback/internal/operations"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show remote artifacts and what retention would do",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := operations.NewManager(ConfigFile)
		if err != nil {
			return err
		}
		plan, err := m.Preview(cmd.Context())
		if err != nil {
			return err
		}

		if len(plan.Keep)+len(plan.Prune) == 0 {
			cmd.Println("collection is empty")
			return nil
		}

		cmd.Printf("policy keeps the newest %d\n", m.KeepLast())
		for _, name := range plan.Keep {
			cmd.Printf("  keep   %s  %s\n", name, describe(name))
		}
		for _, name := range plan.Prune {
			cmd.Printf("  prune  %s  %s\n", name, describe(name))
		}
		return nil
	},
}

func describe(name string) string {
	ts, ok := archive.ParseTimestamp(name)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s (%s)", ts.Format("2006-01-02 15:04:05"), humanize.Time(ts))
}
