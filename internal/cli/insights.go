package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/serigela/lifeloop/internal/config"
	"github.com/serigela/lifeloop/internal/store"
)

var insightsLimit int

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show recent insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		st, err := store.New(cfg.Paths.DatabasePath())
		if err != nil {
			return err
		}
		defer st.Close()

		insights, err := st.RecentInsights(insightsLimit)
		if err != nil {
			return err
		}
		if len(insights) == 0 {
			fmt.Println("No insights yet. Is 'lifeloop run' active?")
			return nil
		}

		for _, in := range insights {
			header := in.Window.Format("2006-01-02 15:04")
			if in.Partial {
				header += color.YellowString(" (partial, missing: %s)", strings.Join(in.Missing, ", "))
			}
			fmt.Println(color.CyanString(header))
			fmt.Println("  " + in.Summary)
			for _, rec := range in.Recommendations {
				fmt.Println("  • " + rec)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	insightsCmd.Flags().IntVar(&insightsLimit, "limit", 10, "Maximum number of insights to show")
}
