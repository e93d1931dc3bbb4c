package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/serigela/lifeloop/internal/config"
	"github.com/serigela/lifeloop/internal/store"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ LifeLoop Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 LifeLoop Status")
		fmt.Printf("Version: %s\n", version)

		path, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + path + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (defaults in effect)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:  ✗ Load failed: %v\n", err)
			return
		}

		for _, a := range []struct {
			name string
			ac   config.AgentConfig
		}{
			{"Activity", cfg.Agents.Activity},
			{"Finance", cfg.Agents.Finance},
			{"Email", cfg.Agents.Email},
		} {
			if a.ac.Enabled {
				fmt.Printf("%s: ✓ Enabled\n", a.name)
			} else {
				fmt.Printf("%s: ✗ Disabled\n", a.name)
			}
		}

		dbPath := cfg.Paths.DatabasePath()
		st, err := store.New(dbPath)
		if err != nil {
			fmt.Printf("Store:   ✗ %v\n", err)
			return
		}
		defer st.Close()
		results, insights, err := st.Counts()
		if err != nil {
			fmt.Printf("Store:   ✗ %v\n", err)
			return
		}
		fmt.Printf("Store:   ✓ %s (%d results, %d insights)\n", dbPath, results, insights)

		if cfg.Kafka.Enabled {
			fmt.Printf("Kafka:   ✓ Enabled (%v)\n", cfg.Kafka.Brokers)
		} else {
			fmt.Println("Kafka:   ✗ Disabled")
		}
		if cfg.Slack.Enabled {
			fmt.Println("Slack:   ✓ Enabled")
		} else {
			fmt.Println("Slack:   ✗ Disabled")
		}
		fmt.Println("Status:  Ready")
	},
}
