package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/serigela/lifeloop/internal/config"
	"github.com/serigela/lifeloop/internal/runtime"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent loop",
	RunE:  runLoop,
}

func runLoop(cmd *cobra.Command, args []string) error {
	printHeader("🔁 LifeLoop Run")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Start(ctx); err != nil {
		return err
	}
	fmt.Println("Running. Press Ctrl+C to stop.")

	<-ctx.Done()
	fmt.Println("\nShutting down...")
	rt.Stop()
	return nil
}
