package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tcr-arena/internal/client"
)

// dashboard is the screen tcr-top drives.
type dashboard interface {
	Init() error
	Close()
	Run(ctx context.Context, updates <-chan client.Update) error
}

var newDashboard = func(serverURL string) dashboard {
	return client.NewTermboxUI(serverURL)
}

var (
	serverURL string
	interval  time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "tcr-top",
	Short:         "Live terminal view of a running arena server",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTop,
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", client.DefaultServerURL, "base URL of the arena server")
	rootCmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval")
}

func runTop(cmd *cobra.Command, args []string) error {
	if interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", interval)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.NewClient(serverURL)
	if err := c.Health(ctx); err != nil {
		log.Printf("Server %s not healthy yet: %v", c.BaseURL, err)
	}

	ui := newDashboard(c.BaseURL)
	if err := ui.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer ui.Close()

	return ui.Run(ctx, c.Watch(ctx, interval))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
