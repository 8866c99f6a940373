package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"tcr-arena/internal/network"
	"tcr-arena/internal/persistence"
	"tcr-arena/internal/server"
	"tcr-arena/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept websocket players and run matches",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :4000)")
	serveCmd.Flags().Duration("queue-max-wait", 0, "drop players waiting longer than this; 0 waits forever")
	_ = v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("queue.max_wait", serveCmd.Flags().Lookup("queue-max-wait"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	store, err := persistence.NewStore(cfg.StorageDir)
	if err != nil {
		return err
	}

	logger := telemetry.WrapLogger(log.Default())
	srv, err := server.NewServer(server.Config{
		Addr:         cfg.Addr,
		Game:         cfg.Game,
		Recorder:     store,
		Auth:         store,
		QueueMaxWait: cfg.QueueMaxWait,
		WS: network.WSConfig{
			SendBuffer: cfg.SendBuffer,
			WriteWait:  cfg.WriteWait,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(SignalContext(context.Background()))
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown incomplete: %v", err)
	}
	return <-errCh
}
