// comproxy owns one serial port on behalf of feedbackd.
//
// It is normally started by feedbackd with the flags produced by
// comproxy.ServerArgs and serves the line protocol on a Unix socket until
// the parent sends STOP_SERVER or the process is signalled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/feedback-core/internal/controllers/comproxy"
	"github.com/nerrad567/feedback-core/internal/infrastructure/config"
	"github.com/nerrad567/feedback-core/internal/infrastructure/logging"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := comproxy.ParseServerArgs(args)
	if err != nil {
		return fmt.Errorf("parsing arguments: %w", err)
	}

	// stdout is inherited by the parent's log; stay on stderr.
	log := logging.New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	}, version).With("port", cfg.Serial.Name)

	srv := comproxy.NewServer(cfg)
	srv.SetLogger(log)

	log.Info("comproxy starting", "socket", cfg.SocketPath)
	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("serving %s: %w", cfg.SocketPath, err)
	}
	log.Info("comproxy stopped")
	return nil
}
