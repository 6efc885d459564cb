package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-kstore/internal/cli"
	"github.com/goliatone/go-kstore/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("kstore: %v", err)
	}
	logger := cfg.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := cli.New(cfg, cli.WithLogger(logger))
	runErr := app.Command().ExecuteContext(ctx)
	closeErr := app.Close()
	stop()

	if runErr != nil {
		config.Exitf("kstore: %v", runErr)
	}
	if closeErr != nil {
		config.Exitf("kstore: close: %v", closeErr)
	}
}
