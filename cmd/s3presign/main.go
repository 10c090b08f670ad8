package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(newClient)
	err := a.rootCmd().ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		slog.Error("close client", "error", cerr)
	}
	if err != nil {
		return 1
	}
	return 0
}
