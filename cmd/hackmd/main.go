package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"hackmd-go/internal/app"
	"hackmd-go/internal/commands"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Execute(ctx, version, app.New, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
