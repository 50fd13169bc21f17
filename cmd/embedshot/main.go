package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/root4loot/goutils/log"
)

const (
	author  = "@danielantonsen"
	version = "0.1.0"
)

func init() {
	log.Init("embedshot")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCLI().command().ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(1)
	}
}
