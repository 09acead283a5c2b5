// Package main provides the case management operator CLI.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	ctlcmd "github.com/mdproctor/casemgmt/internal/cmd/casectl"
	"github.com/mdproctor/casemgmt/internal/platform/config"
)

func main() {
	cfg, err := ctlcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctlcmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
