// Package cmd carries the startup plumbing shared by the casemgmt
// binaries: environment-backed config loading, flag parsing, and the
// telemetry-wrapped run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/mdproctor/casemgmt/internal/platform/config"
	"github.com/mdproctor/casemgmt/internal/platform/otel"
)

// Binary names, used as the telemetry service identifier.
const (
	ServiceDaemon = "casemgmtd"
	ServiceCtl    = "casectl"
)

const otelShutdownGrace = 5 * time.Second

// ParseConfig fills cfg from environment variables and struct defaults.
// Call it before registering flags so flag defaults pick up env values.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses args with fs. A nil args slice is treated as empty.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	return fs.Parse(args)
}

// RunWithTelemetry installs the OTel tracer for the named service,
// invokes run, and flushes telemetry on the way out. Shutdown gets its
// own deadline so a cancelled ctx does not lose buffered spans.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), otelShutdownGrace)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()

	return run(ctx)
}
