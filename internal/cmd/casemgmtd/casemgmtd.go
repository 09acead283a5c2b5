// Package casemgmtd parses daemon flags and starts the case management runtime.
package casemgmtd

import (
	"context"
	"flag"

	server "github.com/mdproctor/casemgmt/internal/casemgmt/app"
	entrypoint "github.com/mdproctor/casemgmt/internal/platform/cmd"
)

// Config holds daemon command configuration.
type Config struct {
	Port int    `env:"CASEMGMT_PORT" envDefault:"8080"`
	Addr string `env:"CASEMGMT_ADDR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The case management server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The case management server listen address (overrides -port)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the case management daemon.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDaemon, func(context.Context) error {
		if cfg.Addr != "" {
			return server.RunWithAddr(ctx, cfg.Addr)
		}
		return server.Run(ctx, cfg.Port)
	})
}
