package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"carousel/internal/config"
	"carousel/internal/daemonrun"
)

func main() {
	var configPath string
	var logLevel string
	var socketPath string
	var diagnostic bool
	flag.StringVar(&configPath, "config", "", "configuration file path")
	flag.StringVar(&logLevel, "log-level", "", "override the configured log level")
	flag.StringVar(&socketPath, "socket", "", "daemon control socket path")
	flag.BoolVar(&diagnostic, "diagnostic", false, "enable diagnostic mode with separate DEBUG logs")
	flag.Parse()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "ensure directories: %v\n", err)
		os.Exit(1)
	}

	if logLevel == "" {
		logLevel = cfg.Logging.Level
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel:   logLevel,
		Diagnostic: diagnostic,
		SocketPath: socketPath,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "carouseld: %v\n", err)
		os.Exit(1)
	}
}
