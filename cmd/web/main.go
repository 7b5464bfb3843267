package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jira-flow-metrics/config"
	"jira-flow-metrics/logging"
	"jira-flow-metrics/web"
)

func main() {
	// Parse command line flags
	var configPath string
	var port int
	flag.StringVar(&configPath, "config", "", "Path to the YAML config file (default ./jira-flow.yaml)")
	flag.IntVar(&port, "port", 0, "Port to run the server on (overrides server.port)")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := web.Run(ctx, configPath, cfg, fmt.Sprintf(":%d", cfg.Server.Port), log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
