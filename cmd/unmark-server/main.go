package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guiyumin/unmark/internal/core/config"
	"github.com/guiyumin/unmark/internal/core/extractor"
	"github.com/guiyumin/unmark/internal/core/logx"
	"github.com/guiyumin/unmark/internal/core/version"
	"github.com/guiyumin/unmark/internal/server"
)

func main() {
	// Command-line flags
	port := flag.Int("port", 0, "HTTP listen port (default: 5001)")
	configPath := flag.String("config", "", "config file (default: ~/.config/unmark/config.yml)")
	platformsPath := flag.String("platforms", config.PlatformsFileName, "platform overrides file")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("unmark-server %s\n", version.Version)
		return
	}

	logx.Init(logx.Options{})
	log := logx.FromContext(context.Background())

	// Load configuration
	cfg := config.LoadOrDefault()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load config")
		}
		cfg = loaded
	}
	if !config.Exists() && *configPath == "" {
		log.Warn().Msg("no config file found, using defaults; run 'unmark init' to create one")
	}

	platforms, err := config.LoadPlatformsFile(*platformsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load platforms")
	}
	extractor.DefaultRegistry.ApplyOverrides(platforms)

	pipeline := extractor.NewFromConfig(cfg)
	srv := server.NewServer(cfg, *port, pipeline, pipeline.Registry())

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
