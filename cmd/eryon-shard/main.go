package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"eryon/internal/assistant"
	"eryon/internal/bus"
	"eryon/internal/config"
	"eryon/internal/gemini"
	"eryon/internal/geo"
	"eryon/internal/proxy"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	configPath := cli.StringP("config", "c", "eryon.yaml", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	url := cli.StringP("url", "u", "", "Bus url, overrides config")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Starting Eryon shard")

	godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		os.Exit(1)
	}
	if *url != "" {
		cfg.Bus.URL = *url
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient, err := proxy.NewHTTPClient(cfg.Proxy)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
		os.Exit(1)
	}

	svc, err := gemini.New(ctx, gemini.Options{
		APIKey:     cfg.APIKey,
		HTTPClient: httpClient,
		Models:     cfg.Models,
		Voices:     cfg.Voices,
		Video:      cfg.Video,
	})
	if err != nil {
		log.Error("Failed to create client", "err", err)
		os.Exit(1)
	}
	if err := svc.StartChat(ctx, cfg.SystemPrompt); err != nil {
		log.Error("Failed to start chat", "err", err)
		os.Exit(1)
	}

	locator, err := geo.NewStatic(cfg.Maps.Location, cfg.Maps.Disabled)
	if err != nil {
		log.Error("Bad maps location", "location", cfg.Maps.Location, "err", err)
		os.Exit(1)
	}

	asst := assistant.New(assistant.Options{
		Service:   svc,
		Locator:   locator,
		OutputDir: cfg.OutputDir,
	})

	client, err := bus.Dial(ctx, cfg.Bus.URL, cfg.Bus.Reconnect)
	if err != nil {
		log.Error("Failed to connect to bus", "url", cfg.Bus.URL, "err", err)
		os.Exit(1)
	}

	log.Info("Serving as shard", "shard", cfg.Bus.Shard)

	if err := bus.Serve(ctx, client, cfg.Bus.Shard, newHandler(cfg.Bus.Shard, asst, svc)); err != nil {
		log.Error("Bus failed", "err", err)
		os.Exit(1)
	}

	log.Info("Bye")
}
