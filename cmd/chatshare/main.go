package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sketchni/chatshare/internal/bridge"
	"github.com/sketchni/chatshare/internal/config"
	"github.com/sketchni/chatshare/internal/console"
	"github.com/sketchni/chatshare/internal/diag"
	"github.com/sketchni/chatshare/internal/logging"
	"github.com/sketchni/chatshare/internal/panel"
	"github.com/sketchni/chatshare/internal/relay"
	"github.com/sketchni/chatshare/internal/session"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	debug := flag.Bool("debug", false, "Debug logging (text format, debug level)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Dir:    cfg.Logging.Dir,
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Debug:  *debug,
	})
	defer logging.Shutdown()
	log := logging.ForComponent(logging.CompMain)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	client := panel.NewClient(panel.Config{
		APIURL:             cfg.Panel.APIURL,
		ClientKey:          cfg.Panel.ClientKey,
		ApplicationKey:     cfg.Panel.ApplicationKey,
		Timeout:            cfg.Panel.HTTPTimeout,
		CredentialAttempts: cfg.Relay.CredentialAttempts,
		RetryBase:          cfg.Relay.BackoffBase,
	}, logging.ForComponent(logging.CompPanel))

	instances, err := client.ListServers(ctx)
	if err != nil {
		log.Error("failed to list panel servers", "error", err)
		os.Exit(1)
	}
	log.Info("panel inventory loaded", "servers", len(instances))

	registry := relay.NewRegistry()
	broadcaster := relay.NewBroadcaster(registry,
		cfg.Relay.SendRate, cfg.Relay.SendBurst, logging.ForComponent(logging.CompRelay))
	parser := console.NewParser(logging.ForComponent(logging.CompParser), *debug)
	chatBridge := bridge.NewLogBridge(logging.ForComponent(logging.CompBridge))

	supervisor := session.NewSupervisor(instances, session.Deps{
		Tokens:      client,
		Parser:      parser,
		Registry:    registry,
		Broadcaster: broadcaster,
		Bridge:      chatBridge,
		Config: session.Config{
			WSSURL:            cfg.Panel.WSSURL,
			WingsToken:        cfg.Panel.WingsToken,
			Origin:            cfg.Panel.Origin,
			KeepaliveInterval: cfg.Relay.KeepaliveInterval,
			BackoffBase:       cfg.Relay.BackoffBase,
			BackoffMax:        cfg.Relay.BackoffMax,
		},
		Log: logging.ForComponent(logging.CompSession),
	})
	if supervisor.SessionCount() == 0 {
		log.Error("no bridgeable servers found, nothing to do")
		os.Exit(1)
	}
	log.Info("bridging consoles", "sessions", supervisor.SessionCount())

	if cfg.Diag.Enabled {
		diagSrv := diag.NewServer(cfg.Diag, supervisor, registry, logging.ForComponent(logging.CompDiag))
		go func() {
			if err := diagSrv.Run(ctx); err != nil {
				log.Error("diagnostics server failed", "error", err)
			}
		}()
	}

	if err := supervisor.Run(ctx); err != nil {
		log.Error("supervisor error", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}
