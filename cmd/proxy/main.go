// Command proxy is the ferry entry point: load the config file, build the
// shared managers, bring up every configured inbound listener, and run
// until SIGINT/SIGTERM. A listener that fails is logged while the others
// keep running; the process returns once every listener has exited.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/renmatsu/ferry/internal/config"
	"github.com/renmatsu/ferry/internal/inbound/httpin"
	"github.com/renmatsu/ferry/internal/inbound/socks5in"
	"github.com/renmatsu/ferry/internal/logging"
	"github.com/renmatsu/ferry/internal/registry"
	"github.com/renmatsu/ferry/pkg/banner"

	_ "go.uber.org/automaxprocs"
)

// inbound is anything cmd/proxy can bring up from a config.Endpoint: both
// httpin.Acceptor and socks5in.Acceptor satisfy this.
type inbound interface {
	Serve(ctx context.Context) error
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "ferry:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, rules, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Info)
	managers := registry.Build(cfg, rules)

	banner.Print(time.Now())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Each inbound gets its own listener and its own fate: one dying never
	// cancels ctx for the others (spec.md §7 — "that inbound is dead;
	// others continue"). Only SIGINT/SIGTERM, via ctx, brings all of them
	// down together.
	var wg sync.WaitGroup
	for _, endpoint := range cfg.Inbound {
		var a inbound
		switch endpoint.Type {
		case config.ProtocolHTTP:
			a = httpin.New(endpoint, managers, log)
		case config.ProtocolSocks5:
			a = socks5in.New(endpoint, managers, log)
		default:
			return fmt.Errorf("unknown inbound protocol %q on %q", endpoint.Type, endpoint.Name)
		}

		endpoint := endpoint
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Serve(ctx); err != nil {
				log.Error().Err(err).Str("inbound", endpoint.Name).Msg("inbound listener exited")
			}
		}()
		banner.PrintInbound(endpoint.Name, string(endpoint.Type), endpoint.Addr())
	}

	wg.Wait()
	return nil
}
