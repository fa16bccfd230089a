package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/hookd/internal/api"
	"github.com/mattjoyce/hookd/internal/config"
	"github.com/mattjoyce/hookd/internal/dnspipeline"
	"github.com/mattjoyce/hookd/internal/events"
	"github.com/mattjoyce/hookd/internal/hooks"
	"github.com/mattjoyce/hookd/internal/journal"
	"github.com/mattjoyce/hookd/internal/lock"
	"github.com/mattjoyce/hookd/internal/log"
	"github.com/mattjoyce/hookd/internal/metrics"
	"github.com/mattjoyce/hookd/internal/storage"
)

const eventHubCapacity = 256

func runStart(args []string) int {
	fs, configPath := newFlagSet("start")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("hookd starting", "version", version, "config", cfg.Path)
	if !cfg.Verified {
		logger.Warn("config integrity not verified", "hint", "run 'hookd config checksum'")
	}

	pidLock, err := lock.AcquirePIDLock(cfg.Service.PIDFile)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", cfg.Service.PIDFile, "error", err)
		return 1
	}
	defer func() { _ = pidLock.Release() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger, nil); err != nil {
		logger.Error("hookd stopped with error", "error", err)
		return 1
	}
	logger.Info("hookd stopped")
	return 0
}

// listeners receives the bound addresses of the servers serve starts.
type listeners struct {
	dns chan<- string
	api chan<- string
}

// serve builds the host and runs every enabled component until ctx is
// cancelled or one of them fails. Libraries are unloaded after all
// components have stopped.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, bound *listeners) (err error) {
	var opts []hooks.Option

	var jr *journal.Journal
	if cfg.Journal.Enabled {
		db, err := storage.OpenSQLite(ctx, cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() { _ = db.Close() }()
		if jr, err = journal.New(db, cfg.Journal.Buffer); err != nil {
			return err
		}
		opts = append(opts, hooks.WithObserver(jr))
		logger.Info("dispatch journal enabled", "path", cfg.Journal.Path)
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		m := metrics.New(libraryNames(cfg))
		if jr != nil {
			m.RegisterJournalDropped(jr.Dropped)
		}
		opts = append(opts, hooks.WithObserver(m))
		metricsHandler = m.Handler()
	}

	hub := events.NewHub(eventHubCapacity)
	opts = append(opts, hooks.WithObserver(events.NewObserver(hub, events.SkipLifecycle())))

	rt, err := buildRuntime(cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := rt.close(); uerr != nil {
			logger.Error("library unload failed", "error", uerr)
			if err == nil {
				err = uerr
			}
		}
	}()

	// Everything that can fail is built before the first goroutine starts.
	var dnsServer *dnspipeline.Server
	if cfg.DNS.Enabled {
		if dnsServer, err = newDNSServer(cfg, rt); err != nil {
			return err
		}
	}
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.New(api.Config{Listen: cfg.API.Listen, APIKey: cfg.API.APIKey}, api.Deps{
			Hooks:     rt.host,
			Libraries: libraryNames(cfg),
			Journal:   journalReader(jr),
			Events:    hub,
			Metrics:   metricsHandler,
		}, log.WithComponent("api"))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if jr != nil {
		g.Go(func() error { return jr.Run(gctx) })
	}

	if dnsServer != nil {
		g.Go(func() error {
			if err := dnsServer.Start(gctx); err != nil {
				return fmt.Errorf("dns: %w", err)
			}
			return nil
		})
		if bound != nil && bound.dns != nil {
			go forwardAddr(gctx, dnsServer.Started(), bound.dns)
		}
	}

	if apiServer != nil {
		g.Go(func() error {
			if err := apiServer.Start(gctx); err != nil {
				return fmt.Errorf("api: %w", err)
			}
			return nil
		})
		if bound != nil && bound.api != nil {
			go forwardAddr(gctx, apiServer.Started(), bound.api)
		}
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("hookd running", "libraries", len(cfg.Libraries))
	return g.Wait()
}

func newDNSServer(cfg *config.Config, rt *loadedHost) (*dnspipeline.Server, error) {
	resolver, err := dnspipeline.NewZoneResolver(cfg.DNS.Zone, cfg.DNS.TTL)
	if err != nil {
		return nil, err
	}
	pipeline, err := dnspipeline.New(rt.host, resolver)
	if err != nil {
		return nil, err
	}
	return dnspipeline.NewServer(pipeline, cfg.DNS.Listen, cfg.DNS.Net), nil
}

// journalReader keeps a nil *journal.Journal from becoming a non-nil
// interface.
func journalReader(jr *journal.Journal) api.JournalReader {
	if jr == nil {
		return nil
	}
	return jr
}

func forwardAddr[A fmt.Stringer](ctx context.Context, from <-chan A, to chan<- string) {
	select {
	case a := <-from:
		select {
		case to <- a.String():
		case <-ctx.Done():
		}
	case <-ctx.Done():
	}
}
