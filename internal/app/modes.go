package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/trustscope/trustscope/internal/server"
	"github.com/trustscope/trustscope/internal/server/handler"
	"github.com/trustscope/trustscope/internal/server/ws"
)

// ScanArgs carries the one-shot scan request for scan mode.
type ScanArgs struct {
	Query  string
	Chains []string
}

// ServerMode runs the HTTP API and WebSocket hub until the context is
// cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	if !a.cfg.Server.Enabled {
		return errors.New("app: server mode requires server.enabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the HTTP API plus the background audit archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	if deps.Archiver != nil {
		interval := a.cfg.Audit.ArchiveInterval.Duration
		g.Go(func() error {
			return deps.Archiver.Run(ctx, interval)
		})
	}

	return g.Wait()
}

// ScanMode performs one scan from the command line and writes the result as
// JSON to stdout. A single chain uses the full pipeline; multiple chains go
// through the multi-chain scanner.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies, args ScanArgs) error {
	if args.Query == "" {
		return errors.New("app: scan mode requires a query")
	}
	if len(args.Chains) == 0 {
		return errors.New("app: scan mode requires at least one chain")
	}

	var result any
	if len(args.Chains) == 1 {
		resp, err := deps.Pipeline.Scan(ctx, args.Query, args.Chains[0])
		if err != nil {
			return fmt.Errorf("app: scan: %w", err)
		}
		result = resp
	} else {
		result = deps.MultiScanner.Scan(ctx, args.Query, args.Chains)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("app: encode scan result: %w", err)
	}
	return nil
}

// startHTTPServer wires the handlers, WebSocket hub and HTTP server into the
// errgroup and arranges a graceful shutdown on context cancellation.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Registry, a.logger),
		Chains: handler.NewChainsHandler(deps.Registry, a.logger),
		Scan:   handler.NewScanHandler(deps.Pipeline, deps.MultiScanner, a.logger),
		Audit:  handler.NewAuditHandler(deps.AuditStore, a.logger),
		Hub:    hub,
	}, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			a.logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}
