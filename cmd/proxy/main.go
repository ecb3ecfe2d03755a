// Command proxy runs the ehash extension's miner-side services: the
// Quote Tracker's minting loop, the faucet rate limiter, and the stats
// publisher. The message interceptor's outgoing hook is not wired into
// this binary. As with the pool binary, the SV1<->SV2 bridge and the
// ecash wallet's cryptographic core are external collaborators; this
// main wires the extension's bookkeeping around them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ehash.dev/pool/config"
	"ehash.dev/pool/quotetracker"
	"ehash.dev/pool/ratelimiter"
	"ehash.dev/pool/statssnapshot"
	"ehash.dev/pool/webread"
)

func main() {
	os.Exit(run())
}

func run() int {
	localPath := flag.String("c", "", "local TOML config path")
	globalPath := flag.String("g", "", "global TOML config path")
	webAddr := flag.String("web-address", "", "override: proxy web read address")
	statsPoolURL := flag.String("stats-pool-url", "", "override: upstream pool stats address")
	dbPath := flag.String("db-path", "", "override: proxy database path")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "proxy: failed to initialize logger:", err)
		return 1
	}
	defer log.Sync() //nolint:errcheck

	var cfg config.Proxy
	if err := config.Load(&cfg, *globalPath, *localPath); err != nil {
		log.Error("proxy: failed to load configuration", zap.Error(err))
		return 1
	}
	if *webAddr != "" {
		cfg.HTTPAddress = *webAddr
	}
	if *statsPoolURL != "" {
		cfg.StatsAddress = *statsPoolURL
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./ehash-proxy.db"
	}
	if envPath := os.Getenv("CDK_MINT_DB_PATH"); envPath != "" {
		cfg.DBPath = envPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker, err := quotetracker.Open(filepath.Clean(cfg.DBPath), log)
	if err != nil {
		log.Error("proxy: failed to open quote tracker database", zap.Error(err))
		return 1
	}
	defer tracker.Close()

	limiter := ratelimiter.New(ratelimiter.DefaultCooldown)
	collector := statssnapshot.NewCollector(15*time.Second, func(s statssnapshot.ProxySnapshot) time.Time { return s.Timestamp }, log)

	wallet := quotetracker.NewDemoWallet(tracker)
	if cfg.MintURL != "" {
		mintClient := quotetracker.NewHTTPMintClient(cfg.MintURL, nil)
		loop := quotetracker.NewMintingLoop(tracker, wallet, mintClient, 0, log)
		go loop.Run(ctx)
	} else {
		log.Warn("proxy: mint_url not configured, minting loop disabled")
	}

	handler := webread.NewProxyRouter(collector, wallet.Balance, limiter, noopFaucet{}, log)

	supplySnapshot := func() (statssnapshot.ProxySnapshot, error) {
		return statssnapshot.ProxySnapshot{
			EhashBalance: wallet.Balance(),
			Timestamp:    time.Now(),
		}, nil
	}
	go feedLocalStats(ctx, collector, supplySnapshot, log)
	if cfg.StatsAddress != "" {
		publisher := statssnapshot.NewPublisher(cfg.StatsAddress, 5*time.Second, supplySnapshot, log)
		stopPublish := make(chan struct{})
		go func() {
			<-ctx.Done()
			close(stopPublish)
		}()
		go publisher.Run(stopPublish)
	}

	var srv *http.Server
	if cfg.HTTPAddress != "" {
		srv = &http.Server{Addr: cfg.HTTPAddress, Handler: handler}
		go func() {
			log.Info("proxy: serving web read layer", zap.String("address", cfg.HTTPAddress))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("proxy: HTTP server failed", zap.Error(err))
			}
		}()
	}

	log.Info("proxy: started", zap.String("db_path", cfg.DBPath))
	<-ctx.Done()
	log.Info("proxy: shutting down")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return 0
}

// feedLocalStats keeps this process's own collector populated even when
// no remote stats-collector publishes back to it, so the proxy's own
// /api/stats read layer reflects live state rather than staying 503
// forever.
func feedLocalStats(ctx context.Context, collector *statssnapshot.Collector[statssnapshot.ProxySnapshot], supply func() (statssnapshot.ProxySnapshot, error), log *zap.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := supply()
			if err != nil {
				log.Warn("proxy: failed to build local stats snapshot", zap.Error(err))
				continue
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				log.Warn("proxy: failed to marshal local stats snapshot", zap.Error(err))
				continue
			}
			collector.Ingest(payload)
		}
	}
}

// noopFaucet stands in for the translator's faucet endpoint until the
// binary is wired against a real translator instance.
type noopFaucet struct{}

func (noopFaucet) CutTokens(ctx context.Context) (int, string, []byte, error) {
	return http.StatusServiceUnavailable, "application/json", []byte(`{"error":"faucet not configured"}`), nil
}
