// Command stats-collector-proxy runs the NDJSON stats collector for proxy
// snapshots: it accepts line-delimited JSON over TCP from one or
// more proxy processes, caches the latest snapshot, and serves it over
// HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ehash.dev/pool/config"
	"ehash.dev/pool/statssnapshot"
)

func main() {
	os.Exit(run())
}

func run() int {
	localPath := flag.String("c", "", "local TOML config path")
	globalPath := flag.String("g", "", "global TOML config path")
	tcpAddr := flag.String("tcp-address", "", "override: NDJSON ingest address")
	httpAddr := flag.String("http-address", "", "override: HTTP read address")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "stats-collector-proxy: failed to initialize logger:", err)
		return 1
	}
	defer log.Sync() //nolint:errcheck

	var cfg config.Collector
	if err := config.Load(&cfg, *globalPath, *localPath); err != nil {
		log.Error("stats-collector-proxy: failed to load configuration", zap.Error(err))
		return 1
	}
	if *tcpAddr != "" {
		cfg.TCPAddress = *tcpAddr
	}
	if *httpAddr != "" {
		cfg.HTTPAddress = *httpAddr
	}
	if err := config.RequireNonEmpty(map[string]string{
		"tcp_address":  cfg.TCPAddress,
		"http_address": cfg.HTTPAddress,
	}); err != nil {
		log.Error("stats-collector-proxy: invalid configuration", zap.Error(err))
		return 1
	}

	ln, err := net.Listen("tcp", cfg.TCPAddress)
	if err != nil {
		log.Error("stats-collector-proxy: failed to bind TCP ingest listener", zap.Error(err))
		return 1
	}

	collector := statssnapshot.NewCollector(15*time.Second, func(s statssnapshot.ProxySnapshot) time.Time { return s.Timestamp }, log)
	router := statssnapshot.NewProxyRouter(collector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := collector.Serve(ctx, ln); err != nil {
			log.Error("stats-collector-proxy: ingest listener failed", zap.Error(err))
		}
	}()

	srv := &http.Server{Addr: cfg.HTTPAddress, Handler: router}
	go func() {
		log.Info("stats-collector-proxy: serving HTTP", zap.String("address", cfg.HTTPAddress))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("stats-collector-proxy: HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("stats-collector-proxy: started", zap.String("tcp_address", cfg.TCPAddress))
	<-ctx.Done()
	log.Info("stats-collector-proxy: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return 0
}
