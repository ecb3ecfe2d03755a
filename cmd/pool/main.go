// Command pool runs the ehash extension's pool-side services: the
// Share->Quote Pipeline, the mint-pool messaging hub's carrier, the
// pending-share sweeper, and the stats publisher. The SV2 mining
// protocol itself (message parsing, channel bookkeeping, job templates)
// is supplied by an external SV2 stack this binary links against; this
// main wires the ecash extension around it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ehash.dev/pool/config"
	"ehash.dev/pool/mintpoolhub"
	"ehash.dev/pool/pendingshare"
	"ehash.dev/pool/quotepipeline"
	"ehash.dev/pool/statssnapshot"
	"ehash.dev/pool/sv2ext"
)

// Hub connection slots: the carrier owns the wire and relays both
// directions; a second slot subscribes only to feed responses/errors
// back into the pipeline, independent of whether a carrier is dialed.
const (
	mintCarrierConnID uint64 = 1
	quoteFeederConnID uint64 = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	localPath := flag.String("c", "", "local TOML config path")
	globalPath := flag.String("g", "", "global TOML config path")
	tcpAddr := flag.String("tcp-address", "", "override: SV2 TCP listen address")
	httpAddr := flag.String("http-address", "", "override: pool HTTP read address")
	dbPath := flag.String("db-path", "", "override: pool database path")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pool: failed to initialize logger:", err)
		return 1
	}
	defer log.Sync() //nolint:errcheck

	var cfg config.Pool
	if err := config.Load(&cfg, *globalPath, *localPath); err != nil {
		log.Error("pool: failed to load configuration", zap.Error(err))
		return 1
	}
	if *tcpAddr != "" {
		cfg.TCPAddress = *tcpAddr
	}
	if *httpAddr != "" {
		cfg.HTTPAddress = *httpAddr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if err := config.RequireNonEmpty(map[string]string{
		"tcp_address": cfg.TCPAddress,
	}); err != nil {
		log.Error("pool: invalid configuration", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pending := pendingshare.New(nil)
	hub := mintpoolhub.New(mintpoolhub.DefaultConfig(), log)

	downstream := &channelRouter{log: log}
	pipeline := quotepipeline.New(pending, hub, downstream, log)

	collector := statssnapshot.NewCollector(15*time.Second, func(s statssnapshot.PoolSnapshot) time.Time { return s.Timestamp }, log)
	router := statssnapshot.NewPoolRouter(collector)

	hub.RegisterConnection(quoteFeederConnID, mintpoolhub.RolePool)
	go feedQuoteResponses(ctx, hub, pipeline, quoteFeederConnID)
	go feedQuoteErrors(ctx, hub, pipeline, quoteFeederConnID)

	if cfg.MintHubAddr != "" {
		carrier := mintpoolhub.NewCarrier(hub, mintpoolhub.DefaultConfig(), mintCarrierConnID, cfg.MintHubAddr, log)
		go carrier.Run(ctx)
	}

	supplySnapshot := func() (statssnapshot.PoolSnapshot, error) {
		return statssnapshot.PoolSnapshot{
			Services: []statssnapshot.ServiceInfo{
				{Type: "sv2_tcp", Address: cfg.TCPAddress},
			},
			ListenAddress: cfg.TCPAddress,
			Timestamp:     time.Now(),
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

	go sweepLoop(ctx, pipeline, log)

	if cfg.HTTPAddress != "" {
		srv := &http.Server{Addr: cfg.HTTPAddress, Handler: router}
		go func() {
			log.Info("pool: serving HTTP read layer", zap.String("address", cfg.HTTPAddress))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("pool: HTTP server failed", zap.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info("pool: started", zap.String("tcp_address", cfg.TCPAddress))
	<-ctx.Done()
	log.Info("pool: shutting down")
	return 0
}

// channelRouter is a placeholder Downstream that logs delivery targets;
// the real routing table (channel_id -> connection) lives in the
// external SV2 stack's channel manager and is wired in at integration
// time.
type channelRouter struct {
	log *zap.Logger
}

func (c *channelRouter) DeliverNotification(channelID uint32, note sv2ext.MintQuoteNotification) error {
	c.log.Info("pool: quote notification ready for delivery",
		zap.Uint32("channel_id", channelID), zap.String("quote_id", note.QuoteID))
	return nil
}

func (c *channelRouter) DeliverFailure(channelID uint32, fail sv2ext.MintQuoteFailure) error {
	c.log.Warn("pool: quote failure ready for delivery",
		zap.Uint32("channel_id", channelID), zap.String("error_message", fail.ErrorMessage))
	return nil
}

// feedQuoteResponses drains the hub's response stream and hands each
// message to the pipeline for correlation, until ctx is cancelled.
func feedQuoteResponses(ctx context.Context, hub *mintpoolhub.Hub, pipeline *quotepipeline.Pipeline, connID uint64) {
	for {
		resp, err := hub.ReceiveQuoteResponse(ctx, connID, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		pipeline.HandleQuoteResponse(resp)
	}
}

// feedQuoteErrors drains the hub's error stream and hands each message
// to the pipeline for correlation, until ctx is cancelled.
func feedQuoteErrors(ctx context.Context, hub *mintpoolhub.Hub, pipeline *quotepipeline.Pipeline, connID uint64) {
	for {
		errMsg, err := hub.ReceiveQuoteError(ctx, connID, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		pipeline.HandleQuoteError(errMsg)
	}
}

// feedLocalStats keeps this process's own collector populated even when
// no remote stats-collector publishes back to it, so the pool's own
// /api/stats read layer reflects live state rather than staying 503
// forever.
func feedLocalStats(ctx context.Context, collector *statssnapshot.Collector[statssnapshot.PoolSnapshot], supply func() (statssnapshot.PoolSnapshot, error), log *zap.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := supply()
			if err != nil {
				log.Warn("pool: failed to build local stats snapshot", zap.Error(err))
				continue
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				log.Warn("pool: failed to marshal local stats snapshot", zap.Error(err))
				continue
			}
			collector.Ingest(payload)
		}
	}
}

func sweepLoop(ctx context.Context, pipeline *quotepipeline.Pipeline, log *zap.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stale := pipeline.SweepStale(20 * time.Second)
			if len(stale) > 0 {
				log.Info("pool: swept stale pending shares", zap.Int("count", len(stale)))
			}
		}
	}
}
