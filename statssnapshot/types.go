// Package statssnapshot implements the NDJSON stats-publishing protocol
// between the pool/proxy services and their stats collectors, plus the
// collector's read-only HTTP surface.
package statssnapshot

import "time"

// UpstreamPool describes the proxy's upstream connection, when present.
type UpstreamPool struct {
	Address string `json:"address"`
}

// DownstreamMiner is one miner connected to the proxy.
type DownstreamMiner struct {
	Name            string    `json:"name"`
	ID              string    `json:"id"`
	Address         string    `json:"address"`
	Hashrate        float64   `json:"hashrate"`
	SharesSubmitted uint64    `json:"shares_submitted"`
	ConnectedAt     time.Time `json:"connected_at"`
}

// ProxySnapshot is the proxy's periodic operational snapshot.
type ProxySnapshot struct {
	EhashBalance     uint64            `json:"ehash_balance"`
	UpstreamPool     *UpstreamPool     `json:"upstream_pool,omitempty"`
	DownstreamMiners []DownstreamMiner `json:"downstream_miners"`
	Timestamp        time.Time         `json:"timestamp"`
}

// ServiceInfo is one service the pool exposes (e.g. the SV2 TCP listener,
// the stats publisher).
type ServiceInfo struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// DownstreamProxy is one proxy connected to the pool.
type DownstreamProxy struct {
	ID              string    `json:"id"`
	Address         string    `json:"address"`
	Channels        uint32    `json:"channels"`
	SharesSubmitted uint64    `json:"shares_submitted"`
	QuotesCreated   uint64    `json:"quotes_created"`
	EhashMined      uint64    `json:"ehash_mined"`
	LastShareAt     time.Time `json:"last_share_at"`
}

// PoolSnapshot is the pool's periodic operational snapshot.
type PoolSnapshot struct {
	Services          []ServiceInfo     `json:"services"`
	DownstreamProxies []DownstreamProxy `json:"downstream_proxies"`
	ListenAddress     string            `json:"listen_address"`
	Timestamp         time.Time         `json:"timestamp"`
}
