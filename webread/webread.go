// Package webread implements the proxy's stateless HTTP read layer:
// built on top of the stats collector's cached snapshot, plus the
// wallet balance and faucet passthrough endpoints.
package webread

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"ehash.dev/pool/ratelimiter"
	"ehash.dev/pool/statssnapshot"
)

// FaucetClient is the translator's faucet endpoint this layer proxies
// to. Its response is forwarded verbatim, so the interface hands back
// the raw pieces needed to reconstruct it rather than a parsed type.
type FaucetClient interface {
	CutTokens(ctx context.Context) (statusCode int, contentType string, body []byte, err error)
}

// NewProxyRouter extends the proxy's stats-collector router with the
// two proxy-only endpoints: /balance and /mint/tokens.
func NewProxyRouter(collector *statssnapshot.Collector[statssnapshot.ProxySnapshot], balance func() uint64, limiter *ratelimiter.Limiter, faucet FaucetClient, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := statssnapshot.NewProxyRouter(collector)

	r.HandleFunc("/balance", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]uint64{"balance": balance()})
	}).Methods(http.MethodGet)

	r.HandleFunc("/mint/tokens", func(w http.ResponseWriter, req *http.Request) {
		if err := limiter.Check(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		status, contentType, body, err := faucet.CutTokens(req.Context())
		if err != nil {
			log.Warn("faucet passthrough failed", zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}).Methods(http.MethodPost)

	return r
}
