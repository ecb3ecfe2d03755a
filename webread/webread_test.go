package webread

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ehash.dev/pool/ratelimiter"
	"ehash.dev/pool/statssnapshot"
)

type fakeFaucet struct {
	status      int
	contentType string
	body        []byte
	err         error
	calls       int
}

func (f *fakeFaucet) CutTokens(ctx context.Context) (int, string, []byte, error) {
	f.calls++
	return f.status, f.contentType, f.body, f.err
}

func newRouter(faucet FaucetClient, limiter *ratelimiter.Limiter) http.Handler {
	collector := statssnapshot.NewCollector(15*time.Second, func(s statssnapshot.ProxySnapshot) time.Time { return s.Timestamp }, nil)
	return NewProxyRouter(collector, func() uint64 { return 123 }, limiter, faucet, nil)
}

func TestBalanceEndpoint(t *testing.T) {
	r := newRouter(&fakeFaucet{}, ratelimiter.New(30*time.Second))

	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var got map[string]uint64
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["balance"] != 123 {
		t.Fatalf("balance = %v, want 123", got)
	}
}

func TestMintTokensForwardsFaucetResponseVerbatim(t *testing.T) {
	faucet := &fakeFaucet{status: http.StatusOK, contentType: "application/json", body: []byte(`{"minted":1}`)}
	r := newRouter(faucet, ratelimiter.New(30*time.Second))

	req := httptest.NewRequest(http.MethodPost, "/mint/tokens", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != `{"minted":1}` {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if faucet.calls != 1 {
		t.Fatalf("expected faucet to be called once, got %d", faucet.calls)
	}
}

func TestMintTokensRateLimitedLocally(t *testing.T) {
	faucet := &fakeFaucet{status: http.StatusOK}
	limiter := ratelimiter.New(30 * time.Second)
	r := newRouter(faucet, limiter)

	req1 := httptest.NewRequest(http.MethodPost, "/mint/tokens", nil)
	rec1 := httptest.NewRecorder()
	r.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/mint/tokens", nil)
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec2.Code)
	}
	if faucet.calls != 1 {
		t.Fatalf("expected faucet not to be called on the rate-limited request, calls=%d", faucet.calls)
	}
}

func TestMintTokensUpstreamErrorReturnsBadGateway(t *testing.T) {
	faucet := &fakeFaucet{err: context.DeadlineExceeded}
	r := newRouter(faucet, ratelimiter.New(30*time.Second))

	req := httptest.NewRequest(http.MethodPost, "/mint/tokens", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}
