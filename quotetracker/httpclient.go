package quotetracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPMintClient is the concrete MintClient: it owns the URL building,
// CSV encoding, and JSON decoding for the mint's HTTP surface. The
// mint's own cryptographic core is the external collaborator this
// client talks to; everything in this file is this tracker's own
// responsibility.
type HTTPMintClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPMintClient builds a client against baseURL (e.g.
// "http://localhost:3338"). A nil client defaults to a 10s-timeout
// http.Client.
func NewHTTPMintClient(baseURL string, client *http.Client) *HTTPMintClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPMintClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// ResolveShareUUIDs issues one batch GET to
// /v1/mint/quote-ids/share?share_hashes=<csv> and returns the mint's
// quote_id -> uuid mapping. Quote ids the mint doesn't recognize are
// simply absent from the result, not an error.
func (c *HTTPMintClient) ResolveShareUUIDs(ctx context.Context, quoteIDs []string) (map[string]string, error) {
	if len(quoteIDs) == 0 {
		return map[string]string{}, nil
	}

	u := fmt.Sprintf("%s/v1/mint/quote-ids/share?share_hashes=%s", c.baseURL, url.QueryEscape(strings.Join(quoteIDs, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quotetracker: quote-ids/share returned %s", resp.Status)
	}

	var resolved map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&resolved); err != nil {
		return nil, fmt.Errorf("quotetracker: decoding quote-ids/share response: %w", err)
	}
	return resolved, nil
}

// GetMiningShareProofs asks the mint to redeem uuid's blinded signatures
// into spendable proofs for quoteID, the HTTP-facing half of the
// wallet's get_mining_share_proofs step (the actual proof unblinding
// happens in the wallet's own cryptographic core, not here).
func (c *HTTPMintClient) GetMiningShareProofs(ctx context.Context, uuid, quoteID string) error {
	body := strings.NewReader(fmt.Sprintf(`{"uuid":%q,"quote_id":%q}`, uuid, quoteID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/mint/mining-share-proofs", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("quotetracker: mining-share-proofs returned %s", resp.Status)
	}
	return nil
}

// CutDemoToken triggers the minting loop's demo 1-unit token cut.
func (c *HTTPMintClient) CutDemoToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/mint/demo-cut", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("quotetracker: demo-cut returned %s", resp.Status)
	}
	return nil
}
