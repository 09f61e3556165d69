// Package sec fetches the SEC company_tickers.json mapping for optional
// CIK enrichment of the universe.
package sec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wonny/ussymbols/pkg/httputil"
	"github.com/wonny/ussymbols/pkg/logger"
)

// Client fetches the SEC ticker→CIK map.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	url        string
}

// NewClient creates a SEC client. The SEC blocks anonymous default agents,
// so the shared configured User-Agent matters here.
func NewClient(httpClient *httputil.Client, url string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("source", "sec"),
		url:        url,
	}
}

// companyTicker is one entry of company_tickers.json, which is an object
// keyed by row index: {"0": {"cik_str": 320193, "ticker": "AAPL", ...}, ...}.
type companyTicker struct {
	CIK    json.Number `json:"cik_str"`
	Ticker string      `json:"ticker"`
	Title  string      `json:"title"`
}

// FetchCIKMap returns canonical symbol → CIK string. The CIK keeps the
// SEC's numeric form without zero padding.
func (c *Client) FetchCIKMap(ctx context.Context) (map[string]string, error) {
	resp, err := c.httpClient.GetWithHeaders(ctx, c.url, map[string]string{
		"Accept": "application/json, text/plain, */*",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch SEC tickers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SEC tickers: unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read SEC tickers: %w", err)
	}

	var entries map[string]companyTicker
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode SEC tickers: %w", err)
	}

	out := make(map[string]string, len(entries))
	for _, e := range entries {
		sym := strings.ToUpper(strings.TrimSpace(e.Ticker))
		if sym == "" || e.CIK.String() == "" {
			continue
		}
		out[sym] = e.CIK.String()
	}

	c.logger.WithField("count", len(out)).Debug("Fetched CIK map")
	return out, nil
}
