// Package yahoo queries the price-history vendor for the earliest date it
// has data for a symbol. The chart endpoint's metadata carries the first
// trade timestamp, so one request per symbol resolves the earliest date
// without downloading full history.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wonny/ussymbols/internal/contracts"
	"github.com/wonny/ussymbols/pkg/httputil"
	"github.com/wonny/ussymbols/pkg/logger"
)

// RateLimitError signals that the vendor throttled us. It is distinguishable
// from other transport failures so the enrichment engine can apply its
// backoff policy to the whole batch.
type RateLimitError struct {
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("vendor rate limited (status %d)", e.StatusCode)
}

// Client queries the vendor chart API.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a vendor client. The HTTP client should have its own
// retry disabled; the enrichment engine owns the retry policy.
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("source", "yahoo"),
		baseURL:    baseURL,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				FirstTradeDate *int64 `json:"firstTradeDate"`
			} `json:"meta"`
			Timestamp []int64 `json:"timestamp"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// EarliestDates resolves the earliest data date for each vendor symbol in
// the batch. The returned map has an entry for every requested symbol;
// nil means the vendor was reachable but has no history for it. A rate
// limit aborts the batch with *RateLimitError so the caller can retry the
// batch as a unit.
func (c *Client) EarliestDates(ctx context.Context, vendorSymbols []string) (map[string]*time.Time, error) {
	out := make(map[string]*time.Time, len(vendorSymbols))

	for _, sym := range vendorSymbols {
		date, err := c.earliestDate(ctx, sym)
		if err != nil {
			return nil, err
		}
		out[sym] = date
	}

	return out, nil
}

func (c *Client) earliestDate(ctx context.Context, vendorSymbol string) (*time.Time, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?range=max&interval=1mo", c.baseURL, vendorSymbol)

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", vendorSymbol, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		// Unknown symbol: a legitimate absent outcome, not a failure.
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("query %s: unexpected status code %d", vendorSymbol, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", vendorSymbol, err)
	}

	var decoded chartResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode %s: %w", vendorSymbol, err)
	}

	if decoded.Chart.Error != nil || len(decoded.Chart.Result) == 0 {
		return nil, nil
	}

	result := decoded.Chart.Result[0]
	if result.Meta.FirstTradeDate != nil {
		return contracts.Date(time.Unix(*result.Meta.FirstTradeDate, 0).UTC()), nil
	}
	if len(result.Timestamp) > 0 {
		return contracts.Date(time.Unix(result.Timestamp[0], 0).UTC()), nil
	}
	return nil, nil
}
