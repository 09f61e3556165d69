// Package screener implements the fallback universe source: the public
// Nasdaq stock screener JSON endpoint, queried once per exchange. The
// endpoint is undocumented and row shapes drift, so parsing is lenient.
package screener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wonny/ussymbols/internal/contracts"
	"github.com/wonny/ussymbols/internal/universe"
	"github.com/wonny/ussymbols/pkg/httputil"
	"github.com/wonny/ussymbols/pkg/logger"
)

// exchanges maps the screener's exchange query parameter to our enum.
var exchanges = []struct {
	param string
	name  contracts.Exchange
}{
	{"nasdaq", contracts.ExchangeNASDAQ},
	{"nyse", contracts.ExchangeNYSE},
	{"amex", contracts.ExchangeAMEX},
}

// rowLimit keeps a single request from truncating the table.
const rowLimit = 20000

// Client fetches the screener tables.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a screener client.
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("source", "screener"),
		baseURL:    baseURL,
	}
}

// Name implements universe.Source.
func (c *Client) Name() string { return "screener" }

// Fetch implements universe.Source: all three exchange tables merged.
// A single empty exchange is tolerated; all three empty is a failure.
func (c *Client) Fetch(ctx context.Context) ([]universe.RawRow, error) {
	var rows []universe.RawRow
	for _, ex := range exchanges {
		exRows, err := c.fetchExchange(ctx, ex.param, ex.name)
		if err != nil {
			c.logger.WithError(err).WithField("exchange", ex.param).Warn("Screener exchange fetch failed")
			continue
		}
		rows = append(rows, exRows...)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("screener returned no rows for any exchange")
	}
	return rows, nil
}

type screenerResponse struct {
	Data struct {
		Rows  []screenerRow `json:"rows"`
		Table struct {
			Rows []screenerRow `json:"rows"`
		} `json:"table"`
		TotalRecords int `json:"totalRecords"`
	} `json:"data"`
}

type screenerRow struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

func (c *Client) fetchExchange(ctx context.Context, param string, exchange contracts.Exchange) ([]universe.RawRow, error) {
	url := fmt.Sprintf("%s?tableonly=true&limit=%d&exchange=%s", c.baseURL, rowLimit, param)

	resp, err := c.httpClient.GetWithHeaders(ctx, url, map[string]string{
		"Accept":  "application/json, text/plain, */*",
		"Origin":  "https://www.nasdaq.com",
		"Referer": "https://www.nasdaq.com/",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch screener %s: %w", param, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("screener %s: unexpected status code %d", param, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read screener %s: %w", param, err)
	}

	var decoded screenerResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode screener %s: %w", param, err)
	}

	// Two known payload shapes: data.rows and data.table.rows.
	raw := decoded.Data.Rows
	if len(raw) == 0 {
		raw = decoded.Data.Table.Rows
	}
	if total := decoded.Data.TotalRecords; total > 0 && len(raw) < total {
		c.logger.WithFields(map[string]interface{}{
			"exchange": param,
			"rows":     len(raw),
			"total":    total,
		}).Warn("Screener results may be truncated")
	}

	rows := make([]universe.RawRow, 0, len(raw))
	for _, r := range raw {
		sym := strings.ToUpper(strings.TrimSpace(r.Symbol))
		if sym == "" {
			continue
		}
		rows = append(rows, universe.RawRow{
			Symbol:       sym,
			SecurityName: strings.TrimSpace(r.Name),
			Exchange:     exchange,
			IsETF:        looksLikeETF(r.Name),
		})
	}
	return rows, nil
}

// looksLikeETF is a name heuristic: screener rows carry no ETF flag.
func looksLikeETF(name string) bool {
	nm := strings.ToUpper(name)
	return strings.Contains(nm, " ETF") || strings.HasSuffix(nm, "ETF") ||
		strings.Contains(nm, " ETN") || strings.HasSuffix(nm, "ETN")
}
