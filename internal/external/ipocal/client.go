// Package ipocal fetches the Nasdaq IPO pricing calendar month by month.
// Monthly payloads are cached on disk because historical months never
// change; only the current month is refetched.
package ipocal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/ussymbols/internal/cache"
	"github.com/wonny/ussymbols/internal/contracts"
	"github.com/wonny/ussymbols/pkg/httputil"
	"github.com/wonny/ussymbols/pkg/logger"
)

// Client fetches the IPO calendar.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	cacheDir   string
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewClient creates an IPO calendar client. cacheDir holds one JSON file
// per month; pass an empty string to disable the month cache.
func NewClient(httpClient *httputil.Client, baseURL, cacheDir string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("source", "ipocal"),
		baseURL:    baseURL,
		cacheDir:   cacheDir,
		// Two calendar requests per second keeps the endpoint happy.
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		now:     time.Now,
	}
}

type monthResponse struct {
	Data struct {
		Priced struct {
			Rows []monthRow `json:"rows"`
		} `json:"priced"`
	} `json:"data"`
}

type monthRow struct {
	Symbol         string `json:"symbol"`
	ProposedSymbol string `json:"proposedTickerSymbol"`
	Priced         string `json:"priced"`
	Date           string `json:"date"`
	CompanyName    string `json:"companyName"`
}

// FetchRange returns all priced IPOs from January of startYear through the
// current month, deduplicated on (symbol, date). A failed month is logged
// and skipped so one bad payload cannot lose the whole calendar.
func (c *Client) FetchRange(ctx context.Context, startYear int) ([]contracts.IPORecord, error) {
	end := c.now().UTC()
	if startYear > end.Year() {
		return nil, fmt.Errorf("IPO start year %d is in the future", startYear)
	}

	var out []contracts.IPORecord
	seen := make(map[string]bool)

	for year := startYear; year <= end.Year(); year++ {
		for month := time.January; month <= time.December; month++ {
			if year == end.Year() && month > end.Month() {
				break
			}
			rows, err := c.fetchMonth(ctx, year, month)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil, err
				}
				c.logger.WithError(err).Warnf("IPO month %d-%02d failed, skipping", year, month)
				continue
			}
			for _, rec := range rows {
				key := rec.Symbol + "|" + rec.IPODate.Format(contracts.DateLayout)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, rec)
			}
		}
	}

	c.logger.WithField("count", len(out)).Info("Fetched IPO calendar")
	return out, nil
}

// fetchMonth returns the priced IPOs for one month, via the month cache
// when possible. The current month is always fetched fresh because it is
// still accumulating pricings.
func (c *Client) fetchMonth(ctx context.Context, year int, month time.Month) ([]contracts.IPORecord, error) {
	current := c.now().UTC()
	isCurrentMonth := year == current.Year() && month == current.Month()

	var cachePath string
	if c.cacheDir != "" {
		cachePath = filepath.Join(c.cacheDir, "nasdaq_ipo", fmt.Sprintf("%d-%02d.json", year, month))
	}

	if cachePath != "" && !isCurrentMonth {
		if data, err := os.ReadFile(cachePath); err == nil {
			return parseMonth(data)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s?date=%d-%02d", c.baseURL, year, month)
	resp, err := c.httpClient.GetWithHeaders(ctx, url, map[string]string{
		"Accept":  "application/json, text/plain, */*",
		"Origin":  "https://www.nasdaq.com",
		"Referer": "https://www.nasdaq.com/",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch IPO month: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("IPO month %d-%02d: unexpected status code %d", year, month, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read IPO month: %w", err)
	}

	records, err := parseMonth(body)
	if err != nil {
		return nil, err
	}

	if cachePath != "" && !isCurrentMonth {
		if err := cache.WriteAtomic(cachePath, func(w io.Writer) error {
			_, werr := w.Write(body)
			return werr
		}); err != nil {
			c.logger.WithError(err).Warn("Could not cache IPO month")
		}
	}

	return records, nil
}

func parseMonth(data []byte) ([]contracts.IPORecord, error) {
	var decoded monthResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode IPO month: %w", err)
	}

	var out []contracts.IPORecord
	for _, row := range decoded.Data.Priced.Rows {
		sym := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if sym == "" {
			sym = strings.ToUpper(strings.TrimSpace(row.ProposedSymbol))
		}
		dateStr := strings.TrimSpace(row.Priced)
		if dateStr == "" {
			dateStr = strings.TrimSpace(row.Date)
		}
		if sym == "" || dateStr == "" {
			continue
		}

		date, err := parseCalendarDate(dateStr)
		if err != nil {
			continue
		}

		out = append(out, contracts.IPORecord{
			Symbol:  sym,
			IPODate: date,
			Company: strings.TrimSpace(row.CompanyName),
		})
	}
	return out, nil
}

// parseCalendarDate accepts the formats the calendar has been seen to use.
func parseCalendarDate(s string) (time.Time, error) {
	for _, layout := range []string{"01/02/2006", contracts.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized IPO date %q", s)
}
