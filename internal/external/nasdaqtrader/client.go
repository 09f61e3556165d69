// Package nasdaqtrader fetches and parses the Nasdaq Trader symbol
// directory files (nasdaqlisted.txt, otherlisted.txt), the primary
// listing source for the universe.
package nasdaqtrader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wonny/ussymbols/internal/universe"
	"github.com/wonny/ussymbols/pkg/httputil"
	"github.com/wonny/ussymbols/pkg/logger"
)

// Client fetches the symbol directory files over HTTP.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	listedURL  string
	otherURL   string
}

// NewClient creates a Nasdaq Trader directory client.
func NewClient(httpClient *httputil.Client, listedURL, otherURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("source", "nasdaqtrader"),
		listedURL:  listedURL,
		otherURL:   otherURL,
	}
}

// FetchNasdaqListed fetches and parses nasdaqlisted.txt.
func (c *Client) FetchNasdaqListed(ctx context.Context) ([]universe.RawRow, error) {
	text, err := c.fetchText(ctx, c.listedURL)
	if err != nil {
		return nil, err
	}
	return ParseNasdaqListed(text)
}

// FetchOtherListed fetches and parses otherlisted.txt (NYSE, AMEX and the
// regional exchanges).
func (c *Client) FetchOtherListed(ctx context.Context) ([]universe.RawRow, error) {
	text, err := c.fetchText(ctx, c.otherURL)
	if err != nil {
		return nil, err
	}
	return ParseOtherListed(text)
}

// fetchText downloads one directory file. The main host sometimes serves
// an HTML block page with status 200 instead of the pipe-delimited file;
// when the payload fails shape validation the FTP mirror host is tried
// before giving up.
func (c *Client) fetchText(ctx context.Context, url string) (string, error) {
	text, err := c.get(ctx, url)
	if err == nil && looksDelimited(text) {
		return text, nil
	}

	alt := strings.Replace(url, "www.nasdaqtrader.com", "ftp.nasdaqtrader.com", 1)
	if alt == url {
		if err != nil {
			return "", err
		}
		return "", badContentError(text)
	}

	c.logger.WithField("url", url).Warn("Primary host returned unusable content, trying mirror")

	altText, altErr := c.get(ctx, alt)
	if altErr == nil && looksDelimited(altText) {
		return altText, nil
	}

	if err == nil {
		err = badContentError(text)
	}
	return "", fmt.Errorf("mirror fetch also failed: %w (original: %v)", coalesceErr(altErr, badContentError(altText)), err)
}

func (c *Client) get(ctx context.Context, url string) (string, error) {
	resp, err := c.httpClient.GetWithHeaders(ctx, url, map[string]string{
		"Accept": "text/plain, */*",
	})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status code %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return string(body), nil
}

func coalesceErr(err error, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}

// ListedSource adapts FetchNasdaqListed to universe.Source.
type ListedSource struct{ Client *Client }

func (s ListedSource) Name() string { return "nasdaqlisted" }

func (s ListedSource) Fetch(ctx context.Context) ([]universe.RawRow, error) {
	return s.Client.FetchNasdaqListed(ctx)
}

// OtherListedSource adapts FetchOtherListed to universe.Source.
type OtherListedSource struct{ Client *Client }

func (s OtherListedSource) Name() string { return "otherlisted" }

func (s OtherListedSource) Fetch(ctx context.Context) ([]universe.RawRow, error) {
	return s.Client.FetchOtherListed(ctx)
}
