package nasdaqtrader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ussymbols/internal/contracts"
)

const nasdaqListedSample = `Symbol|Security Name|Market Category|Test Issue|Financial Status|Round Lot Size|ETF|NextShares
AAPL|Apple Inc. - Common Stock|Q|N|N|100|N|N
QQQ|Invesco QQQ Trust, Series 1|G|N|N|100|Y|N
ZVZZT|NASDAQ TEST STOCK|G|Y|N|100|N|N
File Creation Time: 0814202517:31|||||||
`

const otherListedSample = `ACT Symbol|Security Name|Exchange|CUSIP|ETF|Round Lot Size|Test Issue|NASDAQ Symbol
BRK.B|Berkshire Hathaway Inc. Class B|N|084670702|N|100|N|BRK=B
IBM|International Business Machines Corporation|N||N|100|N|IBM
CQP|Cheniere Energy Partners LP|A||N|100|N|CQP
SPY|SPDR S&P 500 ETF Trust|P||Y|100|N|SPY
File Creation Time: 0814202517:31|||||||
`

func TestParseNasdaqListed(t *testing.T) {
	rows, err := ParseNasdaqListed(nasdaqListedSample)
	require.NoError(t, err)
	require.Len(t, rows, 3, "footer line must be dropped, data rows kept")

	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Equal(t, "Apple Inc. - Common Stock", rows[0].SecurityName)
	assert.Equal(t, contracts.ExchangeNASDAQ, rows[0].Exchange)
	assert.False(t, rows[0].IsETF)
	assert.False(t, rows[0].IsTestIssue)

	assert.True(t, rows[1].IsETF, "ETF flag column")
	assert.True(t, rows[2].IsTestIssue, "test issue flag column")
}

func TestParseOtherListed(t *testing.T) {
	rows, err := ParseOtherListed(otherListedSample)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "BRK.B", rows[0].Symbol, "canonical form keeps the listing notation")
	assert.Equal(t, contracts.ExchangeNYSE, rows[0].Exchange)
	assert.Equal(t, contracts.ExchangeAMEX, rows[2].Exchange)
	assert.Equal(t, contracts.ExchangeOther, rows[3].Exchange, "ARCA maps to OTHER")
	assert.True(t, rows[3].IsETF)
}

func TestParseRejectsHTMLErrorPage(t *testing.T) {
	html := `<html><head><title>Access Denied</title></head><body>blocked</body></html>`

	_, err := ParseNasdaqListed(html)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadContent), "soft failure must map to ErrBadContent")
	assert.Contains(t, err.Error(), "Access Denied", "HTML title should surface in the diagnostic")
}

func TestParseRejectsTruncatedPayload(t *testing.T) {
	_, err := ParseNasdaqListed("Symbol|Security Name\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadContent))
}

func TestParseRejectsMissingColumns(t *testing.T) {
	_, err := ParseOtherListed("Foo|Bar\nAAA|Acme\nBBB|Beta\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadContent))
}

func TestLooksDelimited(t *testing.T) {
	assert.True(t, looksDelimited(nasdaqListedSample))
	assert.False(t, looksDelimited("<html><body>nope</body></html>"))
	assert.False(t, looksDelimited(""))
}
