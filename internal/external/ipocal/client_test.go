package ipocal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	payload := `{
		"data": {
			"priced": {
				"rows": [
					{"symbol": "ABCD", "priced": "05/15/1997", "companyName": "Alpha Beta Corp"},
					{"proposedTickerSymbol": "efgh", "date": "2020-07-01", "companyName": "Echo Foxtrot Inc"},
					{"symbol": "", "priced": "", "companyName": "No Symbol Listed"},
					{"symbol": "BAD", "priced": "someday", "companyName": "Unparseable Date Co"}
				]
			}
		}
	}`

	records, err := parseMonth([]byte(payload))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "ABCD", records[0].Symbol)
	assert.Equal(t, time.Date(1997, 5, 15, 0, 0, 0, 0, time.UTC), records[0].IPODate)
	assert.Equal(t, "Alpha Beta Corp", records[0].Company)

	assert.Equal(t, "EFGH", records[1].Symbol, "proposed ticker is upper-cased fallback")
	assert.Equal(t, time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC), records[1].IPODate)
}

func TestParseMonthBadJSON(t *testing.T) {
	_, err := parseMonth([]byte("<html>blocked</html>"))
	require.Error(t, err)
}
