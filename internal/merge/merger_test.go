package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ussymbols/internal/contracts"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMergeLeftJoin(t *testing.T) {
	aaaDate := day(2010, 1, 4)
	universe := []contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
		{Symbol: "BBB", SecurityName: "Beta Inc", Exchange: contracts.ExchangeNYSE},
	}
	vendorDates := map[string]contracts.VendorDate{
		"AAA": {Symbol: "AAA", EarliestDate: &aaaDate},
		"BBB": {Symbol: "BBB"}, // checked, no data
	}

	out := Merge(universe, vendorDates, nil, nil)
	require.Len(t, out, 2)

	assert.Equal(t, "AAA", out[0].Symbol)
	require.NotNil(t, out[0].EarliestVendorDate)
	assert.Equal(t, aaaDate, *out[0].EarliestVendorDate)
	assert.True(t, out[0].ListedCurrently)

	assert.Equal(t, "BBB", out[1].Symbol)
	assert.Nil(t, out[1].EarliestVendorDate)
	assert.True(t, out[1].ListedCurrently)
}

func TestMergeIPOOnlySymbolNotListed(t *testing.T) {
	ipos := []contracts.IPORecord{
		{Symbol: "GONE", IPODate: day(2019, 6, 14), Company: "Gone Holdings"},
	}
	out := Merge([]contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
	}, nil, ipos, nil)

	require.Len(t, out, 2)
	assert.Equal(t, "GONE", out[1].Symbol)
	assert.Equal(t, "Gone Holdings", out[1].SecurityName)
	assert.False(t, out[1].ListedCurrently)
	require.NotNil(t, out[1].IPODate)
	assert.Equal(t, day(2019, 6, 14), *out[1].IPODate)
	assert.Empty(t, out[1].Exchange)
}

func TestMergeDuplicateIPOKeepsEarliest(t *testing.T) {
	ipos := []contracts.IPORecord{
		{Symbol: "AAA", IPODate: day(2020, 3, 2), Company: "Acme Corp"},
		{Symbol: "AAA", IPODate: day(2020, 2, 1), Company: "Acme Corp"},
	}
	out := Merge([]contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
	}, nil, ipos, nil)

	require.Len(t, out, 1)
	require.NotNil(t, out[0].IPODate)
	assert.Equal(t, day(2020, 2, 1), *out[0].IPODate)
}

func TestMergeCIKAbsentIsNil(t *testing.T) {
	universe := []contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
		{Symbol: "BBB", SecurityName: "Beta Inc", Exchange: contracts.ExchangeNYSE},
	}
	ciks := map[string]string{"AAA": "0000320193"}

	out := Merge(universe, nil, nil, ciks)
	require.Len(t, out, 2)
	require.NotNil(t, out[0].CIK)
	assert.Equal(t, "0000320193", *out[0].CIK)
	assert.Nil(t, out[1].CIK)
}

func TestMergeDropsCacheOnlySymbols(t *testing.T) {
	old := day(1995, 1, 3)
	vendorDates := map[string]contracts.VendorDate{
		"DEAD": {Symbol: "DEAD", EarliestDate: &old},
	}
	out := Merge([]contracts.SymbolRecord{
		{Symbol: "AAA", SecurityName: "Acme Corp", Exchange: contracts.ExchangeNASDAQ},
	}, vendorDates, nil, nil)

	require.Len(t, out, 1)
	assert.Equal(t, "AAA", out[0].Symbol)
}

func TestMergeOutputSorted(t *testing.T) {
	universe := []contracts.SymbolRecord{
		{Symbol: "ZZZ", SecurityName: "Zeta", Exchange: contracts.ExchangeNYSE},
		{Symbol: "MMM", SecurityName: "Mid", Exchange: contracts.ExchangeNYSE},
	}
	ipos := []contracts.IPORecord{
		{Symbol: "AAA", IPODate: day(2021, 1, 5), Company: "Acme Corp"},
	}
	out := Merge(universe, nil, ipos, nil)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"AAA", "MMM", "ZZZ"},
		[]string{out[0].Symbol, out[1].Symbol, out[2].Symbol})
}
