package universe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ussymbols/internal/contracts"
)

func writeSymbolsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSourceFetch(t *testing.T) {
	path := writeSymbolsFile(t, "Symbol,SecurityName,Exchange\nAAA,Acme Corp,NASDAQ\nBBB,Beta Inc,NYSE\n")
	src := &FileSource{Path: path}

	rows, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAA", rows[0].Symbol)
	assert.Equal(t, "Acme Corp", rows[0].SecurityName)
	assert.Equal(t, contracts.ExchangeNYSE, rows[1].Exchange)
}

func TestFileSourceSymbolColumnOnly(t *testing.T) {
	path := writeSymbolsFile(t, "Symbol\nAAA\n\nBBB\n")
	src := &FileSource{Path: path}

	rows, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Empty(t, rows[0].SecurityName)
}

func TestFileSourceUppercasesSymbols(t *testing.T) {
	path := writeSymbolsFile(t, "Symbol\naapl\nBrk.b\n")
	src := &FileSource{Path: path}

	rows, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Equal(t, "BRK.B", rows[1].Symbol)
}

func TestFileSourceMissingSymbolColumn(t *testing.T) {
	path := writeSymbolsFile(t, "Ticker,Name\nAAA,Acme Corp\n")
	src := &FileSource{Path: path}

	_, err := src.Fetch(context.Background())
	assert.Error(t, err)
}
