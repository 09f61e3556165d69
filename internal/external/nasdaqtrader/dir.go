package nasdaqtrader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wonny/ussymbols/internal/universe"
)

// DirSource reads local copies of nasdaqlisted.txt and otherlisted.txt
// from a directory instead of the network. Useful behind restrictive
// proxies or for reproducible runs.
type DirSource struct {
	Dir  string
	File string // nasdaqlisted.txt or otherlisted.txt
}

func (s DirSource) Name() string { return "dir:" + s.File }

func (s DirSource) Fetch(ctx context.Context) ([]universe.RawRow, error) {
	path := filepath.Join(s.Dir, s.File)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if s.File == "otherlisted.txt" {
		return ParseOtherListed(string(data))
	}
	return ParseNasdaqListed(string(data))
}

// DirSources returns the two directory-file sources in priority order.
func DirSources(dir string) []universe.Source {
	return []universe.Source{
		DirSource{Dir: dir, File: "nasdaqlisted.txt"},
		DirSource{Dir: dir, File: "otherlisted.txt"},
	}
}
