package stats

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geomap/internal/fetcher"
)

// FileSource reads statistics from CSV or XLSX files, local or remote.
// All values are strings.
type FileSource struct {
	router    *fetcher.Router
	delimiter rune
	tempDir   string
}

// NewFileSource creates a FileSource.
func NewFileSource(router *fetcher.Router, delimiter rune, tempDir string) *FileSource {
	return &FileSource{router: router, delimiter: delimiter, tempDir: tempDir}
}

// IsFileRef reports whether tableID names a tabular file rather than a
// remote table identifier.
func IsFileRef(tableID string) bool {
	p := tableID
	if i := strings.IndexAny(p, "?#"); i >= 0 && fetcher.Scheme(tableID) != "" {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Table implements Source.
func (s *FileSource) Table(ctx context.Context, tableID string) (*Table, error) {
	var (
		tbl *fetcher.Table
		err error
	)
	if strings.EqualFold(path.Ext(fetcher.LocalPath(tableID)), ".xlsx") {
		tbl, err = s.readXLSX(ctx, tableID)
	} else {
		tbl, err = s.readCSV(ctx, tableID)
	}
	if err != nil {
		return nil, err
	}

	t := &Table{ID: tableID, Columns: tbl.Header, Records: make([]Record, 0, len(tbl.Rows))}
	for _, row := range tbl.Rows {
		rec := make(Record, len(tbl.Header))
		for i, col := range tbl.Header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = nil
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

func (s *FileSource) readCSV(ctx context.Context, ref string) (*fetcher.Table, error) {
	rc, err := s.router.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	return fetcher.ReadCSV(ctx, rc, fetcher.CSVOptions{Delimiter: s.delimiter, TrimSpace: true, LazyQuotes: true})
}

func (s *FileSource) readXLSX(ctx context.Context, ref string) (*fetcher.Table, error) {
	scheme := fetcher.Scheme(ref)
	if scheme == "" || scheme == "file" {
		return fetcher.ReadXLSX(fetcher.LocalPath(ref), fetcher.XLSXOptions{})
	}

	dir, err := os.MkdirTemp(s.tempDir, "geomap-stats-*")
	if err != nil {
		return nil, eris.Wrap(err, "stats: create staging dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	local := filepath.Join(dir, "table.xlsx")
	if _, err := s.router.Fetch(ctx, ref, local); err != nil {
		return nil, err
	}
	return fetcher.ReadXLSX(local, fetcher.XLSXOptions{})
}

// Router sends file references to a FileSource and everything else to the
// remote statistics service.
type Router struct {
	Files  Source
	Remote Source
}

// Table implements Source.
func (r *Router) Table(ctx context.Context, tableID string) (*Table, error) {
	if IsFileRef(tableID) {
		if r.Files == nil {
			return nil, eris.Errorf("stats: no file source for %s", tableID)
		}
		return r.Files.Table(ctx, tableID)
	}
	if r.Remote == nil {
		return nil, eris.Errorf("stats: no remote source for %s", tableID)
	}
	return r.Remote.Table(ctx, tableID)
}
