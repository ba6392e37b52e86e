// Package stats retrieves statistics tables keyed by region identifier.
// Rows are returned exactly as the source delivered them.
package stats

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/resilience"
	"github.com/sells-group/geomap/pkg/cbs"
)

// Record is one statistics row keyed by column name.
type Record map[string]any

// Table is an ordered sequence of records. Identifier uniqueness is not
// enforced here.
type Table struct {
	ID      string
	Title   string
	Columns []string
	Records []Record
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Source is a statistics collaborator.
type Source interface {
	Table(ctx context.Context, tableID string) (*Table, error)
}

// Fetcher retrieves statistics tables and maps collaborator failures to
// source-unavailable errors.
type Fetcher struct {
	src Source
}

// NewFetcher creates a Fetcher over src.
func NewFetcher(src Source) *Fetcher {
	return &Fetcher{src: src}
}

// Fetch returns the table identified by tableID unmodified.
func (f *Fetcher) Fetch(ctx context.Context, tableID string) (*Table, error) {
	t, err := f.src.Table(ctx, tableID)
	if err != nil {
		return nil, resilience.Unavailable(tableID, err)
	}
	if t == nil {
		return nil, resilience.Unavailable(tableID, eris.New("stats: no table returned"))
	}
	zap.L().Debug("stats: table fetched",
		zap.String("table", tableID),
		zap.Int("records", t.Len()),
	)
	return t, nil
}

// CBSSource adapts the CBS open data client.
type CBSSource struct {
	client cbs.Client
	query  cbs.Query
	titles bool
}

// CBSOption configures a CBSSource.
type CBSOption func(*CBSSource)

// WithQuery applies an OData filter/select to every request.
func WithQuery(q cbs.Query) CBSOption {
	return func(s *CBSSource) { s.query = q }
}

// WithTitles fetches the table title alongside the data.
func WithTitles() CBSOption {
	return func(s *CBSSource) { s.titles = true }
}

// NewCBSSource creates a CBS-backed Source.
func NewCBSSource(client cbs.Client, opts ...CBSOption) *CBSSource {
	s := &CBSSource{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table implements Source.
func (s *CBSSource) Table(ctx context.Context, tableID string) (*Table, error) {
	ds, err := s.client.TypedDataSet(ctx, tableID, s.query)
	if err != nil {
		return nil, err
	}
	t := &Table{ID: tableID, Columns: ds.Columns, Records: make([]Record, len(ds.Rows))}
	if t.Columns == nil {
		t.Columns = []string{}
	}
	for i, row := range ds.Rows {
		t.Records[i] = Record(row)
	}

	if s.titles {
		info, err := s.client.TableInfo(ctx, tableID)
		if err != nil {
			zap.L().Warn("stats: table info unavailable", zap.String("table", tableID), zap.Error(err))
		} else {
			t.Title = strings.TrimSpace(info.Title)
		}
	}
	return t, nil
}
