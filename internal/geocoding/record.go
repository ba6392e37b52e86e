// Package geocoding resolves address records to coordinates one request at
// a time, isolating per-record failures and honouring the provider's rate
// policy.
package geocoding

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/geomap/internal/fetcher"
)

// AddressRecord is one address to geocode. Every field may be empty.
type AddressRecord struct {
	Name       string
	Street     string
	Number     string
	PostalCode string
	City       string
	Country    string
}

// Query builds the free-text geocoding query for r. Empty fields keep their
// position, so separators may end up adjacent.
func Query(r AddressRecord) string {
	q := r.Name + "," + r.Street + " " + r.Number + "," + r.PostalCode + "," + r.City + "," + r.Country
	return norm.NFC.String(q)
}

// ColumnMap names the input columns holding each address field. An empty
// entry leaves that field blank for every record.
type ColumnMap struct {
	Name       string `mapstructure:"name" yaml:"name"`
	Street     string `mapstructure:"street" yaml:"street"`
	Number     string `mapstructure:"number" yaml:"number"`
	PostalCode string `mapstructure:"postal_code" yaml:"postal_code"`
	City       string `mapstructure:"city" yaml:"city"`
	Country    string `mapstructure:"country" yaml:"country"`
}

// DefaultColumns is the column mapping used when none is configured.
var DefaultColumns = ColumnMap{
	Name:       "Name",
	Street:     "Street",
	Number:     "Number",
	PostalCode: "PostalCode",
	City:       "City",
	Country:    "Country",
}

// RecordsFromTable maps table rows onto address records. Header matching is
// case-insensitive. A mapped column missing from the header is an error.
func RecordsFromTable(t *fetcher.Table, cols ColumnMap) ([]AddressRecord, error) {
	if t == nil {
		return nil, eris.New("geocoding: nil table")
	}
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	lookup := func(col string) (int, error) {
		if col == "" {
			return -1, nil
		}
		i, ok := idx[strings.ToLower(col)]
		if !ok {
			return -1, eris.Errorf("geocoding: column %q not found", col)
		}
		return i, nil
	}

	var positions [6]int
	for i, col := range []string{cols.Name, cols.Street, cols.Number, cols.PostalCode, cols.City, cols.Country} {
		p, err := lookup(col)
		if err != nil {
			return nil, err
		}
		positions[i] = p
	}

	cell := func(row []string, p int) string {
		if p < 0 || p >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[p])
	}

	records := make([]AddressRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		records = append(records, AddressRecord{
			Name:       cell(row, positions[0]),
			Street:     cell(row, positions[1]),
			Number:     cell(row, positions[2]),
			PostalCode: cell(row, positions[3]),
			City:       cell(row, positions[4]),
			Country:    cell(row, positions[5]),
		})
	}
	return records, nil
}

// ReadOptions selects the worksheet for XLSX input and the delimiter for CSV.
type ReadOptions struct {
	Columns   ColumnMap
	Sheet     string
	Delimiter rune
}

// ReadRecords loads address records from a .csv or .xlsx file.
func ReadRecords(ctx context.Context, path string, opts ReadOptions) ([]AddressRecord, error) {
	cols := opts.Columns
	if cols == (ColumnMap{}) {
		cols = DefaultColumns
	}

	var (
		t   *fetcher.Table
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		t, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: opts.Sheet})
	default:
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrap(openErr, "geocoding: open records")
		}
		defer f.Close() //nolint:errcheck
		t, err = fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{Delimiter: opts.Delimiter, LazyQuotes: true})
	}
	if err != nil {
		return nil, eris.Wrapf(err, "geocoding: read %s", path)
	}
	return RecordsFromTable(t, cols)
}
