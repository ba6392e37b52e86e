// Package cbs provides a client for the Statistics Netherlands (CBS) open
// data OData v3 API.
package cbs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/fetcher"
)

// DefaultBaseURL is the public OData v3 feed root.
const DefaultBaseURL = "https://opendata.cbs.nl/ODataApi/odata"

// ErrNoStructure reports a response without a "value" array.
var ErrNoStructure = errors.New("cbs: response has no identifiable structure")

// ErrPageLimit reports a table with more pages than the client may fetch.
var ErrPageLimit = errors.New("cbs: page limit reached")

// Client defines the CBS open data operations.
type Client interface {
	// TypedDataSet returns every row of a table, following pagination.
	TypedDataSet(ctx context.Context, table string, q Query) (*DataSet, error)
	// TableInfo returns the table's descriptive metadata.
	TableInfo(ctx context.Context, table string) (*TableInfo, error)
}

// Query narrows a TypedDataSet request.
type Query struct {
	Filter string   // OData $filter expression
	Select []string // columns for $select
	Top    int      // page size hint; 0 lets the server decide
}

// DataSet is a decoded TypedDataSet. Columns are in response order.
type DataSet struct {
	Table   string
	Columns []string
	Rows    []map[string]any
}

// TableInfo is the subset of the TableInfos entity used for labelling.
type TableInfo struct {
	Identifier  string `json:"Identifier"`
	Title       string `json:"Title"`
	Period      string `json:"Period"`
	Summary     string `json:"Summary"`
	Modified    string `json:"Modified"`
	ShortTitle  string `json:"ShortTitle"`
	Frequency   string `json:"Frequency"`
	Description string `json:"Description"`
}

// Option configures the CBS client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing or the beta feed).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithFetcher sets the transport used for downloads.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *httpClient) {
		c.fetcher = f
	}
}

// WithMaxPages caps how many nextLink pages are followed. A table with more
// pages fails with ErrPageLimit rather than being truncated. Zero means no cap.
func WithMaxPages(n int) Option {
	return func(c *httpClient) {
		c.maxPages = n
	}
}

type httpClient struct {
	baseURL  string
	fetcher  fetcher.Fetcher
	maxPages int
}

// NewClient creates a CBS client. By default it uses the shared HTTP fetcher
// with the per-host limit for opendata.cbs.nl.
func NewClient(opts ...Option) Client {
	c := &httpClient{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{RateLimiters: fetcher.DefaultRateLimiters()})
	}
	return c
}

// page is one OData feed page.
type page struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"odata.nextLink"`
	HasValue bool              `json:"-"`
}

func (p *page) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["value"]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		if err := json.Unmarshal(v, &p.Value); err != nil {
			return err
		}
		p.HasValue = true
	}
	if n, ok := raw["odata.nextLink"]; ok {
		if err := json.Unmarshal(n, &p.NextLink); err != nil {
			return err
		}
	}
	return nil
}

// dataSetURL builds {base}/{table}/TypedDataSet?$format=json plus options.
func (c *httpClient) dataSetURL(table string, q Query) string {
	params := url.Values{"$format": {"json"}}
	if q.Filter != "" {
		params.Set("$filter", q.Filter)
	}
	if len(q.Select) > 0 {
		params.Set("$select", strings.Join(q.Select, ","))
	}
	if q.Top > 0 {
		params.Set("$top", strconv.Itoa(q.Top))
	}
	return c.baseURL + "/" + url.PathEscape(table) + "/TypedDataSet?" + params.Encode()
}

func (c *httpClient) getPage(ctx context.Context, rawURL string) (*page, error) {
	body, err := c.fetcher.Download(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "cbs: download")
	}
	defer body.Close() //nolint:errcheck

	p, err := fetcher.DecodeJSONObject[page](body)
	if err != nil {
		return nil, eris.Wrap(err, "cbs: decode page")
	}
	if !p.HasValue {
		return nil, eris.Wrapf(ErrNoStructure, "cbs: %s", rawURL)
	}
	return p, nil
}

// TypedDataSet implements Client.
func (c *httpClient) TypedDataSet(ctx context.Context, table string, q Query) (*DataSet, error) {
	if strings.TrimSpace(table) == "" {
		return nil, eris.New("cbs: empty table identifier")
	}

	ds := &DataSet{Table: table}
	next := c.dataSetURL(table, q)
	for pages := 0; next != ""; pages++ {
		if c.maxPages > 0 && pages >= c.maxPages {
			return nil, eris.Wrapf(ErrPageLimit, "cbs: %s has more than %d pages", table, c.maxPages)
		}
		p, err := c.getPage(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, raw := range p.Value {
			row, keys, err := decodeRow(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "cbs: decode row %d", len(ds.Rows))
			}
			if ds.Columns == nil {
				ds.Columns = keys
			}
			ds.Rows = append(ds.Rows, row)
		}
		next = p.NextLink
	}

	zap.L().Debug("cbs: dataset fetched",
		zap.String("table", table),
		zap.Int("rows", len(ds.Rows)),
		zap.Int("columns", len(ds.Columns)),
	)
	return ds, nil
}

// TableInfo implements Client.
func (c *httpClient) TableInfo(ctx context.Context, table string) (*TableInfo, error) {
	p, err := c.getPage(ctx, c.baseURL+"/"+url.PathEscape(table)+"/TableInfos?$format=json")
	if err != nil {
		return nil, err
	}
	if len(p.Value) == 0 {
		return nil, eris.Wrapf(ErrNoStructure, "cbs: no table info for %s", table)
	}
	var info TableInfo
	if err := json.Unmarshal(p.Value[0], &info); err != nil {
		return nil, eris.Wrap(err, "cbs: decode table info")
	}
	return &info, nil
}

// decodeRow decodes one JSON object, keeping numbers as json.Number and
// returning its keys in document order.
func decodeRow(raw json.RawMessage) (map[string]any, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, eris.New("row is not an object")
	}

	row := make(map[string]any)
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, eris.New("row key is not a string")
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, dup := row[key]; !dup {
			keys = append(keys, key)
		}
		row[key] = v
	}
	return row, keys, nil
}
