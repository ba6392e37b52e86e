package cbs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geomap/internal/fetcher"
)

func newTestClient(srv *httptest.Server, opts ...Option) Client {
	opts = append([]Option{
		WithBaseURL(srv.URL + "/ODataApi/odata"),
		WithFetcher(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})),
	}, opts...)
	return NewClient(opts...)
}

func TestTypedDataSet_FollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ODataApi/odata/83765NED/TypedDataSet", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("$skip") == "" {
			assert.Equal(t, "json", r.URL.Query().Get("$format"))
			_, _ = io.WriteString(w, `{"odata.metadata":"x","value":[
				{"ID":0,"WijkenEnBuurten":"GM0014    ","AantalInwoners_5":234649},
				{"ID":1,"WijkenEnBuurten":"GM0034    ","AantalInwoners_5":null}],
				"odata.nextLink":"`+srv.URL+`/ODataApi/odata/83765NED/TypedDataSet?$format=json&$skip=2"}`)
			return
		}
		_, _ = io.WriteString(w, `{"value":[{"ID":2,"WijkenEnBuurten":"GM0037    ","AantalInwoners_5":16179.5}]}`)
	}))
	defer srv.Close()

	ds, err := newTestClient(srv).TypedDataSet(context.Background(), "83765NED", Query{})
	require.NoError(t, err)
	assert.Equal(t, "83765NED", ds.Table)
	assert.Equal(t, []string{"ID", "WijkenEnBuurten", "AantalInwoners_5"}, ds.Columns)
	require.Len(t, ds.Rows, 3)
	assert.Equal(t, json.Number("234649"), ds.Rows[0]["AantalInwoners_5"])
	assert.Nil(t, ds.Rows[1]["AantalInwoners_5"])
	assert.Equal(t, "GM0037    ", ds.Rows[2]["WijkenEnBuurten"])
}

func TestTypedDataSet_FilterAndSelect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "startswith(WijkenEnBuurten,'GM')", q.Get("$filter"))
		assert.Equal(t, "WijkenEnBuurten,AantalInwoners_5", q.Get("$select"))
		assert.Equal(t, "100", q.Get("$top"))
		_, _ = io.WriteString(w, `{"value":[]}`)
	}))
	defer srv.Close()

	ds, err := newTestClient(srv).TypedDataSet(context.Background(), "83765NED", Query{
		Filter: "startswith(WijkenEnBuurten,'GM')",
		Select: []string{"WijkenEnBuurten", "AantalInwoners_5"},
		Top:    100,
	})
	require.NoError(t, err)
	assert.Empty(t, ds.Rows)
}

func TestTypedDataSet_NoStructure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"odata.error":{"message":"table not found"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).TypedDataSet(context.Background(), "nope", Query{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoStructure))
}

func TestTypedDataSet_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).TypedDataSet(context.Background(), "nope", Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestTypedDataSet_MaxPages(t *testing.T) {
	var calls int
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = io.WriteString(w, `{"value":[{"ID":1}],"odata.nextLink":"`+srv.URL+`/ODataApi/odata/t/TypedDataSet?$skip=1"}`)
	}))
	defer srv.Close()

	ds, err := newTestClient(srv, WithMaxPages(2)).TypedDataSet(context.Background(), "t", Query{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPageLimit))
	assert.Nil(t, ds)
	assert.Equal(t, 2, calls)
}

func TestTypedDataSet_AllPagesWithinCap(t *testing.T) {
	var calls int
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			_, _ = io.WriteString(w, `{"value":[{"ID":1}],"odata.nextLink":"`+srv.URL+`/ODataApi/odata/t/TypedDataSet?$skip=1"}`)
			return
		}
		_, _ = io.WriteString(w, `{"value":[{"ID":2}]}`)
	}))
	defer srv.Close()

	ds, err := newTestClient(srv, WithMaxPages(2)).TypedDataSet(context.Background(), "t", Query{})
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 2)
}

func TestTypedDataSet_EmptyTable(t *testing.T) {
	_, err := NewClient().TypedDataSet(context.Background(), " ", Query{})
	require.Error(t, err)
}

func TestTableInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ODataApi/odata/83765NED/TableInfos", r.URL.Path)
		_, _ = io.WriteString(w, `{"value":[{"Identifier":"83765NED","Title":"Kerncijfers wijken en buurten 2017","Period":"2017"}]}`)
	}))
	defer srv.Close()

	info, err := newTestClient(srv).TableInfo(context.Background(), "83765NED")
	require.NoError(t, err)
	assert.Equal(t, "Kerncijfers wijken en buurten 2017", info.Title)
	assert.Equal(t, "2017", info.Period)
}

func TestDecodeRow(t *testing.T) {
	row, keys, err := decodeRow(json.RawMessage(`{"b":1,"a":"x","c":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, keys)
	assert.Equal(t, json.Number("1"), row["b"])

	_, _, err = decodeRow(json.RawMessage(`[1,2]`))
	require.Error(t, err)
}
