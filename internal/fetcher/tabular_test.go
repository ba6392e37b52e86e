package fetcher

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	s, err := f.AddSheet(sheet)
	require.NoError(t, err)
	for _, rowData := range rows {
		row := s.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestReadCSV(t *testing.T) {
	in := "Name;City\nRijksmuseum ; Amsterdam\n;Wassenaar\n"
	tbl, err := ReadCSV(context.Background(), strings.NewReader(in), CSVOptions{Delimiter: ';', TrimSpace: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "City"}, tbl.Header)
	assert.Equal(t, [][]string{{"Rijksmuseum", "Amsterdam"}, {"", "Wassenaar"}}, tbl.Rows)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	require.Error(t, err)
}

func TestReadCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadCSV(ctx, strings.NewReader("a\n1\n"), CSVOptions{})
	require.Error(t, err)
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, "Locaties", [][]string{
		{"Name", "City"},
		{"Markthal", "Rotterdam"},
	})

	tbl, err := ReadXLSX(path, XLSXOptions{SheetName: "Locaties"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "City"}, tbl.Header)
	assert.Equal(t, [][]string{{"Markthal", "Rotterdam"}}, tbl.Rows)
}

func TestReadXLSX_MissingSheet(t *testing.T) {
	path := createTestXLSX(t, "Sheet1", [][]string{{"a"}})
	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Other"})
	require.Error(t, err)
	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
}

func TestExtractZIP_FindShapefile(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"wijken/wijken.dbf": "dbf",
		"wijken/wijken.SHP": "shp",
		"wijken/wijken.shx": "shx",
	})

	extracted, err := ExtractZIP(zipPath, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	shp, ok := FindByExt(extracted, ".shp")
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(shp, "wijken.SHP"))

	_, ok = FindByExt(extracted, ".prj")
	assert.False(t, ok)
}

func TestExtractZIP_ZipSlip(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"../../evil.txt": "x"})
	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
}

func TestDecodeJSONObject(t *testing.T) {
	type payload struct {
		Value []map[string]any `json:"value"`
	}
	p, err := DecodeJSONObject[payload](strings.NewReader(`{"value":[{"ID":0,"Aantal":12}]}`))
	require.NoError(t, err)
	require.Len(t, p.Value, 1)
	assert.Equal(t, json.Number("12"), p.Value[0]["Aantal"])

	_, err = DecodeJSONObject[payload](strings.NewReader(`{bad`))
	require.Error(t, err)
}
