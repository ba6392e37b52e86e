package geocoding

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
)

// ResultColumns is the header written by WriteCSV.
var ResultColumns = []string{
	"name", "street", "number", "postal_code", "city", "country",
	"query", "resolved", "latitude", "longitude", "display_name",
}

// WriteCSV writes one row per result in input order. Unresolved rows leave
// the coordinate and display name columns empty.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultColumns); err != nil {
		return eris.Wrap(err, "geocoding: write header")
	}
	for _, r := range results {
		row := []string{
			r.Record.Name, r.Record.Street, r.Record.Number, r.Record.PostalCode, r.Record.City, r.Record.Country,
			r.Query, strconv.FormatBool(r.Resolved), "", "", "",
		}
		if r.Resolved {
			row[8] = strconv.FormatFloat(r.Latitude, 'f', -1, 64)
			row[9] = strconv.FormatFloat(r.Longitude, 'f', -1, 64)
			row[10] = r.DisplayName
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "geocoding: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "geocoding: flush")
}
