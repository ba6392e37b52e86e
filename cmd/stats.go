package main

import (
	"encoding/csv"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geomap/internal/stats"
	"github.com/sells-group/geomap/pkg/cbs"
)

var (
	statsFilter string
	statsSelect []string
	statsLimit  int
)

var statsCmd = &cobra.Command{
	Use:   "stats <table>",
	Short: "Fetch a statistics table and print it as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		t, err := env.statsFetcher(cfg, cbs.Query{Filter: statsFilter, Select: statsSelect}).Fetch(ctx, args[0])
		if err != nil {
			return err
		}
		return writeTable(cmd, t, statsLimit)
	},
}

func writeTable(cmd *cobra.Command, t *stats.Table, limit int) error {
	if t.Title != "" {
		cmd.PrintErrf("%s (%d records)\n", t.Title, t.Len())
	}
	w := csv.NewWriter(cmd.OutOrStdout())
	if err := w.Write(t.Columns); err != nil {
		return eris.Wrap(err, "stats: write header")
	}
	for i, rec := range t.Records {
		if limit > 0 && i >= limit {
			break
		}
		row := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			if v := rec[col]; v != nil {
				row[j] = fmt.Sprint(v)
			}
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "stats: write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "stats: flush")
}

func init() {
	statsCmd.Flags().StringVar(&statsFilter, "filter", "", "OData $filter expression")
	statsCmd.Flags().StringSliceVar(&statsSelect, "select", nil, "columns to request")
	statsCmd.Flags().IntVar(&statsLimit, "limit", 0, "print at most this many records (0 for all)")
	rootCmd.AddCommand(statsCmd)
}
