package main

import (
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/geocoding"
	"github.com/sells-group/geomap/internal/layer"
	"github.com/sells-group/geomap/internal/render"
)

var (
	geocodeInput   string
	geocodeOutput  string
	geocodeSheet   string
	geocodeMap     string
	geocodeTooltip bool
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode an address file and optionally render the markers",
	Long:  "Reads address records from CSV or XLSX, resolves them one at a time through the configured provider and writes the results as CSV. Ctrl-C stops between records and keeps the partial results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		records, err := geocoding.ReadRecords(ctx, geocodeInput, geocoding.ReadOptions{
			Columns: cfg.Geocode.Columns,
			Sheet:   geocodeSheet,
		})
		if err != nil {
			return err
		}

		bar := newProgressBar(len(records), "Geocoding")
		g, err := newGeocoder(cfg.Geocode, progressFunc(bar))
		if err != nil {
			return err
		}

		results, gerr := g.ResolveAll(ctx, records)
		if gerr != nil && !errors.Is(gerr, geocoding.ErrInterrupted) {
			return gerr
		}
		if bar != nil {
			_ = bar.Finish()
		}

		if err := writeResults(cmd.OutOrStdout(), geocodeOutput, results); err != nil {
			return err
		}
		if geocodeMap != "" {
			style := layer.DefaultMarkerStyle()
			style.Tooltip = geocodeTooltip
			_, cv, err := layer.AttachResults(results, layer.NewCanvas(cfg.Canvas.Canvas()), style)
			if err != nil {
				return err
			}
			if err := render.WriteFile(geocodeMap, cv.Document(), render.WithTitle("Geocoded addresses")); err != nil {
				return err
			}
		}

		zap.L().Info("geocoding finished",
			zap.Int("records", len(records)),
			zap.Int("processed", g.Processed()),
			zap.Int("resolved", geocoding.CountResolved(results)),
		)
		return gerr
	},
}

// newProgressBar returns a bar on an interactive stderr, else nil.
func newProgressBar(n int, desc string) *progressbar.ProgressBar {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// progressFunc adapts bar to the geocoder's progress observer. Without a
// terminal, progress is logged every 25 records.
func progressFunc(bar *progressbar.ProgressBar) geocoding.ProgressFunc {
	if bar == nil {
		return func(done, total int) {
			if done%25 == 0 || done == total {
				zap.L().Info("geocoding progress", zap.Int("done", done), zap.Int("total", total))
			}
		}
	}
	return func(done, _ int) {
		_ = bar.Set(done)
	}
}

// writeResults writes CSV results to path, or to stdout when path is "-"
// or empty.
func writeResults(stdout io.Writer, path string, results []geocoding.Result) error {
	if path == "" || path == "-" {
		return geocoding.WriteCSV(stdout, results)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "geocode: create %s", path)
	}
	if err := geocoding.WriteCSV(f, results); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "geocode: close %s", path)
}

func init() {
	geocodeCmd.Flags().StringVarP(&geocodeInput, "input", "i", "", "address file (.csv or .xlsx)")
	geocodeCmd.Flags().StringVarP(&geocodeOutput, "output", "o", "-", "results CSV path, - for stdout")
	geocodeCmd.Flags().StringVar(&geocodeSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	geocodeCmd.Flags().StringVar(&geocodeMap, "map", "", "also render the resolved addresses to this HTML file")
	geocodeCmd.Flags().BoolVar(&geocodeTooltip, "tooltip", true, "label markers with the geocoder display name")
	_ = geocodeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(geocodeCmd)
}
