package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/canvas"
	"github.com/sells-group/geomap/internal/layer"
	"github.com/sells-group/geomap/internal/render"
	"github.com/sells-group/geomap/pkg/cbs"
)

var (
	choroSource     string
	choroCRS        string
	choroFeatureKey string
	choroStats      string
	choroFilter     string
	choroValue      string
	choroJoin       string
	choroScale      string
	choroLegend     string
	choroOutput     string
)

var choroplethCmd = &cobra.Command{
	Use:   "choropleth",
	Short: "Render a vector dataset colored by a statistics column",
	Example: `  geomap choropleth --source gemeenten.json --crs EPSG:28992 --feature-key statcode \
    --stats 70072NED --filter "Perioden eq '2023JJ00'" --value TotaleBevolking_1 --join RegioS`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("render"); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		crs := choroCRS
		if crs == "" {
			crs = cfg.Vector.DefaultSourceCRS
		}
		v, err := env.Projector.Load(ctx, choroSource, crs)
		if err != nil {
			return err
		}

		tbl, err := env.statsFetcher(cfg, cbs.Query{Filter: choroFilter}).Fetch(ctx, choroStats)
		if err != nil {
			return err
		}
		if choroFeatureKey != "" {
			if tbl, err = layer.KeyByRegion(v, tbl, choroJoin, choroFeatureKey); err != nil {
				return err
			}
		}

		style := layer.DefaultChoroplethStyle()
		style.Scale = choroScale
		style.Legend = choroLegend
		ch, err := layer.BuildChoropleth(v, tbl, choroValue, choroJoin, style)
		if err != nil {
			return err
		}

		cv := canvas.NewFromConfig(cfg.Canvas.Canvas())
		if err := ch.AttachTo(cv); err != nil {
			return err
		}
		if err := render.WriteFile(choroOutput, cv.Document(), render.WithTitle(ch.Legend())); err != nil {
			return err
		}

		zap.L().Info("choropleth rendered",
			zap.String("output", choroOutput),
			zap.Int("features", v.Len()),
			zap.Int("matched", ch.Matched()),
		)
		return nil
	},
}

func init() {
	f := choroplethCmd.Flags()
	f.StringVar(&choroSource, "source", "", "vector dataset (GeoJSON, shapefile, zip or postgis://schema.table)")
	f.StringVar(&choroCRS, "crs", "", "source CRS (default from config)")
	f.StringVar(&choroFeatureKey, "feature-key", "", "feature property holding the region codes found in the join column")
	f.StringVar(&choroStats, "stats", "", "statistics table id or CSV/XLSX file")
	f.StringVar(&choroFilter, "filter", "", "OData $filter for remote statistics")
	f.StringVar(&choroValue, "value", "", "statistics column to color by")
	f.StringVar(&choroJoin, "join", "", "statistics column holding the region identifier")
	f.StringVar(&choroScale, "scale", "YlGn", "color scale")
	f.StringVar(&choroLegend, "legend", "", "legend caption (default value column)")
	f.StringVarP(&choroOutput, "output", "o", "choropleth.html", "output HTML file")
	for _, name := range []string{"source", "stats", "value", "join"} {
		_ = choroplethCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(choroplethCmd)
}
