package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/vector"
)

var (
	vectorCRS     string
	vectorPostGIS string
)

var vectorCmd = &cobra.Command{
	Use:   "vector",
	Short: "Vector dataset commands",
}

var vectorLoadCmd = &cobra.Command{
	Use:   "load <source>",
	Short: "Load and project a vector dataset, optionally exporting it to PostGIS",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if vectorPostGIS != "" {
			if err := cfg.Validate("export"); err != nil {
				return err
			}
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		crs := vectorCRS
		if crs == "" {
			crs = cfg.Vector.DefaultSourceCRS
		}
		l, err := env.Projector.Load(ctx, args[0], crs)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d features, %s -> %s\n", args[0], l.Len(), l.SourceCRS, l.CRS)

		if vectorPostGIS == "" {
			return nil
		}
		schema, table, err := splitTarget(vectorPostGIS)
		if err != nil {
			return err
		}
		n, err := vector.ExportLayer(ctx, env.Pool, l, schema, table)
		if err != nil {
			return err
		}
		zap.L().Info("layer exported", zap.String("table", vectorPostGIS), zap.Int64("rows", n))
		return nil
	},
}

// splitTarget parses "schema.table", defaulting the schema to public.
func splitTarget(s string) (string, string, error) {
	schema, table, ok := strings.Cut(s, ".")
	if !ok {
		schema, table = "public", s
	}
	if schema == "" || table == "" {
		return "", "", eris.Errorf("vector: invalid postgis target %q", s)
	}
	return schema, table, nil
}

func init() {
	vectorLoadCmd.Flags().StringVar(&vectorCRS, "crs", "", "source CRS (default from config)")
	vectorLoadCmd.Flags().StringVar(&vectorPostGIS, "postgis", "", "export the projected layer to schema.table")
	vectorCmd.AddCommand(vectorLoadCmd)
	rootCmd.AddCommand(vectorCmd)
}
