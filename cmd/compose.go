package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geomap/internal/geocoding"
	"github.com/sells-group/geomap/internal/manifest"
	"github.com/sells-group/geomap/internal/render"
)

var composeOutput string

var composeCmd = &cobra.Command{
	Use:   "compose <manifest.yaml>",
	Short: "Build and render a map from a YAML manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		m, err := manifest.Load(args[0])
		if err != nil {
			return err
		}
		if composeOutput != "" {
			m.Output = composeOutput
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		var g *geocoding.Geocoder
		for _, l := range m.Layers {
			if l.Type == manifest.TypeMarkers {
				if err := cfg.Validate("geocode"); err != nil {
					return err
				}
				if g, err = newGeocoder(cfg.Geocode, progressFunc(nil)); err != nil {
					return err
				}
				break
			}
		}

		cv, cerr := env.composer(cfg, g).Compose(ctx, m)
		if cerr != nil && !errors.Is(cerr, geocoding.ErrInterrupted) {
			return cerr
		}

		title := m.Title
		if title == "" {
			title = "geomap"
		}
		if err := render.WriteFile(m.Output, cv.Document(), render.WithTitle(title)); err != nil {
			return err
		}
		zap.L().Info("map composed", zap.String("output", m.Output), zap.Int("layers", cv.Len()))
		return cerr
	},
}

func init() {
	composeCmd.Flags().StringVarP(&composeOutput, "output", "o", "", "override the manifest output path")
	rootCmd.AddCommand(composeCmd)
}
