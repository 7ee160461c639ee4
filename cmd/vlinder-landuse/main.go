/*
Purpose:
- vlinder landuse

Description:
- Computes land cover fractions, height, sky view factor and local climate zone around the
  stations of the VLINDER citizen weather station network from tiled raster maps.

Releases:
- v1.0.0 - 2026-10-19: initial release

Remarks:
- Land cover datasets are tried in configured order (e.g. BBK 1 m, then ESM 10 m). A dataset
  which does not cover the whole buffer falls back to the next one.
- Failed stations are written with empty values and a failure column (StrictMode aborts).

Links:
- https://pkg.go.dev/github.com/airbusgeo/godal
- https://pkg.go.dev/github.com/paulmach/orb
- https://pkg.go.dev/github.com/dhconnelly/rtreego
- https://pkg.go.dev/github.com/spf13/cobra
- https://pkg.go.dev/gopkg.in/yaml.v3
- https://pkg.go.dev/gopkg.in/natefinch/lumberjack.v2
*/

// main package
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/config"
	"github.com/vergauwenthomas/VLINDER/internal/gdalraster"
	"github.com/vergauwenthomas/VLINDER/internal/logging"
	"github.com/vergauwenthomas/VLINDER/internal/pipeline"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
	"github.com/vergauwenthomas/VLINDER/internal/stations"
	"github.com/vergauwenthomas/VLINDER/internal/store"
)

// general program info
var (
	progName    = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(filepath.Base(os.Args[0])))
	progVersion = "v1.0.0"
	progDate    = "2026-10-19"
	progPurpose = "vlinder landuse"
	progInfo    = "Computes land cover fractions, height, sky view factor and local climate zone around VLINDER stations."
)

// command line options
var (
	progConfigFile string
	catalogFile    string
)

var rootCmd = &cobra.Command{
	Use:           progName,
	Short:         progPurpose,
	Long:          progInfo,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process all stations and write the output table",
	Long:  `Loads the station list, computes all station values and writes the output table (and optionally buffer geometries and the results database).`,
	RunE:  runStations,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Validate all raster datasets and write the tile catalog",
	Long:  `Builds and validates the tile sets of all configured datasets and writes one csv line per tile.`,
	RunE:  runCatalog,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the program version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", progName, progVersion, progDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&progConfigFile, "config", "c", progName+".yaml", "configuration file")
	catalogCmd.Flags().StringVarP(&catalogFile, "output", "o", "catalog.csv", "tile catalog csv file")
	rootCmd.AddCommand(runCmd, catalogCmd, versionCmd)
}

/*
main starts this program.
*/
func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", progName, err)
		os.Exit(1)
	}
}

/*
setup loads the program configuration, initializes logging and GDAL and logs the program start.
*/
func setup() (*config.ProgConfig, io.Closer, error) {
	progConfig, err := config.Load(progConfigFile)
	if err != nil {
		return nil, nil, err
	}

	_, logCloser := logging.Setup(logging.Options{
		ProgName:  progName,
		Directory: progConfig.LogDirectory,
		Level:     progConfig.LogLevel,
		Format:    progConfig.LogFormat,
	})

	// log program start
	slog.Info(progPurpose+" startet", "name", progName, "version", progVersion, "date", progDate, "info", progInfo, "command line", os.Args)
	jsonData, _ := json.MarshalIndent(progConfig, "", "  ") // encode to JSON for readability
	slog.Info("content of configuration file", "configuration file", progConfigFile, "content", string(jsonData))

	// initialize GDAL, register all known GDAL drivers
	gdalraster.Register()

	return progConfig, logCloser, nil
}

func gdalSources() pipeline.Sources {
	reader := gdalraster.Reader{}
	return pipeline.Sources{Metadata: reader, Tiles: reader, Projector: gdalraster.Projector{}}
}

/*
runStations processes all stations (command 'run').
*/
func runStations(cmd *cobra.Command, _ []string) error {
	progConfig, logCloser, err := setup()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// refuse to overwrite before any work is done
	if catalog.FileExists(progConfig.OutputFile) && !progConfig.Overwrite {
		err = fmt.Errorf("output file [%s] exists and Overwrite is not set: %w", progConfig.OutputFile, raster.ErrConfiguration)
		slog.Error("error checking output file", "error", err)
		return err
	}

	table, err := stations.Load(progConfig.StationFile, progConfig.StationColumns())
	if err != nil {
		slog.Error("error loading station list", "error", err)
		return err
	}
	slog.Info("station list loaded", "file", progConfig.StationFile, "stations", len(table.Stations))

	p, err := pipeline.Build(ctx, progConfig, gdalSources())
	if err != nil {
		slog.Error("error building raster datasets", "error", err)
		return err
	}

	var buffers *pipeline.BufferCollector
	if progConfig.BufferGeoJSON != "" {
		buffers = &pipeline.BufferCollector{}
		p.Aggregator().OnBuffer(buffers.Add)
	}

	if progConfig.ResultDatabase != nil {
		resultStore, err := store.Open(ctx, progConfig.ResultDatabase.Driver, progConfig.ResultDatabase.DSN)
		if err != nil {
			slog.Error("error opening results database", "driver", progConfig.ResultDatabase.Driver, "error", err)
			return err
		}
		defer resultStore.Close()
		p.SetSaver(pipeline.StoreSaver{Store: resultStore})
	}

	results, err := p.Run(ctx, table.Stations)
	p.LogStatistics()
	if err != nil {
		slog.Error("station processing aborted", "fatal", raster.IsFatal(err), "error", err)
		return err
	}

	err = pipeline.WriteOutput(progConfig.OutputFile, true, progConfig.OutputLayout, p.Schema(table.Header), results)
	if err != nil {
		slog.Error("error writing output table", "error", err)
		return err
	}
	slog.Info("output table written", "file", progConfig.OutputFile, "layout", progConfig.OutputLayout)

	if buffers != nil {
		err = buffers.Write(progConfig.BufferGeoJSON)
		if err != nil {
			slog.Error("error writing buffer geometries", "error", err)
			return err
		}
	}

	failed := p.Statistics().Failed.Load()
	if failed > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d stations incomplete, see column 'failure' in [%s]\n",
			failed, len(table.Stations), progConfig.OutputFile)
	}
	return nil
}

/*
runCatalog validates all datasets and writes the tile catalog (command 'catalog').
*/
func runCatalog(cmd *cobra.Command, _ []string) error {
	progConfig, logCloser, err := setup()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	p, err := pipeline.Build(cmd.Context(), progConfig, gdalSources())
	if err != nil {
		slog.Error("error building raster datasets", "error", err)
		return err
	}

	file, err := os.Create(catalogFile)
	if err != nil {
		return fmt.Errorf("error [%w] at os.Create(), file [%s]", err, catalogFile)
	}
	defer file.Close()

	err = catalog.WriteCSV(file, p.TileSets())
	if err != nil {
		return fmt.Errorf("file [%s]: %w", catalogFile, err)
	}
	slog.Info("tile catalog written", "file", catalogFile, "datasets", len(p.TileSets()))
	return file.Close()
}
