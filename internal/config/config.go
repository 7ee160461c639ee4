// Package config loads and validates the yaml program configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/landuse"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
	"github.com/vergauwenthomas/VLINDER/internal/stations"
	"github.com/vergauwenthomas/VLINDER/internal/svf"
)

// output layouts
const (
	LayoutWide = "wide"
	LayoutLong = "long"
)

// ProgConfig defines program configuration
type ProgConfig struct {
	LogDirectory string `yaml:"LogDirectory" json:"LogDirectory"`
	LogLevel     string `yaml:"LogLevel" json:"LogLevel"`
	LogFormat    string `yaml:"LogFormat" json:"LogFormat"`

	StationFile     string `yaml:"StationFile" json:"StationFile"`
	StationColumn   string `yaml:"StationColumn" json:"StationColumn"`
	LatitudeColumn  string `yaml:"LatitudeColumn" json:"LatitudeColumn"`
	LongitudeColumn string `yaml:"LongitudeColumn" json:"LongitudeColumn"`

	OutputFile   string `yaml:"OutputFile" json:"OutputFile"`
	OutputLayout string `yaml:"OutputLayout" json:"OutputLayout"`
	Overwrite    bool   `yaml:"Overwrite" json:"Overwrite"`

	StrictMode bool `yaml:"StrictMode" json:"StrictMode"`
	Workers    int  `yaml:"Workers" json:"Workers"`

	BufferRadii         []float64 `yaml:"BufferRadii" json:"BufferRadii"`
	CoverageTolerance   float64   `yaml:"CoverageTolerance" json:"CoverageTolerance"`
	ResolutionTolerance float64   `yaml:"ResolutionTolerance" json:"ResolutionTolerance"`
	MetadataCacheSize   int       `yaml:"MetadataCacheSize" json:"MetadataCacheSize"`

	LanduseDatasets []DatasetConfig `yaml:"LanduseDatasets" json:"LanduseDatasets"`
	Elevation       *RasterConfig   `yaml:"Elevation" json:"Elevation"`
	SVF             SVFConfig       `yaml:"SVF" json:"SVF"`
	LCZ             *LCZConfig      `yaml:"LCZ" json:"LCZ"`

	BufferGeoJSON  string          `yaml:"BufferGeoJSON" json:"BufferGeoJSON"`
	ResultDatabase *DatabaseConfig `yaml:"ResultDatabase" json:"ResultDatabase"`
}

// RasterConfig locates the tiles of a raster dataset.
type RasterConfig struct {
	Name    string `yaml:"Name" json:"Name"`
	Root    string `yaml:"Root" json:"Root"`
	Pattern string `yaml:"Pattern" json:"Pattern"`
	EPSG    int    `yaml:"EPSG" json:"EPSG"`
}

// Source returns the catalog source of the dataset.
func (r RasterConfig) Source() catalog.Source {
	return catalog.Source{Name: r.Name, Root: r.Root, Pattern: r.Pattern}
}

// ClassConfig maps a raster code to a label.
type ClassConfig struct {
	Code  int    `yaml:"Code" json:"Code"`
	Label string `yaml:"Label" json:"Label"`
}

// AggregateConfig groups labels into an aggregate class.
type AggregateConfig struct {
	Name   string   `yaml:"Name" json:"Name"`
	Labels []string `yaml:"Labels" json:"Labels"`
}

// SplitConfig assigns a weighted part of a label's fraction to an aggregate class.
type SplitConfig struct {
	Label     string  `yaml:"Label" json:"Label"`
	Aggregate string  `yaml:"Aggregate" json:"Aggregate"`
	Weight    float64 `yaml:"Weight" json:"Weight"`
}

// DatasetConfig describes a land cover dataset of the fallback chain. Without explicit
// classes the built-in class table named by Preset (BBK, ESM, S2GLC) is used.
type DatasetConfig struct {
	RasterConfig `yaml:",inline"`
	Preset       string            `yaml:"Preset" json:"Preset"`
	Classes      []ClassConfig     `yaml:"Classes" json:"Classes"`
	Aggregates   []AggregateConfig `yaml:"Aggregates" json:"Aggregates"`
	Splits       []SplitConfig     `yaml:"Splits" json:"Splits"`
}

// SVFConfig holds the sky view factor parameters.
type SVFConfig struct {
	LocalRadius     float64 `yaml:"LocalRadius" json:"LocalRadius"`
	ExclusionRadius float64 `yaml:"ExclusionRadius" json:"ExclusionRadius"`
	Directions      int     `yaml:"Directions" json:"Directions"`
}

// LCZConfig describes the local climate zone map.
type LCZConfig struct {
	RasterConfig  `yaml:",inline"`
	Classes       []ClassConfig `yaml:"Classes" json:"Classes"`
	FallbackLabel string        `yaml:"FallbackLabel" json:"FallbackLabel"`
}

// DatabaseConfig configures the optional results database.
type DatabaseConfig struct {
	Driver string `yaml:"Driver" json:"Driver"`
	DSN    string `yaml:"DSN" json:"DSN"`
}

/*
Load reads the yaml configuration file, applies defaults and validates the result.
*/
func Load(path string) (*ProgConfig, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configuration file not found, file = [%s]: error [%v] at os.ReadFile(): %w", path, err, raster.ErrConfiguration)
	}
	return Parse(source)
}

/*
Parse decodes a yaml configuration, applies defaults and validates the result.
*/
func Parse(source []byte) (*ProgConfig, error) {
	progConfig := defaultConfig()
	err := yaml.Unmarshal(source, progConfig)
	if err != nil {
		return nil, fmt.Errorf("configuration invalid: error [%v] at yaml.Unmarshal(): %w", err, raster.ErrConfiguration)
	}
	progConfig.ApplyDefaults()
	err = progConfig.Validate()
	if err != nil {
		return nil, err
	}
	return progConfig, nil
}

/*
defaultConfig returns the configuration prefilled with the legacy defaults of all options
where zero is a valid setting. yaml.Unmarshal only overwrites the keys present in the file.
*/
func defaultConfig() *ProgConfig {
	defaults := svf.DefaultParams()
	return &ProgConfig{
		CoverageTolerance:   0.05,
		ResolutionTolerance: 0.05,
		SVF: SVFConfig{
			LocalRadius:     defaults.LocalRadius,
			ExclusionRadius: defaults.ExclusionRadius,
			Directions:      defaults.Directions,
		},
	}
}

/*
ApplyDefaults sets the legacy defaults for all options not set (empty or zero).
*/
func (c *ProgConfig) ApplyDefaults() {
	if c.LogDirectory == "" {
		c.LogDirectory = "."
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}

	columns := stations.DefaultColumns()
	if c.StationColumn == "" {
		c.StationColumn = columns.Station
	}
	if c.LatitudeColumn == "" {
		c.LatitudeColumn = columns.Latitude
	}
	if c.LongitudeColumn == "" {
		c.LongitudeColumn = columns.Longitude
	}

	if c.OutputLayout == "" {
		c.OutputLayout = LayoutWide
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if len(c.BufferRadii) == 0 {
		c.BufferRadii = []float64{50, 100, 150, 250}
	}
	if c.MetadataCacheSize == 0 {
		c.MetadataCacheSize = 4096
	}

	for i := range c.LanduseDatasets {
		dataset := &c.LanduseDatasets[i]
		if dataset.Preset == "" {
			dataset.Preset = dataset.Name
		}
		if dataset.Pattern == "" {
			dataset.Pattern = "*.tif"
		}
	}
	if c.Elevation != nil {
		if c.Elevation.Name == "" {
			c.Elevation.Name = "DEM"
		}
		if c.Elevation.Pattern == "" {
			c.Elevation.Pattern = "*.tif"
		}
	}
	if c.LCZ != nil {
		if c.LCZ.Name == "" {
			c.LCZ.Name = "LCZ"
		}
		if c.LCZ.Pattern == "" {
			c.LCZ.Pattern = "*.tif"
		}
	}


	if c.ResultDatabase != nil && c.ResultDatabase.Driver == "" {
		c.ResultDatabase.Driver = "sqlite3"
	}
}

/*
Validate checks the configuration. All errors are configuration errors (fatal).
*/
func (c *ProgConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("configuration invalid: "+format+": %w", append(args, raster.ErrConfiguration)...)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return invalid("LogFormat [%s] not supported (json, console)", c.LogFormat)
	}
	if c.StationFile == "" {
		return invalid("StationFile not set")
	}
	if c.OutputFile == "" {
		return invalid("OutputFile not set")
	}
	if c.OutputLayout != LayoutWide && c.OutputLayout != LayoutLong {
		return invalid("OutputLayout [%s] not supported (%s, %s)", c.OutputLayout, LayoutWide, LayoutLong)
	}
	if c.Workers < 1 {
		return invalid("Workers must be at least 1 (%d)", c.Workers)
	}
	for _, radius := range c.BufferRadii {
		if radius <= 0 {
			return invalid("BufferRadii must be positive (%g)", radius)
		}
	}
	if c.CoverageTolerance < 0 || c.CoverageTolerance >= 1 {
		return invalid("CoverageTolerance %g not in [0,1)", c.CoverageTolerance)
	}
	if c.ResolutionTolerance < 0 || c.ResolutionTolerance >= 1 {
		return invalid("ResolutionTolerance %g not in [0,1)", c.ResolutionTolerance)
	}

	if len(c.LanduseDatasets) == 0 {
		return invalid("no LanduseDatasets configured")
	}
	names := make(map[string]bool)
	for _, dataset := range c.LanduseDatasets {
		if dataset.Name == "" || dataset.Root == "" || dataset.EPSG == 0 {
			return invalid("land cover dataset requires Name, Root and EPSG (%+v)", dataset.RasterConfig)
		}
		if names[dataset.Name] {
			return invalid("land cover dataset [%s] configured twice", dataset.Name)
		}
		names[dataset.Name] = true
		scheme, err := dataset.Scheme()
		if err != nil {
			return err
		}
		if err = scheme.Validate(); err != nil {
			return err
		}
	}

	if c.Elevation != nil {
		if c.Elevation.Root == "" || c.Elevation.EPSG == 0 {
			return invalid("Elevation requires Root and EPSG")
		}
		if err := c.SVFParams().Validate(); err != nil {
			return err
		}
	}
	if c.LCZ != nil {
		if c.LCZ.Root == "" || c.LCZ.EPSG == 0 {
			return invalid("LCZ requires Root and EPSG")
		}
		if err := c.LCZ.Scheme().Validate(); err != nil {
			return err
		}
	}

	if c.ResultDatabase != nil {
		switch c.ResultDatabase.Driver {
		case "sqlite3", "postgres":
		default:
			return invalid("ResultDatabase Driver [%s] not supported (sqlite3, postgres)", c.ResultDatabase.Driver)
		}
		if c.ResultDatabase.DSN == "" {
			return invalid("ResultDatabase DSN not set")
		}
	}

	return nil
}

// StationColumns returns the configured station table columns.
func (c *ProgConfig) StationColumns() stations.Columns {
	return stations.Columns{Station: c.StationColumn, Latitude: c.LatitudeColumn, Longitude: c.LongitudeColumn}
}

// SVFParams returns the sky view factor parameters.
func (c *ProgConfig) SVFParams() svf.Params {
	return svf.Params{LocalRadius: c.SVF.LocalRadius, ExclusionRadius: c.SVF.ExclusionRadius, Directions: c.SVF.Directions}
}

/*
Scheme returns the class scheme of the dataset: the explicit class table if configured,
the built-in preset otherwise.
*/
func (d DatasetConfig) Scheme() (landuse.Scheme, error) {
	if len(d.Classes) == 0 {
		var scheme landuse.Scheme
		switch strings.ToUpper(d.Preset) {
		case "BBK":
			scheme = landuse.BBKScheme()
		case "ESM":
			scheme = landuse.ESMScheme()
		case "S2GLC":
			scheme = landuse.S2GLCScheme()
		default:
			return landuse.Scheme{}, fmt.Errorf("configuration invalid: dataset [%s] without Classes and unknown Preset [%s]: %w",
				d.Name, d.Preset, raster.ErrConfiguration)
		}
		scheme.Name = d.Name
		return scheme, nil
	}

	scheme := landuse.Scheme{Name: d.Name, Classes: classes(d.Classes)}
	for _, aggregate := range d.Aggregates {
		scheme.Aggregates = append(scheme.Aggregates, landuse.Aggregate{Name: aggregate.Name, Labels: aggregate.Labels})
	}
	if len(d.Splits) > 0 {
		scheme.Splits = make(map[string][]landuse.Split)
		for _, split := range d.Splits {
			scheme.Splits[split.Label] = append(scheme.Splits[split.Label], landuse.Split{Aggregate: split.Aggregate, Weight: split.Weight})
		}
	}
	return scheme, nil
}

// Scheme returns the LCZ class table (built-in table if no classes are configured).
func (l LCZConfig) Scheme() landuse.Scheme {
	if len(l.Classes) == 0 {
		scheme := landuse.LCZScheme()
		scheme.Name = l.Name
		return scheme
	}
	return landuse.Scheme{Name: l.Name, Classes: classes(l.Classes)}
}

func classes(configs []ClassConfig) []landuse.Class {
	result := make([]landuse.Class, 0, len(configs))
	for _, class := range configs {
		result = append(result, landuse.Class{Code: class.Code, Label: class.Label})
	}
	return result
}
