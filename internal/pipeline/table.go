package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/config"
	"github.com/vergauwenthomas/VLINDER/internal/landuse"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
)

// Schema defines the fixed column set of the output table.
type Schema struct {
	Header     []string // original station columns
	Radii      []float64
	Labels     []string // union of all dataset labels (long layout)
	Aggregates []string // union of all dataset aggregate classes
	Height     bool
	SVF        bool
	LCZ        bool
}

// Schema returns the output table schema for a station table with the given header.
func (p *Pipeline) Schema(header []string) Schema {
	schema := Schema{
		Header: header,
		Radii:  p.radii,
		Height: p.height != nil,
		SVF:    p.svf != nil,
		LCZ:    p.lcz != nil,
	}
	for _, dataset := range p.aggregator.Datasets() {
		for _, label := range dataset.Scheme.Labels() {
			if !slices.Contains(schema.Labels, label) {
				schema.Labels = append(schema.Labels, label)
			}
		}
		for _, name := range dataset.Scheme.AggregateNames() {
			if !slices.Contains(schema.Aggregates, name) {
				schema.Aggregates = append(schema.Aggregates, name)
			}
		}
	}
	return schema
}

/*
WriteOutput writes the result table to path. An existing file is only replaced if
overwrite is set.
*/
func WriteOutput(path string, overwrite bool, layout string, schema Schema, results []StationResult) error {
	if catalog.FileExists(path) && !overwrite {
		return fmt.Errorf("output file [%s] exists and Overwrite is not set: %w", path, raster.ErrConfiguration)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error [%w] at os.Create(), file [%s]", err, path)
	}
	defer file.Close()

	switch layout {
	case config.LayoutLong:
		err = WriteLong(file, schema, results)
	default:
		err = WriteWide(file, schema, results)
	}
	if err != nil {
		return fmt.Errorf("file [%s]: %w", path, err)
	}
	return file.Close()
}

/*
WriteWide writes one row per station: original columns, point values and per buffer
radius the aggregate fractions and the dataset used. Values that could not be computed
are empty and the failure column lists the reasons.
*/
func WriteWide(w io.Writer, schema Schema, results []StationResult) error {
	header := slices.Clone(schema.Header)
	header = append(header, schema.pointColumns()...)
	for _, radius := range schema.Radii {
		prefix := radiusPrefix(radius)
		for _, name := range schema.Aggregates {
			header = append(header, prefix+name)
		}
		header = append(header, prefix+"used_map")
	}
	header = append(header, "failure")

	writer := csv.NewWriter(w)
	err := writer.Write(header)
	if err != nil {
		return fmt.Errorf("error [%w] at writer.Write()", err)
	}

	for _, result := range results {
		row := stationColumns(schema, result)
		row = append(row, schema.pointValues(result)...)
		for _, radius := range schema.Radii {
			record, ok := result.Record(radius)
			row = append(row, fractionValues(schema.Aggregates, record.Aggregates, ok)...)
			row = append(row, record.Dataset)
		}
		row = append(row, result.FailureText())

		err = writer.Write(row)
		if err != nil {
			return fmt.Errorf("error [%w] at writer.Write(), station [%s]", err, result.Station.ID)
		}
	}

	writer.Flush()
	return writer.Error()
}

/*
WriteLong writes one row per station and buffer radius with the class fractions, the
aggregate fractions, the dataset used and the sampled and expected pixel counts.
Class columns are prefixed "class_", labels not part of the used dataset are empty.
*/
func WriteLong(w io.Writer, schema Schema, results []StationResult) error {
	header := slices.Clone(schema.Header)
	header = append(header, schema.pointColumns()...)
	header = append(header, "radius", "used_map", "pixels", "expected_pixels")
	header = append(header, schema.Aggregates...)
	for _, label := range schema.Labels {
		header = append(header, "class_"+label)
	}
	header = append(header, "failure")

	writer := csv.NewWriter(w)
	err := writer.Write(header)
	if err != nil {
		return fmt.Errorf("error [%w] at writer.Write()", err)
	}

	for _, result := range results {
		for _, radius := range schema.Radii {
			record, ok := result.Record(radius)

			row := stationColumns(schema, result)
			row = append(row, schema.pointValues(result)...)
			row = append(row, formatFloat(radius), record.Dataset)
			if ok {
				row = append(row, formatFloat(record.Pixels), formatFloat(record.Expected))
			} else {
				row = append(row, "", "")
			}
			row = append(row, fractionValues(schema.Aggregates, record.Aggregates, ok)...)
			row = append(row, fractionValues(schema.Labels, record.Fractions, ok)...)
			row = append(row, radiusFailures(result, radius))

			err = writer.Write(row)
			if err != nil {
				return fmt.Errorf("error [%w] at writer.Write(), station [%s]", err, result.Station.ID)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func (s Schema) pointColumns() []string {
	var columns []string
	if s.Height {
		columns = append(columns, "height")
	}
	if s.SVF {
		columns = append(columns, "svf")
	}
	if s.LCZ {
		columns = append(columns, "lcz", "lcz_override")
	}
	return columns
}

func (s Schema) pointValues(result StationResult) []string {
	var values []string
	if s.Height {
		values = append(values, formatOptional(result.Height))
	}
	if s.SVF {
		values = append(values, formatOptional(result.SVF))
	}
	if s.LCZ {
		lcz := ""
		if result.LCZ != nil {
			lcz = *result.LCZ
		}
		values = append(values, lcz, strconv.FormatBool(result.LCZOverride))
	}
	return values
}

// stationColumns returns the original input columns (padded to the header width).
func stationColumns(schema Schema, result StationResult) []string {
	row := make([]string, len(schema.Header))
	copy(row, result.Station.Columns)
	return row
}

// fractionValues formats fractions in column order; absent values are empty.
func fractionValues(names []string, fractions landuse.Fractions, ok bool) []string {
	values := make([]string, len(names))
	if !ok {
		return values
	}
	for i, name := range names {
		if fraction, found := fractions[name]; found {
			values[i] = formatFloat(fraction)
		}
	}
	return values
}

// radiusFailures returns the failures concerning one buffer radius and all station level failures.
func radiusFailures(result StationResult, radius float64) string {
	var texts []string
	for _, failure := range result.Failures {
		if failure.Stage != StageLanduse || failure.Radius == radius {
			texts = append(texts, failure.String())
		}
	}
	return strings.Join(texts, "; ")
}

func radiusPrefix(radius float64) string {
	return formatFloat(radius) + "m_"
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func formatOptional(value *float64) string {
	if value == nil {
		return ""
	}
	return formatFloat(*value)
}
