// Package stations reads the station list (identifier and WGS84 coordinates) from a CSV
// table or from the waypoints of a GPX file.
package stations

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/vergauwenthomas/VLINDER/internal/raster"
)

// Station is one measurement location. Columns holds all original input columns (in
// header order) so they can be carried to the output table.
type Station struct {
	ID      string
	Lat     float64
	Lon     float64
	Columns []string
}

// Table is the station list with the header of the original input columns.
type Table struct {
	Header   []string
	Stations []Station
}

// Columns names the identifier and coordinate columns of a CSV station table.
type Columns struct {
	Station   string
	Latitude  string
	Longitude string
}

// DefaultColumns returns the column names of the VLINDER station list.
func DefaultColumns() Columns {
	return Columns{Station: "station", Latitude: "lat", Longitude: "lon"}
}

/*
Load reads a station list; files with extension .gpx are read as GPX waypoints, all other
files as CSV.
*/
func Load(path string, columns Columns) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".gpx") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error [%v] at os.ReadFile(), file [%s]: %w", err, path, raster.ErrConfiguration)
		}
		return ReadGPX(data)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error [%v] at os.Open(), file [%s]: %w", err, path, raster.ErrConfiguration)
	}
	defer file.Close()

	return ReadCSV(file, columns)
}

/*
ReadCSV reads a station table with header line. Station identifiers must be unique,
coordinates must be valid WGS84 decimal degrees.
*/
func ReadCSV(reader io.Reader, columns Columns) (*Table, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("error [%v] reading station table header: %w", err, raster.ErrConfiguration)
	}

	index := func(name string) (int, error) {
		for i, column := range header {
			if strings.TrimSpace(column) == name {
				return i, nil
			}
		}
		return 0, fmt.Errorf("station table without column [%s]: %w", name, raster.ErrConfiguration)
	}
	idColumn, err := index(columns.Station)
	if err != nil {
		return nil, err
	}
	latColumn, err := index(columns.Latitude)
	if err != nil {
		return nil, err
	}
	lonColumn, err := index(columns.Longitude)
	if err != nil {
		return nil, err
	}

	table := &Table{Header: header}
	line := 1
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("error [%v] reading station table line %d: %w", err, line, raster.ErrConfiguration)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(record[latColumn]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude [%s] in line %d: %w", record[latColumn], line, raster.ErrConfiguration)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(record[lonColumn]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude [%s] in line %d: %w", record[lonColumn], line, raster.ErrConfiguration)
		}

		station := Station{ID: strings.TrimSpace(record[idColumn]), Lat: lat, Lon: lon, Columns: record}
		err = table.add(station)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	return table, nil
}

/*
ReadGPX reads the waypoints of a GPX file as stations (waypoint name = station identifier).
*/
func ReadGPX(data []byte) (*Table, error) {
	gpxData, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("error [%v] at gpx.ParseBytes(): %w", err, raster.ErrConfiguration)
	}

	table := &Table{Header: []string{"station", "lat", "lon", "description"}}
	for i, waypoint := range gpxData.Waypoints {
		name := strings.TrimSpace(waypoint.Name)
		if name == "" {
			name = fmt.Sprintf("waypoint_%d", i+1)
		}
		station := Station{
			ID:  name,
			Lat: waypoint.Latitude,
			Lon: waypoint.Longitude,
			Columns: []string{
				name,
				strconv.FormatFloat(waypoint.Latitude, 'f', -1, 64),
				strconv.FormatFloat(waypoint.Longitude, 'f', -1, 64),
				waypoint.Description,
			},
		}
		err = table.add(station)
		if err != nil {
			return nil, fmt.Errorf("waypoint %d: %w", i+1, err)
		}
	}

	return table, nil
}

func (t *Table) add(station Station) error {
	if station.ID == "" {
		return fmt.Errorf("station without identifier: %w", raster.ErrConfiguration)
	}
	if math.IsNaN(station.Lat) || station.Lat < -90 || station.Lat > 90 ||
		math.IsNaN(station.Lon) || station.Lon < -180 || station.Lon > 180 {
		return fmt.Errorf("station [%s] with invalid coordinates (%f, %f): %w", station.ID, station.Lat, station.Lon, raster.ErrConfiguration)
	}
	for _, existing := range t.Stations {
		if existing.ID == station.ID {
			return fmt.Errorf("station identifier [%s] is not unique: %w", station.ID, raster.ErrConfiguration)
		}
	}
	t.Stations = append(t.Stations, station)
	return nil
}
