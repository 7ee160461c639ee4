package stations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vergauwenthomas/VLINDER/internal/raster"
)

const stationCSV = `station,name,lat,lon
vlinder01,Ghent,51.05,3.72
vlinder02, Melle,50.98,3.82
`

const stationGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <wpt lat="51.05" lon="3.72"><name>vlinder01</name><desc>Ghent</desc></wpt>
  <wpt lat="50.98" lon="3.82"></wpt>
</gpx>
`

func TestReadCSV(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(stationCSV), DefaultColumns())
	require.NoError(t, err)

	assert.Equal(t, []string{"station", "name", "lat", "lon"}, table.Header)
	require.Len(t, table.Stations, 2)
	assert.Equal(t, Station{ID: "vlinder01", Lat: 51.05, Lon: 3.72, Columns: []string{"vlinder01", "Ghent", "51.05", "3.72"}}, table.Stations[0])
	assert.Equal(t, "vlinder02", table.Stations[1].ID)
	assert.Equal(t, "Melle", table.Stations[1].Columns[1])
}

func TestReadCSVCustomColumns(t *testing.T) {
	input := "id;y;x\nA;50.5;4.5\n"
	columns := Columns{Station: "id", Latitude: "y", Longitude: "x"}

	_, err := ReadCSV(strings.NewReader(input), columns)
	require.Error(t, err)

	table, err := ReadCSV(strings.NewReader(strings.ReplaceAll(input, ";", ",")), columns)
	require.NoError(t, err)
	assert.Equal(t, 50.5, table.Stations[0].Lat)
	assert.Equal(t, 4.5, table.Stations[0].Lon)
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing column", "station,lat\nA,50\n"},
		{"invalid latitude", "station,lat,lon\nA,north,4\n"},
		{"latitude out of range", "station,lat,lon\nA,95,4\n"},
		{"duplicate station", "station,lat,lon\nA,50,4\nA,51,4\n"},
		{"empty identifier", "station,lat,lon\n ,50,4\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.input), DefaultColumns())
			assert.ErrorIs(t, err, raster.ErrConfiguration)
		})
	}
}

func TestReadGPX(t *testing.T) {
	table, err := ReadGPX([]byte(stationGPX))
	require.NoError(t, err)

	require.Len(t, table.Stations, 2)
	assert.Equal(t, "vlinder01", table.Stations[0].ID)
	assert.Equal(t, 51.05, table.Stations[0].Lat)
	assert.Equal(t, 3.72, table.Stations[0].Lon)
	assert.Equal(t, "Ghent", table.Stations[0].Columns[3])
	assert.Equal(t, "waypoint_2", table.Stations[1].ID)
	assert.Len(t, table.Stations[1].Columns, len(table.Header))
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "stations.csv")
	gpxPath := filepath.Join(dir, "stations.GPX")
	require.NoError(t, os.WriteFile(csvPath, []byte(stationCSV), 0o600))
	require.NoError(t, os.WriteFile(gpxPath, []byte(stationGPX), 0o600))

	table, err := Load(csvPath, DefaultColumns())
	require.NoError(t, err)
	assert.Len(t, table.Stations, 2)

	table, err = Load(gpxPath, DefaultColumns())
	require.NoError(t, err)
	assert.Equal(t, "description", table.Header[3])

	_, err = Load(filepath.Join(dir, "missing.csv"), DefaultColumns())
	assert.ErrorIs(t, err, raster.ErrConfiguration)
}
