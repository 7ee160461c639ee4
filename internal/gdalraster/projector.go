package gdalraster

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
)

// Projector transforms WGS84 coordinates into projected coordinate systems.
type Projector struct{}

/*
Project transforms lon/lat coordinates (WGS84, EPSG:4326) to the given target CRS
(e.g. 31370 Belgian Lambert 72, 3035 ETRS89-LAEA).
*/
func (Projector) Project(lon, lat float64, targetEPSG int) (orb.Point, error) {
	// define source: WGS84 (EPSG:4326)
	sourceSRS, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return orb.Point{}, fmt.Errorf("error [%w] creating source SRS (EPSG:4326)", err)
	}
	defer sourceSRS.Close()

	targetSRS, err := godal.NewSpatialRefFromEPSG(targetEPSG)
	if err != nil {
		return orb.Point{}, fmt.Errorf("error [%w] creating target SRS (EPSG:%d)", err, targetEPSG)
	}
	defer targetSRS.Close()

	transform, err := godal.NewTransform(sourceSRS, targetSRS)
	if err != nil {
		return orb.Point{}, fmt.Errorf("error [%w] at godal.NewTransform(), EPSG:4326 to EPSG:%d", err, targetEPSG)
	}
	defer transform.Close()

	xCoords := []float64{lon} // longitude in WGS84
	yCoords := []float64{lat} // latitude in WGS84
	successFlags := make([]bool, 1)

	err = transform.TransformEx(xCoords, yCoords, nil, successFlags)
	if err != nil {
		return orb.Point{}, fmt.Errorf("error [%w] at transform.TransformEx()", err)
	}
	if !successFlags[0] {
		return orb.Point{}, fmt.Errorf("transformation from EPSG:4326 to EPSG:%d failed for coordinates (%.8f, %.8f)", targetEPSG, lon, lat)
	}

	return orb.Point{xCoords[0], yCoords[0]}, nil
}
