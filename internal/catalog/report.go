package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

/*
WriteCSV writes the tiles of all tile sets as csv (one line per tile, in catalog order).
*/
func WriteCSV(w io.Writer, tileSets []*TileSet) error {
	// create csv writer
	writer := csv.NewWriter(w)

	// write header
	header := []string{"Dataset", "Index", "Path", "MinX", "MinY", "MaxX", "MaxY", "Resolution", "EPSG", "Categorical", "CRS"}
	err := writer.Write(header)
	if err != nil {
		return fmt.Errorf("error [%v] at writer.Write()", err)
	}

	for _, tileSet := range tileSets {
		for _, tile := range tileSet.Tiles {
			// create and write csv line
			row := []string{
				tileSet.Name,
				strconv.Itoa(tile.Index),
				tile.Path,
				formatCoordinate(tile.Bounds.Min[0]),
				formatCoordinate(tile.Bounds.Min[1]),
				formatCoordinate(tile.Bounds.Max[0]),
				formatCoordinate(tile.Bounds.Max[1]),
				strconv.FormatFloat(tile.Resolution(), 'f', -1, 64),
				strconv.Itoa(tile.EPSG),
				strconv.FormatBool(tile.Categorical),
				tile.CRS,
			}
			err = writer.Write(row)
			if err != nil {
				return fmt.Errorf("error [%v] at writer.Write()", err)
			}
		}
	}

	writer.Flush()
	err = writer.Error()
	if err != nil {
		return fmt.Errorf("error [%v] at writer.Error()", err)
	}

	return nil
}

func formatCoordinate(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}
