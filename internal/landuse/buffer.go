package landuse

import (
	"math"

	"github.com/paulmach/orb"
)

// BufferSegments is the number of polygon segments approximating a buffer circle
// (30 segments per quarter circle).
const BufferSegments = 120

/*
Buffer returns a circular polygon with the given radius (map units) around center.
The ring is closed and counter-clockwise.
*/
func Buffer(center orb.Point, radius float64, segments int) orb.Polygon {
	if segments < 4 {
		segments = BufferSegments
	}
	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		angle := 2 * math.Pi * float64(i) / float64(segments)
		ring = append(ring, orb.Point{
			center[0] + radius*math.Cos(angle),
			center[1] + radius*math.Sin(angle),
		})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// ExpectedPixels returns the number of cells of a disk with the given radius.
func ExpectedPixels(radius, resolution float64) float64 {
	return math.Pi * radius * radius / (resolution * resolution)
}

/*
SufficientCoverage reports whether the sampled pixel count covers the disk.
The count must exceed the expected count reduced by tolerance (a fraction).
*/
func SufficientCoverage(pixels, radius, resolution, tolerance float64) bool {
	minimum := ExpectedPixels(radius, resolution) * (1 - tolerance)
	return pixels > minimum
}
