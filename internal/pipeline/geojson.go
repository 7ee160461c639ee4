package pipeline

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type bufferFeature struct {
	station string
	radius  float64
	dataset string
	buffer  orb.Polygon
}

// BufferCollector collects the sampled buffer polygons for quality control (safe for
// concurrent use). Coordinates are in the projected CRS of the dataset used.
type BufferCollector struct {
	mu       sync.Mutex
	features []bufferFeature
}

// Add collects a buffer polygon (signature of landuse.BufferFunc).
func (c *BufferCollector) Add(station string, radius float64, dataset string, buffer orb.Polygon) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.features = append(c.features, bufferFeature{station: station, radius: radius, dataset: dataset, buffer: buffer})
}

/*
FeatureCollection returns all buffers as GeoJSON features ordered by station and radius.
*/
func (c *BufferCollector) FeatureCollection() *geojson.FeatureCollection {
	c.mu.Lock()
	features := slices.Clone(c.features)
	c.mu.Unlock()

	slices.SortFunc(features, func(a, b bufferFeature) int {
		return cmp.Or(cmp.Compare(a.station, b.station), cmp.Compare(a.radius, b.radius))
	})

	collection := geojson.NewFeatureCollection()
	for _, feature := range features {
		f := geojson.NewFeature(feature.buffer)
		f.Properties["station"] = feature.station
		f.Properties["radius"] = feature.radius
		f.Properties["dataset"] = feature.dataset
		collection.Append(f)
	}
	return collection
}

/*
Write writes all buffers as GeoJSON feature collection to path.
*/
func (c *BufferCollector) Write(path string) error {
	data, err := c.FeatureCollection().MarshalJSON()
	if err != nil {
		return fmt.Errorf("error [%w] at MarshalJSON()", err)
	}
	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("error [%w] at os.WriteFile(), file [%s]", err, path)
	}
	return nil
}
