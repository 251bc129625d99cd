package spatialindex

import (
	"github.com/lintang-b-s/tilegraph/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

// TileRtree indexes the geographic extents of finished tiles so
// callers can find the tiles covering a bounding box without decoding
// any artifact.
type TileRtree struct {
	tr *rtree.RTreeG[geo.GraphID]
}

func NewTileRtree() *TileRtree {
	var tr rtree.RTreeG[geo.GraphID]
	return &TileRtree{tr: &tr}
}

// Build inserts every tile of the index using the hierarchy to compute
// its bounds.
func (rt *TileRtree) Build(hierarchy *geo.TileHierarchy, tiles []geo.GraphID, log *zap.Logger) {
	log.Sugar().Infof("building tile spatial index over %d tiles...", len(tiles))
	for _, id := range tiles {
		rt.Insert(hierarchy, id)
	}
}

func (rt *TileRtree) Insert(hierarchy *geo.TileHierarchy, id geo.GraphID) {
	minLat, minLon, maxLat, maxLon := hierarchy.TileBounds(id)
	rt.tr.Insert([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat}, id.TileBase())
}

// Search returns the tiles intersecting the bounding box.
func (rt *TileRtree) Search(minLat, minLon, maxLat, maxLon float64) []geo.GraphID {
	var result []geo.GraphID
	rt.tr.Search([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat},
		func(min, max [2]float64, data geo.GraphID) bool {
			result = append(result, data)
			return true
		})
	return result
}

func (rt *TileRtree) Len() int {
	return rt.tr.Len()
}
