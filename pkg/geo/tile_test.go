package geo

import "testing"

func TestGraphIDPacking(t *testing.T) {
	testCases := []struct {
		name  string
		level uint8
		tile  uint32
		id    uint32
	}{
		{name: "zero", level: 0, tile: 0, id: 0},
		{name: "small", level: 2, tile: 12345, id: 42},
		{name: "max fields", level: 7, tile: (1 << 22) - 1, id: (1 << 21) - 1},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraphID(tt.level, tt.tile, tt.id)
			if g.Level() != tt.level || g.Tile() != tt.tile || g.ID() != tt.id {
				t.Errorf("round trip = (%d, %d, %d); want (%d, %d, %d)",
					g.Level(), g.Tile(), g.ID(), tt.level, tt.tile, tt.id)
			}
			if g.TileBase().ID() != 0 {
				t.Errorf("tile base keeps id %d", g.TileBase().ID())
			}
			if g.TileBase().Tile() != tt.tile || g.TileBase().Level() != tt.level {
				t.Errorf("tile base loses tile or level")
			}
			if g.WithID(7).ID() != 7 || g.WithID(7).Tile() != tt.tile {
				t.Errorf("with id broken")
			}
		})
	}
}

// uint64 ordering sorts ids of one level by tile when the intra-tile
// id is 0
func TestGraphIDOrdering(t *testing.T) {
	a := NewGraphID(2, 100, 0)
	b := NewGraphID(2, 101, 0)
	if !(a < b) {
		t.Errorf("tile ordering broken")
	}
}

func TestGetGraphID(t *testing.T) {
	h := DefaultTileHierarchy()
	level := h.LocalLevel()
	if level != 2 {
		t.Fatalf("local level = %d", level)
	}

	a := h.GetGraphID(0.1, 0.1, level)
	b := h.GetGraphID(0.2, 0.2, level)
	if a != b {
		t.Errorf("points in one 0.25 degree cell map to different tiles")
	}
	c := h.GetGraphID(0.3, 0.1, level)
	if a == c {
		t.Errorf("points one row apart map to the same tile")
	}

	// tile assignment is a pure function of the coordinate
	if h.GetGraphID(0.1, 0.1, level) != a {
		t.Errorf("tile assignment not deterministic")
	}

	minLat, minLon, maxLat, maxLon := h.TileBounds(a)
	if !(minLat <= 0.1 && 0.1 < maxLat && minLon <= 0.1 && 0.1 < maxLon) {
		t.Errorf("bounds (%v %v %v %v) do not contain the point", minLat, minLon, maxLat, maxLon)
	}
	if maxLat-minLat != 0.25 || maxLon-minLon != 0.25 {
		t.Errorf("tile size = %v x %v", maxLat-minLat, maxLon-minLon)
	}
}

func TestPolylineLengthMeters(t *testing.T) {
	// one degree of latitude is about 111 km
	shape := []Coordinate{
		NewCoordinate(0, 0),
		NewCoordinate(1, 0),
	}
	length := PolylineLengthMeters(shape)
	if length < 110000 || length > 112000 {
		t.Errorf("length = %v; want about 111 km", length)
	}

	// a polyline accumulates segment lengths
	shape = append(shape, NewCoordinate(2, 0))
	if l := PolylineLengthMeters(shape); l < 2*length*0.99 || l > 2*length*1.01 {
		t.Errorf("two segment length = %v", l)
	}

	if PolylineLengthMeters(shape[:1]) != 0 {
		t.Errorf("single point polyline has non-zero length")
	}
}
