package tile

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/lintang-b-s/tilegraph/pkg/geo"
)

func buildTestTile() *GraphTileBuilder {
	graphID := geo.NewGraphID(2, 1234, 0)
	b := NewGraphTileBuilder(graphID)

	shape := []geo.Coordinate{
		geo.NewCoordinate(52.52, 13.405),
		geo.NewCoordinate(52.521, 13.406),
	}
	off := b.AddEdgeInfo(7, graphID.WithID(0), graphID.WithID(1), shape,
		[]string{"A100", "Stadtring"})

	forward := DirectedEdge{
		EdgeInfoOffset: off,
		EndNode:        graphID.WithID(1),
		Length:         131,
		Speed:          80,
		Use:            pkg.USE_RAMP,
		Classification: pkg.TRUNK,
		Forward:        true,
		ForwardAccess:  true,
		ExitSign:       true,
	}
	reverse := forward
	reverse.EndNode = graphID.WithID(0)
	reverse.Forward = false
	reverse.LocalEdgeIndex = 0
	// the second direction reuses the interned edge info
	reverse.EdgeInfoOffset = b.AddEdgeInfo(7, graphID.WithID(0), graphID.WithID(1), shape, nil)

	b.AddNodeAndDirectedEdges(NodeInfo{
		Lat: 52.52, Lng: 13.405, EdgeIndex: 0, EdgeCount: 1,
		DriveableCount: 1, BestClass: pkg.TRUNK, AccessMask: 1,
		Intersection: true,
	}, []DirectedEdge{forward})
	b.AddNodeAndDirectedEdges(NodeInfo{
		Lat: 52.521, Lng: 13.406, EdgeIndex: 1, EdgeCount: 1,
		DriveableCount: 1, BestClass: pkg.TRUNK, AccessMask: 1,
		TrafficSignal: true,
	}, []DirectedEdge{reverse})

	b.AddSigns(0, []SignInfo{
		{Type: pkg.EXIT_NUMBER, Text: "42"},
		{Type: pkg.EXIT_TOWARD, Text: "Wedding"},
	})
	return b
}

func assertTile(t *testing.T, got *GraphTile, want *GraphTileBuilder) {
	t.Helper()
	if got.GraphID != want.graphID {
		t.Fatalf("graph id = %v; want %v", got.GraphID, want.graphID)
	}
	if len(got.Nodes) != 2 || len(got.DirectedEdges) != 2 ||
		len(got.EdgeInfos) != 1 || len(got.Signs) != 2 {
		t.Fatalf("counts = %d nodes %d edges %d infos %d signs",
			len(got.Nodes), len(got.DirectedEdges), len(got.EdgeInfos), len(got.Signs))
	}

	if got.Nodes[0] != want.nodes[0] || got.Nodes[1] != want.nodes[1] {
		t.Errorf("nodes = %+v; want %+v", got.Nodes, want.nodes)
	}
	if got.DirectedEdges[0] != want.directedEdges[0] ||
		got.DirectedEdges[1] != want.directedEdges[1] {
		t.Errorf("directed edges = %+v; want %+v", got.DirectedEdges, want.directedEdges)
	}

	info := got.EdgeInfos[0]
	if info.SourceNode != want.edgeInfos[0].SourceNode ||
		info.TargetNode != want.edgeInfos[0].TargetNode {
		t.Errorf("edge info endpoints = %+v", info)
	}
	if len(info.Names) != 2 || info.Names[0] != "A100" || info.Names[1] != "Stadtring" {
		t.Errorf("edge info names = %v", info.Names)
	}
	// the polyline codec quantizes to 1e-5 degrees
	for i, c := range info.Shape {
		if math.Abs(c.Lat-want.edgeInfos[0].Shape[i].Lat) > 1e-5 ||
			math.Abs(c.Lon-want.edgeInfos[0].Shape[i].Lon) > 1e-5 {
			t.Errorf("shape %d = %+v; want %+v", i, c, want.edgeInfos[0].Shape[i])
		}
	}

	if got.Signs[0].Info.Text != "42" || got.Signs[1].Info.Text != "Wedding" ||
		got.Signs[0].Info.Type != pkg.EXIT_NUMBER || got.Signs[1].Info.Type != pkg.EXIT_TOWARD {
		t.Errorf("signs = %+v", got.Signs)
	}
}

func TestTileRoundTrip(t *testing.T) {
	b := buildTestTile()
	dir := t.TempDir()
	size, err := b.StoreTileData(dir, false)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if size <= 0 {
		t.Fatalf("size = %d", size)
	}

	got, err := ReadTile(filepath.Join(dir, TileFileName(b.GraphID(), false)))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	assertTile(t, got, b)
}

func TestTileRoundTripCompressed(t *testing.T) {
	b := buildTestTile()
	dir := t.TempDir()
	if _, err := b.StoreTileData(dir, true); err != nil {
		t.Fatalf("err: %v", err)
	}

	got, err := ReadTile(filepath.Join(dir, TileFileName(b.GraphID(), true)))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	assertTile(t, got, b)
}

func TestReadTileRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2_1.gph")
	if err := os.WriteFile(path, []byte("not a tile artifact at all"), 0644); err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := ReadTile(path); err == nil {
		t.Errorf("expected error on garbage file")
	}
}
