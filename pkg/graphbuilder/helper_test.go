package graphbuilder

import (
	"path/filepath"
	"testing"

	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/lintang-b-s/tilegraph/pkg/datastructure"
	"github.com/lintang-b-s/tilegraph/pkg/geo"
	"github.com/lintang-b-s/tilegraph/pkg/logger"
	"github.com/lintang-b-s/tilegraph/pkg/sequence"
	"go.uber.org/zap"
)

type testWayNode struct {
	osmID          uint64
	lat, lng       float64
	intersection   bool
	signal         bool
	forwardSignal  bool
	backwardSignal bool
	ref            string
	name           string
	exitTo         string
}

type testWay struct {
	id           uint64
	class        pkg.RoadClass
	link         bool
	oneway       bool
	autoForward  bool
	autoBackward bool
	speed        float32
	use          pkg.Use
	nodes        []testWayNode
}

func twoWay(id uint64, class pkg.RoadClass, nodes ...testWayNode) testWay {
	return testWay{
		id: id, class: class, autoForward: true, autoBackward: true,
		speed: 50, use: pkg.USE_ROAD, nodes: nodes,
	}
}

func oneWay(id uint64, class pkg.RoadClass, nodes ...testWayNode) testWay {
	return testWay{
		id: id, class: class, oneway: true, autoForward: true,
		speed: 50, use: pkg.USE_ROAD, nodes: nodes,
	}
}

func linkWay(id uint64, class pkg.RoadClass, nodes ...testWayNode) testWay {
	w := twoWay(id, class, nodes...)
	w.link = true
	return w
}

func wn(osmID uint64, lat, lng float64, intersection bool) testWayNode {
	return testWayNode{osmID: osmID, lat: lat, lng: lng, intersection: intersection}
}

type testFixture struct {
	osmdata   *datastructure.OSMData
	nodesFile string
	edgesFile string
	hierarchy *geo.TileHierarchy
	logger    *zap.Logger
}

// writeTestGraph serializes the ways into the sequence files the
// pipeline reads. Way terminal nodes are always marked intersections,
// like the pbf ingest does.
func writeTestGraph(t *testing.T, ways []testWay) *testFixture {
	t.Helper()
	dir := t.TempDir()

	osmdata := datastructure.NewOSMData(
		filepath.Join(dir, "ways.bin"), filepath.Join(dir, "way_nodes.bin"))

	waySeq, err := sequence.New[datastructure.OSMWay](osmdata.WaysFile, true)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	wayNodeSeq, err := sequence.New[datastructure.OSMWayNode](osmdata.WayNodesFile, true)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	for wi, w := range ways {
		var record datastructure.OSMWay
		record.WayID = w.id
		record.NodeCount = uint16(len(w.nodes))
		record.RoadClass = w.class
		record.Use = w.use
		record.Speed = w.speed
		record.SetLink(w.link)
		record.SetOneway(w.oneway)
		record.SetAutoForward(w.autoForward)
		record.SetAutoBackward(w.autoBackward)
		if err := waySeq.Append(record); err != nil {
			t.Fatalf("err: %v", err)
		}

		for ni, n := range w.nodes {
			var node datastructure.OSMNode
			node.OsmID = n.osmID
			node.Lat = n.lat
			node.Lng = n.lng
			node.SetIntersection(n.intersection || ni == 0 || ni == len(w.nodes)-1)
			node.SetTrafficSignal(n.signal)
			node.SetForwardSignal(n.forwardSignal)
			node.SetBackwardSignal(n.backwardSignal)
			node.SetAccessMask(1)
			if n.ref != "" {
				node.SetRef(true)
				osmdata.NodeRef[n.osmID] = n.ref
			}
			if n.name != "" {
				node.SetName(true)
				osmdata.NodeName[n.osmID] = n.name
			}
			if n.exitTo != "" {
				node.SetExitTo(true)
				osmdata.NodeExitTo[n.osmID] = n.exitTo
			}
			if err := wayNodeSeq.Append(datastructure.OSMWayNode{
				WayIndex: datastructure.Index(wi),
				Node:     node,
			}); err != nil {
				t.Fatalf("err: %v", err)
			}
		}
	}
	if err := waySeq.Close(); err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := wayNodeSeq.Close(); err != nil {
		t.Fatalf("err: %v", err)
	}

	log, err := logger.New()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return &testFixture{
		osmdata:   osmdata,
		nodesFile: filepath.Join(dir, "nodes.bin"),
		edgesFile: filepath.Join(dir, "edges.bin"),
		hierarchy: geo.DefaultTileHierarchy(),
		logger:    log,
	}
}

// construct runs phase B.
func (f *testFixture) construct(t *testing.T) {
	t.Helper()
	if err := ConstructEdges(f.osmdata, f.nodesFile, f.edgesFile,
		f.hierarchy, f.hierarchy.LocalLevel(), f.logger); err != nil {
		t.Fatalf("err: %v", err)
	}
}

// sort runs phase C.
func (f *testFixture) sort(t *testing.T) TileIndex {
	t.Helper()
	tiles, err := SortGraph(f.nodesFile, f.edgesFile, f.logger)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return tiles
}

func (f *testFixture) openNodes(t *testing.T) *sequence.Sequence[datastructure.Node] {
	t.Helper()
	nodes, err := sequence.OpenReadOnly[datastructure.Node](f.nodesFile)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	t.Cleanup(func() { nodes.Close() })
	return nodes
}

func (f *testFixture) openEdges(t *testing.T) *sequence.Sequence[datastructure.Edge] {
	t.Helper()
	edges, err := sequence.OpenReadOnly[datastructure.Edge](f.edgesFile)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	t.Cleanup(func() { edges.Close() })
	return edges
}

// readAllNodes / readAllEdges snapshot the sequences for assertions.
func readAllNodes(t *testing.T, nodes *sequence.Sequence[datastructure.Node]) []datastructure.Node {
	t.Helper()
	var all []datastructure.Node
	if err := nodes.Iterate(func(i int64, n datastructure.Node) error {
		all = append(all, n)
		return nil
	}); err != nil {
		t.Fatalf("err: %v", err)
	}
	return all
}

func readAllEdges(t *testing.T, edges *sequence.Sequence[datastructure.Edge]) []datastructure.Edge {
	t.Helper()
	var all []datastructure.Edge
	if err := edges.Iterate(func(i int64, e datastructure.Edge) error {
		all = append(all, e)
		return nil
	}); err != nil {
		t.Fatalf("err: %v", err)
	}
	return all
}

// canonicalIndex finds the first (canonical) node of an osm id run in
// the sorted node sequence.
func canonicalIndex(t *testing.T, nodes *sequence.Sequence[datastructure.Node], osmID uint64) int64 {
	t.Helper()
	for i := int64(0); i < nodes.Size(); i++ {
		n, err := nodes.At(i)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if n.OsmID == osmID {
			return i
		}
	}
	t.Fatalf("node %d not found", osmID)
	return -1
}

func lengthOf(shape []geo.Coordinate) float64 {
	return geo.PolylineLengthMeters(shape)
}

func addRestriction(f *testFixture, fromWay uint64, rType pkg.RestrictionType,
	day pkg.DOW, viaOsmID, toWay uint64) {
	f.osmdata.Restrictions[fromWay] = append(f.osmdata.Restrictions[fromWay],
		datastructure.OSMRestriction{
			Type:     rType,
			DayOn:    day,
			ViaOsmID: viaOsmID,
			ViaNode:  datastructure.InvalidIndex,
			To:       toWay,
		})
}

// newTestWorker opens a tile worker over the fixture.
func (f *testFixture) newTestWorker(t *testing.T, tileDir string) *tileWorker {
	t.Helper()
	worker, err := newTileWorker(f.osmdata, f.nodesFile, f.edgesFile,
		tileDir, false, f.logger)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	t.Cleanup(worker.close)
	return worker
}
