package tile

import (
	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/lintang-b-s/tilegraph/pkg/datastructure"
	"github.com/lintang-b-s/tilegraph/pkg/geo"
)

// NodeInfo is the per node record of a tile.
type NodeInfo struct {
	Lat            float64
	Lng            float64
	EdgeIndex      uint32
	EdgeCount      uint32
	DriveableCount uint32
	BestClass      pkg.RoadClass
	AccessMask     uint8
	Type           pkg.NodeType
	Intersection   bool
	TrafficSignal  bool
}

// DirectedEdge is one direction of an undirected graph edge, attached
// to the node it leaves.
type DirectedEdge struct {
	EdgeInfoOffset  uint32
	EndNode         geo.GraphID
	Length          uint32
	Speed           float32
	Use             pkg.Use
	Classification  pkg.RoadClass
	LocalEdgeIndex  uint32
	RestrictionMask uint32

	Forward       bool
	NotThru       bool
	Internal      bool
	TrafficSignal bool
	ExitSign      bool
	ForwardAccess bool
	ReverseAccess bool
}

// NewDirectedEdge derives the directed attributes from the way and the
// orientation at the node being built.
func NewDirectedEdge(way *datastructure.OSMWay, endNode geo.GraphID, forward bool,
	length uint32, speed float32, use pkg.Use, notThru, internal bool,
	classification pkg.RoadClass, localEdgeIndex uint32, trafficSignal bool,
	restrictionMask uint32) DirectedEdge {

	forwardAccess := way.AutoForward()
	reverseAccess := way.AutoBackward()
	if !forward {
		forwardAccess, reverseAccess = reverseAccess, forwardAccess
	}
	return DirectedEdge{
		EndNode:         endNode,
		Length:          length,
		Speed:           speed,
		Use:             use,
		Classification:  classification,
		LocalEdgeIndex:  localEdgeIndex,
		RestrictionMask: restrictionMask,
		Forward:         forward,
		NotThru:         notThru,
		Internal:        internal,
		TrafficSignal:   trafficSignal,
		ForwardAccess:   forwardAccess,
		ReverseAccess:   reverseAccess,
	}
}

// SignInfo is one assembled exit sign element.
type SignInfo struct {
	Type pkg.SignType
	Text string
}

// Sign attaches a sign element to a directed edge within the tile.
type Sign struct {
	DirectedEdgeIndex uint32
	Info              SignInfo
}

// EdgeInfo is the shared (direction independent) description of an
// edge: end points, shape and names. Both directed edges of one
// undirected edge reference the same record.
type EdgeInfo struct {
	SourceNode geo.GraphID
	TargetNode geo.GraphID
	Shape      []geo.Coordinate
	Names      []string
}

// GraphTileBuilder accumulates the records of one tile and writes the
// artifact. Record stream order in the artifact: node infos, their
// directed edges, the edge-info table, the sign table.
type GraphTileBuilder struct {
	graphID geo.GraphID

	nodes         []NodeInfo
	directedEdges []DirectedEdge
	edgeInfos     []EdgeInfo
	signs         []Sign

	// from global edge index to edge-info offset, dedupes the shared
	// record between the two directions
	edgeInfoOffsets map[int64]uint32
}

func NewGraphTileBuilder(graphID geo.GraphID) *GraphTileBuilder {
	return &GraphTileBuilder{
		graphID:         graphID.TileBase(),
		edgeInfoOffsets: make(map[int64]uint32),
	}
}

func (b *GraphTileBuilder) GraphID() geo.GraphID {
	return b.graphID
}

// AddNodeAndDirectedEdges appends a node record and its contiguous run
// of directed edges.
func (b *GraphTileBuilder) AddNodeAndDirectedEdges(node NodeInfo, edges []DirectedEdge) {
	b.nodes = append(b.nodes, node)
	b.directedEdges = append(b.directedEdges, edges...)
}

// AddEdgeInfo interns the shared edge record for the given global edge
// index and returns its offset. The second direction of the edge gets
// the offset recorded by the first.
func (b *GraphTileBuilder) AddEdgeInfo(edgeIndex int64, source, target geo.GraphID,
	shape []geo.Coordinate, names []string) uint32 {

	if off, ok := b.edgeInfoOffsets[edgeIndex]; ok {
		return off
	}
	off := uint32(len(b.edgeInfos))
	b.edgeInfos = append(b.edgeInfos, EdgeInfo{
		SourceNode: source,
		TargetNode: target,
		Shape:      shape,
		Names:      names,
	})
	b.edgeInfoOffsets[edgeIndex] = off
	return off
}

// AddSigns attaches sign elements to a directed edge.
func (b *GraphTileBuilder) AddSigns(directedEdgeIndex uint32, infos []SignInfo) {
	for _, info := range infos {
		b.signs = append(b.signs, Sign{DirectedEdgeIndex: directedEdgeIndex, Info: info})
	}
}

func (b *GraphTileBuilder) NodeCount() int {
	return len(b.nodes)
}

func (b *GraphTileBuilder) DirectedEdgeCount() int {
	return len(b.directedEdges)
}
