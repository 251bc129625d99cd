package datastructure

import (
	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/lintang-b-s/tilegraph/pkg/geo"
)

// OSMNode is the per node payload carried through the way-node stream
// and into the graph node sequence.
type OSMNode struct {
	OsmID      uint64
	Lat        float64
	Lng        float64
	Attributes uint32
}

// attribute word layout
const (
	nodeIntersectionBit   = 0
	nodeTrafficSignalBit  = 1
	nodeForwardSignalBit  = 2
	nodeBackwardSignalBit = 3
	nodeRefBit            = 4
	nodeNameBit           = 5
	nodeExitToBit         = 6
	nodeLinkEdgeBit       = 7
	nodeNonLinkEdgeBit    = 8

	nodeAccessShift = 9
	nodeAccessMask  = 0xff

	nodeTypeShift = 17
	nodeTypeMask  = 0xf
)

func (n *OSMNode) getBit(bit uint) bool {
	return n.Attributes&(1<<bit) != 0
}

func (n *OSMNode) setBit(bit uint, v bool) {
	if v {
		n.Attributes |= 1 << bit
	} else {
		n.Attributes &^= 1 << bit
	}
}

// Intersection reports whether this way node terminates an edge: it is
// shared between ways or ends a way.
func (n *OSMNode) Intersection() bool     { return n.getBit(nodeIntersectionBit) }
func (n *OSMNode) SetIntersection(v bool) { n.setBit(nodeIntersectionBit, v) }

func (n *OSMNode) TrafficSignal() bool     { return n.getBit(nodeTrafficSignalBit) }
func (n *OSMNode) SetTrafficSignal(v bool) { n.setBit(nodeTrafficSignalBit, v) }

func (n *OSMNode) ForwardSignal() bool     { return n.getBit(nodeForwardSignalBit) }
func (n *OSMNode) SetForwardSignal(v bool) { n.setBit(nodeForwardSignalBit, v) }

func (n *OSMNode) BackwardSignal() bool     { return n.getBit(nodeBackwardSignalBit) }
func (n *OSMNode) SetBackwardSignal(v bool) { n.setBit(nodeBackwardSignalBit, v) }

// Ref/Name/ExitTo report presence of the corresponding node tag in the
// osm metadata maps.
func (n *OSMNode) Ref() bool     { return n.getBit(nodeRefBit) }
func (n *OSMNode) SetRef(v bool) { n.setBit(nodeRefBit, v) }

func (n *OSMNode) Name() bool     { return n.getBit(nodeNameBit) }
func (n *OSMNode) SetName(v bool) { n.setBit(nodeNameBit, v) }

func (n *OSMNode) ExitTo() bool     { return n.getBit(nodeExitToBit) }
func (n *OSMNode) SetExitTo(v bool) { n.setBit(nodeExitToBit, v) }

// LinkEdge / NonLinkEdge accumulate, over phases B and C, whether any
// incident edge is a link / non-link.
func (n *OSMNode) LinkEdge() bool     { return n.getBit(nodeLinkEdgeBit) }
func (n *OSMNode) SetLinkEdge(v bool) { n.setBit(nodeLinkEdgeBit, v) }

func (n *OSMNode) NonLinkEdge() bool     { return n.getBit(nodeNonLinkEdgeBit) }
func (n *OSMNode) SetNonLinkEdge(v bool) { n.setBit(nodeNonLinkEdgeBit, v) }

func (n *OSMNode) AccessMask() uint8 {
	return uint8((n.Attributes >> nodeAccessShift) & nodeAccessMask)
}

func (n *OSMNode) SetAccessMask(m uint8) {
	n.Attributes = (n.Attributes &^ (uint32(nodeAccessMask) << nodeAccessShift)) |
		(uint32(m) << nodeAccessShift)
}

func (n *OSMNode) Type() pkg.NodeType {
	return pkg.NodeType((n.Attributes >> nodeTypeShift) & nodeTypeMask)
}

func (n *OSMNode) SetType(t pkg.NodeType) {
	n.Attributes = (n.Attributes &^ (uint32(nodeTypeMask) << nodeTypeShift)) |
		((uint32(t) & nodeTypeMask) << nodeTypeShift)
}

// Node within the graph node sequence.
type Node struct {
	OSMNode
	// the edge this node starts, InvalidIndex if none
	StartOf Index
	// the edge this node ends, InvalidIndex if none
	EndOf Index
	// the tiled graph id of the node
	GraphID geo.GraphID
}

func (n *Node) IsStart() bool {
	return n.StartOf != InvalidIndex
}

func (n *Node) IsEnd() bool {
	return n.EndOf != InvalidIndex
}
