package datastructure

import (
	"math"

	"github.com/lintang-b-s/tilegraph/pkg"
)

// Index of a record within a sequence file.
type Index uint32

const InvalidIndex Index = math.MaxUint32

// Edge connects two nodes that form intersections (or way ends). Way
// nodes with fewer than two uses become shape points along the edge.
// The record is five little-endian words; the attribute word is bit
// packed so the whole edge stays at 20 bytes on disk.
type Edge struct {
	// index of the source (start) node of the edge
	SourceNode Index
	// index into the way sequence
	WayIndex Index
	// index of the first shape point in the way-node sequence
	LLIndex Index
	// bit packed attributes, see the accessors below
	Attributes uint32
	// index of the target (end) node of the edge
	TargetNode Index
}

// attribute word layout
const (
	edgeLLCountShift = 0
	edgeLLCountMask  = 0xffff

	edgeImportanceShift = 16
	edgeImportanceMask  = 0x7

	edgeDriveableForwardBit = 19
	edgeDriveableReverseBit = 20
	edgeTrafficSignalBit    = 21
	edgeForwardSignalBit    = 22
	edgeBackwardSignalBit   = 23
	edgeLinkBit             = 24
)

// NewEdge starts an edge at sourceNode. The target node and the rest
// of the shape are filled in while walking the way.
func NewEdge(sourceNode, wayIndex, llIndex Index, way *OSMWay) Edge {
	e := Edge{
		SourceNode: sourceNode,
		WayIndex:   wayIndex,
		LLIndex:    llIndex,
		TargetNode: InvalidIndex,
	}
	e.SetLLCount(1)
	e.SetImportance(way.RoadClass)
	e.SetDriveableForward(way.AutoForward())
	e.SetDriveableReverse(way.AutoBackward())
	e.SetLink(way.Link())
	return e
}

func (e *Edge) getBit(bit uint) bool {
	return e.Attributes&(1<<bit) != 0
}

func (e *Edge) setBit(bit uint, v bool) {
	if v {
		e.Attributes |= 1 << bit
	} else {
		e.Attributes &^= 1 << bit
	}
}

// LLCount is the number of shape points from start to end inclusive.
func (e *Edge) LLCount() uint32 {
	return (e.Attributes >> edgeLLCountShift) & edgeLLCountMask
}

func (e *Edge) SetLLCount(c uint32) {
	e.Attributes = (e.Attributes &^ (edgeLLCountMask << edgeLLCountShift)) |
		((c & edgeLLCountMask) << edgeLLCountShift)
}

func (e *Edge) Importance() pkg.RoadClass {
	return pkg.RoadClass((e.Attributes >> edgeImportanceShift) & edgeImportanceMask)
}

func (e *Edge) SetImportance(rc pkg.RoadClass) {
	e.Attributes = (e.Attributes &^ (edgeImportanceMask << edgeImportanceShift)) |
		((uint32(rc) & edgeImportanceMask) << edgeImportanceShift)
}

func (e *Edge) DriveableForward() bool     { return e.getBit(edgeDriveableForwardBit) }
func (e *Edge) SetDriveableForward(v bool) { e.setBit(edgeDriveableForwardBit, v) }

func (e *Edge) DriveableReverse() bool     { return e.getBit(edgeDriveableReverseBit) }
func (e *Edge) SetDriveableReverse(v bool) { e.setBit(edgeDriveableReverseBit, v) }

func (e *Edge) TrafficSignal() bool     { return e.getBit(edgeTrafficSignalBit) }
func (e *Edge) SetTrafficSignal(v bool) { e.setBit(edgeTrafficSignalBit, v) }

func (e *Edge) ForwardSignal() bool     { return e.getBit(edgeForwardSignalBit) }
func (e *Edge) SetForwardSignal(v bool) { e.setBit(edgeForwardSignalBit, v) }

func (e *Edge) BackwardSignal() bool     { return e.getBit(edgeBackwardSignalBit) }
func (e *Edge) SetBackwardSignal(v bool) { e.setBit(edgeBackwardSignalBit, v) }

func (e *Edge) Link() bool     { return e.getBit(edgeLinkBit) }
func (e *Edge) SetLink(v bool) { e.setBit(edgeLinkBit, v) }
