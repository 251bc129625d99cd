package datastructure

import (
	"github.com/lintang-b-s/tilegraph/pkg"
)

// OSMWay is the fixed size way record written by the pbf ingest. The
// string valued tags live in the metadata name tables; the record only
// carries offsets (0 means absent).
type OSMWay struct {
	WayID     uint64
	NodeCount uint16
	RoadClass pkg.RoadClass
	Use       pkg.Use
	Flags     uint8
	Speed     float32

	RefIndex                 uint32
	NameIndex                uint32
	JunctionRefIndex         uint32
	DestinationIndex         uint32
	DestinationRefIndex      uint32
	DestinationRefToIndex    uint32
	DestinationStreetIndex   uint32
	DestinationStreetToIndex uint32
	ExitToIndex              uint32
}

const (
	wayAutoForwardBit uint8 = 1 << iota
	wayAutoBackwardBit
	wayOnewayBit
	wayLinkBit
)

func (w *OSMWay) AutoForward() bool { return w.Flags&wayAutoForwardBit != 0 }
func (w *OSMWay) SetAutoForward(v bool) {
	if v {
		w.Flags |= wayAutoForwardBit
	} else {
		w.Flags &^= wayAutoForwardBit
	}
}

func (w *OSMWay) AutoBackward() bool { return w.Flags&wayAutoBackwardBit != 0 }
func (w *OSMWay) SetAutoBackward(v bool) {
	if v {
		w.Flags |= wayAutoBackwardBit
	} else {
		w.Flags &^= wayAutoBackwardBit
	}
}

func (w *OSMWay) Oneway() bool { return w.Flags&wayOnewayBit != 0 }
func (w *OSMWay) SetOneway(v bool) {
	if v {
		w.Flags |= wayOnewayBit
	} else {
		w.Flags &^= wayOnewayBit
	}
}

func (w *OSMWay) Link() bool { return w.Flags&wayLinkBit != 0 }
func (w *OSMWay) SetLink(v bool) {
	if v {
		w.Flags |= wayLinkBit
	} else {
		w.Flags &^= wayLinkBit
	}
}

// OSMWayNode is one entry of the way-node stream, in way traversal
// order.
type OSMWayNode struct {
	WayIndex Index
	Node     OSMNode
}
