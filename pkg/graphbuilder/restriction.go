package graphbuilder

import (
	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/lintang-b-s/tilegraph/pkg/datastructure"
	"github.com/lintang-b-s/tilegraph/pkg/sequence"
)

// createSimpleTurnRestriction encodes the restrictions that originate
// from a directed edge (identified by its from way and target node) as
// a bitmask over the indices of the target node's incident edges.
// "No*" restrictions set the bit of the matching to-way; "Only*"
// restrictions set the bits of every non-matching way. Timed
// restrictions are tallied and skipped.
func createSimpleTurnRestriction(wayID uint64, endNode int64,
	nodes *sequence.Sequence[datastructure.Node],
	edges *sequence.Sequence[datastructure.Edge],
	ways *sequence.Sequence[datastructure.OSMWay],
	osmdata *datastructure.OSMData, stats *DataQuality) (uint32, error) {

	restrictions, ok := osmdata.Restrictions[wayID]
	if !ok {
		return 0, nil
	}

	// restrictions through the target node of this directed edge
	var trs []datastructure.OSMRestriction
	for _, r := range restrictions {
		if r.ViaNode != datastructure.InvalidIndex && int64(r.ViaNode) == endNode {
			if r.DayOn != pkg.DOW_NONE {
				stats.TimedRestrictions++
			} else {
				trs = append(trs, r)
			}
		}
	}
	if len(trs) == 0 {
		return 0, nil
	}

	// way ids of the edges at the end node, in bundle order
	bundle, err := collectNodeEdges(nodes, edges, endNode)
	if err != nil {
		return 0, err
	}
	wayIDs := make([]uint64, 0, len(bundle.edges))
	for _, e := range bundle.edges {
		w, err := ways.At(int64(e.edge.WayIndex))
		if err != nil {
			return 0, err
		}
		wayIDs = append(wayIDs, w.WayID)
	}

	// both ONLY and NO types can be present through one node; allow
	// this and accumulate into a single mask
	var mask uint32
	for _, tr := range trs {
		switch tr.Type {
		case pkg.NO_LEFT_TURN, pkg.NO_RIGHT_TURN, pkg.NO_STRAIGHT_ON, pkg.NO_U_TURN:
			for idx, id := range wayIDs {
				if id == tr.To {
					mask |= 1 << uint(idx)
					break
				}
			}
		case pkg.ONLY_RIGHT_TURN, pkg.ONLY_LEFT_TURN, pkg.ONLY_STRAIGHT_ON:
			for idx, id := range wayIDs {
				if id != tr.To {
					mask |= 1 << uint(idx)
				}
			}
		}
	}
	return mask, nil
}
