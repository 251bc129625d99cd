package graphbuilder

import (
	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/lintang-b-s/tilegraph/pkg/datastructure"
	"github.com/lintang-b-s/tilegraph/pkg/sequence"
)

type bundleEdge struct {
	edge  datastructure.Edge
	index int64
}

// nodeBundle amalgamates a run of duplicate nodes (same osm id) into
// the canonical node plus every edge incident to it, in run order.
type nodeBundle struct {
	node      datastructure.Node
	nodeCount int64
	edges     []bundleEdge
}

// collectNodeEdges builds the bundle for the run starting at the
// canonical node index start. nodeCount tells the caller how far to
// advance its cursor.
func collectNodeEdges(nodes *sequence.Sequence[datastructure.Node],
	edges *sequence.Sequence[datastructure.Edge], start int64) (nodeBundle, error) {

	first, err := nodes.At(start)
	if err != nil {
		return nodeBundle{}, err
	}
	bundle := nodeBundle{node: first, nodeCount: 1}

	add := func(n datastructure.Node) error {
		if n.IsStart() {
			e, err := edges.At(int64(n.StartOf))
			if err != nil {
				return err
			}
			bundle.edges = append(bundle.edges, bundleEdge{edge: e, index: int64(n.StartOf)})
		}
		if n.IsEnd() {
			e, err := edges.At(int64(n.EndOf))
			if err != nil {
				return err
			}
			bundle.edges = append(bundle.edges, bundleEdge{edge: e, index: int64(n.EndOf)})
		}
		return nil
	}
	if err := add(first); err != nil {
		return nodeBundle{}, err
	}

	for i := start + 1; i < nodes.Size(); i++ {
		n, err := nodes.At(i)
		if err != nil {
			return nodeBundle{}, err
		}
		if n.OsmID != first.OsmID {
			break
		}
		if err := add(n); err != nil {
			return nodeBundle{}, err
		}
		bundle.nodeCount++
	}
	return bundle, nil
}

// bestNonLinkClass returns the most important classification among the
// non-link edges of a bundle, ABSURD_ROAD_CLASS when there is none.
func bestNonLinkClass(edges []bundleEdge) uint32 {
	best := pkg.ABSURD_ROAD_CLASS
	for _, e := range edges {
		if !e.edge.Link() && uint32(e.edge.Importance()) < best {
			best = uint32(e.edge.Importance())
		}
	}
	return best
}

// expandSets is the visited/expand pair shared by the bounded graph
// expansions (link reclassification, not-thru detection).
type expandSets struct {
	visited map[int64]struct{}
	expand  map[int64]struct{}
}

func newExpandSets() *expandSets {
	return &expandSets{
		visited: make(map[int64]struct{}),
		expand:  make(map[int64]struct{}),
	}
}

func (s *expandSets) reset() {
	clear(s.visited)
	clear(s.expand)
}

func (s *expandSets) add(idx int64) {
	if _, seen := s.visited[idx]; !seen {
		s.expand[idx] = struct{}{}
	}
}

func (s *expandSets) empty() bool {
	return len(s.expand) == 0
}

// pop removes the smallest pending node index and marks it visited.
// Smallest-first keeps the expansion order deterministic.
func (s *expandSets) pop() int64 {
	first := true
	var min int64
	for idx := range s.expand {
		if first || idx < min {
			min = idx
			first = false
		}
	}
	delete(s.expand, min)
	s.visited[min] = struct{}{}
	return min
}
