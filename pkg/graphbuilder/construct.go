package graphbuilder

import (
	"github.com/lintang-b-s/tilegraph/pkg/datastructure"
	"github.com/lintang-b-s/tilegraph/pkg/geo"
	"github.com/lintang-b-s/tilegraph/pkg/sequence"
	"go.uber.org/zap"
)

// ConstructEdges walks the way-node stream and cuts one edge per
// maximal stretch between intersections, appending provisional nodes
// and edges. Nodes are assigned their tile immediately; duplicate
// nodes (intersections shared between ways) are collapsed later by
// SortGraph.
func ConstructEdges(osmdata *datastructure.OSMData, nodesFile, edgesFile string,
	hierarchy *geo.TileHierarchy, level uint8, logger *zap.Logger) error {

	logger.Sugar().Infof("creating graph edges from ways...")

	ways, err := sequence.OpenReadOnly[datastructure.OSMWay](osmdata.WaysFile)
	if err != nil {
		return err
	}
	defer ways.Close()
	wayNodes, err := sequence.OpenReadOnly[datastructure.OSMWayNode](osmdata.WayNodesFile)
	if err != nil {
		return err
	}
	defer wayNodes.Close()
	edges, err := sequence.New[datastructure.Edge](edgesFile, true)
	if err != nil {
		return err
	}
	defer edges.Close()
	nodes, err := sequence.New[datastructure.Node](nodesFile, true)
	if err != nil {
		return err
	}
	defer nodes.Close()

	graphID := func(n datastructure.OSMNode) geo.GraphID {
		return hierarchy.GetGraphID(n.Lat, n.Lng, level)
	}

	appendNode := func(n datastructure.OSMNode, startOf, endOf datastructure.Index, link bool) error {
		n.SetLinkEdge(n.LinkEdge() || link)
		n.SetNonLinkEdge(n.NonLinkEdge() || !link)
		return nodes.Append(datastructure.Node{
			OSMNode: n,
			StartOf: startOf,
			EndOf:   endOf,
			GraphID: graphID(n),
		})
	}

	// for each way traversed via its node refs
	var current int64
	for current < wayNodes.Size() {
		firstWayNode, err := wayNodes.At(current)
		if err != nil {
			return err
		}
		way, err := ways.At(int64(firstWayNode.WayIndex))
		if err != nil {
			return err
		}
		last := current + int64(way.NodeCount) - 1

		// the first way node begins an edge
		edge := datastructure.NewEdge(datastructure.Index(nodes.Size()),
			firstWayNode.WayIndex, datastructure.Index(current), &way)
		if err := appendNode(firstWayNode.Node,
			datastructure.Index(edges.Size()), datastructure.InvalidIndex, way.Link()); err != nil {
			return err
		}

		// walk forward until an intersection (or the way end)
		// terminates the edge
		for i := current + 1; i <= last; i++ {
			wayNode, err := wayNodes.At(i)
			if err != nil {
				return err
			}
			edge.SetLLCount(edge.LLCount() + 1)

			if wayNode.Node.Intersection() || i == last {
				edge.TargetNode = datastructure.Index(nodes.Size())
				if err := appendNode(wayNode.Node,
					datastructure.InvalidIndex, datastructure.Index(edges.Size()), way.Link()); err != nil {
					return err
				}
				if err := edges.Append(edge); err != nil {
					return err
				}

				// the same node starts the next edge of the way
				if i != last {
					edge = datastructure.NewEdge(datastructure.Index(nodes.Size()-1),
						wayNode.WayIndex, datastructure.Index(i), &way)
					endNode, err := nodes.At(nodes.Size() - 1)
					if err != nil {
						return err
					}
					endNode.StartOf = datastructure.Index(edges.Size())
					if err := nodes.Put(nodes.Size()-1, endNode); err != nil {
						return err
					}
				}
			} else if wayNode.Node.TrafficSignal() {
				// a signal between intersections folds into the edge
				edge.SetTrafficSignal(true)
				edge.SetForwardSignal(wayNode.Node.ForwardSignal())
				edge.SetBackwardSignal(wayNode.Node.BackwardSignal())
			}
		}
		current = last + 1
	}

	logger.Sugar().Infof("finished with %d edges and %d nodes", edges.Size(), nodes.Size())
	return nil
}
