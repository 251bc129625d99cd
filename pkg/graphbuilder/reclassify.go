package graphbuilder

import (
	"sort"

	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/lintang-b-s/tilegraph/pkg/datastructure"
	"github.com/lintang-b-s/tilegraph/pkg/sequence"
	"go.uber.org/zap"
)

// ReclassifyLinks upgrades the importance of link edges (ramps and
// turn channels). OSM tags links without a useful road class; each
// link inherits the second best class among the non-link roads its
// link-only expansion reaches. Taking the second best instead of the
// best avoids over-promoting a high-to-low class transition at forks.
func ReclassifyLinks(waysFile, nodesFile, edgesFile string,
	stats *DataQuality, logger *zap.Logger) error {

	logger.Sugar().Infof("reclassifying link graph edges...")

	ways, err := sequence.OpenReadOnly[datastructure.OSMWay](waysFile)
	if err != nil {
		return err
	}
	defer ways.Close()
	nodes, err := sequence.OpenReadOnly[datastructure.Node](nodesFile)
	if err != nil {
		return err
	}
	defer nodes.Close()
	edges, err := sequence.New[datastructure.Edge](edgesFile, false)
	if err != nil {
		return err
	}
	defer edges.Close()

	var (
		count           uint32
		sets            = newExpandSets()
		endrc           []uint32
		linkEdgeIndexes []int64
	)

	// step over an edge from one of its end nodes. A boundary node
	// (one with a non-link edge) contributes its best non-link class;
	// anything else joins the expand set.
	expand := func(edge datastructure.Edge, fromNode int64) error {
		endNode := int64(edge.TargetNode)
		if int64(edge.SourceNode) != fromNode {
			endNode = int64(edge.SourceNode)
		}
		end, err := nodes.At(endNode)
		if err != nil {
			return err
		}
		if end.NonLinkEdge() {
			endBundle, err := collectNodeEdges(nodes, edges, endNode)
			if err != nil {
				return err
			}
			endrc = append(endrc, bestNonLinkClass(endBundle.edges))
		} else {
			sets.add(endNode)
		}
		return nil
	}

	for nodeItr := int64(0); nodeItr < nodes.Size(); {
		bundle, err := collectNodeEdges(nodes, edges, nodeItr)
		if err != nil {
			return err
		}
		node := bundle.node

		// only nodes where links meet non-links root an expansion
		if node.LinkEdge() && node.NonLinkEdge() {
			endrc = endrc[:0]
			endrc = append(endrc, bestNonLinkClass(bundle.edges))

			for _, startEdge := range bundle.edges {
				if !startEdge.edge.Link() {
					continue
				}

				sets.reset()
				linkEdgeIndexes = linkEdgeIndexes[:0]
				linkEdgeIndexes = append(linkEdgeIndexes, startEdge.index)

				if err := expand(startEdge.edge, nodeItr); err != nil {
					return err
				}

				for n := 0; n < pkg.MAX_LINK_EXPANSIONS; n++ {
					// expand set drained: every path reached a
					// non-link boundary
					if sets.empty() {
						if len(endrc) < 2 {
							way, err := ways.At(int64(startEdge.edge.WayIndex))
							if err != nil {
								return err
							}
							stats.AddIssue(UnconnectedLinkEdge, way.WayID, 0)
						} else {
							// second best class of all connections;
							// protects against downgrading links when
							// branches occur
							sort.Slice(endrc, func(i, j int) bool { return endrc[i] < endrc[j] })
							rc := endrc[1]
							for _, idx := range linkEdgeIndexes {
								e, err := edges.At(idx)
								if err != nil {
									return err
								}
								if rc > uint32(e.Importance()) {
									e.SetImportance(pkg.RoadClass(rc))
									if err := edges.Put(idx, e); err != nil {
										return err
									}
									count++
								}
							}
						}
						break
					}

					expandNode := sets.pop()
					expanded, err := collectNodeEdges(nodes, edges, expandNode)
					if err != nil {
						return err
					}
					for _, expandedEdge := range expanded.edges {
						// do not allow use of the start edge
						if expandedEdge.index == startEdge.index {
							continue
						}
						if !expandedEdge.edge.Link() {
							way, err := ways.At(int64(expandedEdge.edge.WayIndex))
							if err != nil {
								return err
							}
							logger.Sugar().Errorf("expanding onto non-link edge, way %d", way.WayID)
							stats.AddIssue(NonLinkExpansion, way.WayID, 0)
							continue
						}
						linkEdgeIndexes = append(linkEdgeIndexes, expandedEdge.index)
						if err := expand(expandedEdge.edge, expandNode); err != nil {
							return err
						}
					}
				}
			}
		}

		nodeItr += bundle.nodeCount
	}

	logger.Sugar().Infof("finished with %d reclassified", count)
	return nil
}
