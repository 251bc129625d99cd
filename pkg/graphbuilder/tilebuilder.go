package graphbuilder

import (
	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/lintang-b-s/tilegraph/pkg/datastructure"
	"github.com/lintang-b-s/tilegraph/pkg/geo"
	"github.com/lintang-b-s/tilegraph/pkg/sequence"
	"github.com/lintang-b-s/tilegraph/pkg/tile"
	"go.uber.org/zap"
)

// tileWorker holds the per worker read-only handles. Every phase-E
// worker opens its own handles so there is no shared mutable state
// across workers.
type tileWorker struct {
	osmdata  *datastructure.OSMData
	ways     *sequence.Sequence[datastructure.OSMWay]
	wayNodes *sequence.Sequence[datastructure.OSMWayNode]
	nodes    *sequence.Sequence[datastructure.Node]
	edges    *sequence.Sequence[datastructure.Edge]

	tileDir  string
	compress bool
	stats    *DataQuality
	logger   *zap.Logger
}

func newTileWorker(osmdata *datastructure.OSMData, nodesFile, edgesFile, tileDir string,
	compress bool, logger *zap.Logger) (*tileWorker, error) {

	ways, err := sequence.OpenReadOnly[datastructure.OSMWay](osmdata.WaysFile)
	if err != nil {
		return nil, err
	}
	wayNodes, err := sequence.OpenReadOnly[datastructure.OSMWayNode](osmdata.WayNodesFile)
	if err != nil {
		ways.Close()
		return nil, err
	}
	nodes, err := sequence.OpenReadOnly[datastructure.Node](nodesFile)
	if err != nil {
		ways.Close()
		wayNodes.Close()
		return nil, err
	}
	edges, err := sequence.OpenReadOnly[datastructure.Edge](edgesFile)
	if err != nil {
		ways.Close()
		wayNodes.Close()
		nodes.Close()
		return nil, err
	}
	return &tileWorker{
		osmdata:  osmdata,
		ways:     ways,
		wayNodes: wayNodes,
		nodes:    nodes,
		edges:    edges,
		tileDir:  tileDir,
		compress: compress,
		stats:    NewDataQuality(),
		logger:   logger,
	}, nil
}

func (w *tileWorker) close() {
	w.ways.Close()
	w.wayNodes.Close()
	w.nodes.Close()
	w.edges.Close()
}

// edgeShape materializes the polyline of an edge from the way-node
// stream.
func (w *tileWorker) edgeShape(llIndex, llCount uint32) ([]geo.Coordinate, error) {
	shape := make([]geo.Coordinate, 0, llCount)
	for i := uint32(0); i < llCount; i++ {
		wn, err := w.wayNodes.At(int64(llIndex + i))
		if err != nil {
			return nil, err
		}
		shape = append(shape, geo.NewCoordinate(wn.Node.Lat, wn.Node.Lng))
	}
	return shape, nil
}

// isNoThroughEdge tests whether an edge enters a region with no exit
// other than the edge itself. Expansion runs from the far end with the
// start edge forbidden, and proves a thoroughfare by returning to the
// start node or touching a tertiary-or-better edge. Exhausting the
// expand set inside the bound proves not-thru.
func (w *tileWorker) isNoThroughEdge(startNode, endNode, startEdgeIndex int64) (bool, error) {
	sets := newExpandSets()
	sets.add(endNode)

	for n := 0; n < pkg.MAX_NO_THRU_TRIES; n++ {
		if sets.empty() {
			return true, nil
		}

		nodeIndex := sets.pop()
		bundle, err := collectNodeEdges(w.nodes, w.edges, nodeIndex)
		if err != nil {
			return false, err
		}
		for _, ep := range bundle.edges {
			// do not allow use of the start edge
			if ep.index == startEdgeIndex {
				continue
			}

			nextEndNode := int64(ep.edge.TargetNode)
			if int64(ep.edge.SourceNode) != nodeIndex {
				nextEndNode = int64(ep.edge.SourceNode)
			}
			if nextEndNode == startNode || ep.edge.Importance() <= pkg.TERTIARY {
				return false, nil
			}
			sets.add(nextEndNode)
		}
	}
	return false, nil
}

// onewayPairEdgesExist tests whether the node has a pair of non-link
// oneway edges, one inbound and one outbound, excluding the edge being
// classified and any edge of the same way.
func (w *tileWorker) onewayPairEdgesExist(bundle nodeBundle, nodeIndex int64,
	edgeIndex int64, wayID uint64) (bool, error) {

	inbound := false
	outbound := false
	for _, ep := range bundle.edges {
		if ep.index == edgeIndex {
			continue
		}
		way, err := w.ways.At(int64(ep.edge.WayIndex))
		if err != nil {
			return false, err
		}
		// skip matching way ids and links (ramps / turn channels)
		if way.WayID == wayID || ep.edge.Link() {
			continue
		}

		forward := int64(ep.edge.SourceNode) == nodeIndex

		if (forward && !way.AutoForward() && way.AutoBackward()) ||
			(!forward && way.AutoForward() && !way.AutoBackward()) {
			inbound = true
		}
		if (forward && way.AutoForward() && !way.AutoBackward()) ||
			(!forward && !way.AutoForward() && way.AutoBackward()) {
			outbound = true
		}
	}
	return inbound && outbound, nil
}

// isIntersectionInternal tests for a short through-edge connecting two
// one-way pairs inside a single traffic intersection.
func (w *tileWorker) isIntersectionInternal(startNode, endNode, edgeIndex int64,
	wayID uint64, length uint32) (bool, error) {

	if float64(length) > pkg.MAX_INTERNAL_LENGTH_METERS {
		return false, nil
	}

	// both end nodes must connect to at least 3 edges
	startBundle, err := collectNodeEdges(w.nodes, w.edges, startNode)
	if err != nil {
		return false, err
	}
	if len(startBundle.edges) < 3 {
		return false, nil
	}
	endBundle, err := collectNodeEdges(w.nodes, w.edges, endNode)
	if err != nil {
		return false, err
	}
	if len(endBundle.edges) < 3 {
		return false, nil
	}

	// each node must have an inbound and an outbound oneway
	ok, err := w.onewayPairEdgesExist(startBundle, startNode, edgeIndex, wayID)
	if err != nil || !ok {
		return false, err
	}
	ok, err = w.onewayPairEdgesExist(endBundle, endNode, edgeIndex, wayID)
	if err != nil || !ok {
		return false, err
	}
	return true, nil
}

// getLinkUse infers whether a link edge is a ramp or a turn channel.
func (w *tileWorker) getLinkUse(edgeIndex int64, rc pkg.RoadClass, length uint32,
	startNode, endNode int64) (pkg.Use, error) {

	// a motorway/trunk link, or anything long, is a ramp
	if rc == pkg.MOTORWAY || rc == pkg.TRUNK ||
		float64(length) > pkg.MAX_TURN_CHANNEL_LENGTH_METERS {
		return pkg.USE_RAMP, nil
	}

	// turn channels are very short and connect only to non-link edges
	// at both ends; anything else indicates a split or fork
	startBundle, err := collectNodeEdges(w.nodes, w.edges, startNode)
	if err != nil {
		return pkg.USE_RAMP, err
	}
	endBundle, err := collectNodeEdges(w.nodes, w.edges, endNode)
	if err != nil {
		return pkg.USE_RAMP, err
	}
	if !startBundle.node.NonLinkEdge() || !endBundle.node.NonLinkEdge() {
		return pkg.USE_RAMP, nil
	}
	for _, ep := range startBundle.edges {
		if ep.index != edgeIndex && ep.edge.Link() {
			return pkg.USE_RAMP, nil
		}
	}
	for _, ep := range endBundle.edges {
		if ep.index != edgeIndex && ep.edge.Link() {
			return pkg.USE_RAMP, nil
		}
	}
	return pkg.USE_TURN_CHANNEL, nil
}

func updateLinkSpeed(use pkg.Use, rc pkg.RoadClass, speed float32) float32 {
	if use == pkg.USE_TURN_CHANNEL {
		return speed * pkg.TURN_CHANNEL_SPEED_FACTOR
	}
	if use == pkg.USE_RAMP {
		return pkg.RampSpeed(rc)
	}
	return speed
}

// checkDuplicateWays reports pairs of edges at one node that share the
// same end node and length but come from different ways.
func (w *tileWorker) checkDuplicateWays(bundle nodeBundle, nodeIndex int64,
	lengths []uint32) error {

	type dup struct {
		wayIndex datastructure.Index
		length   uint32
	}
	endNodes := make(map[int64]dup, len(bundle.edges))
	for n, ep := range bundle.edges {
		endNode := int64(ep.edge.TargetNode)
		if int64(ep.edge.SourceNode) != nodeIndex {
			endNode = int64(ep.edge.SourceNode)
		}
		if prev, ok := endNodes[endNode]; ok && prev.length == lengths[n] &&
			prev.wayIndex != ep.edge.WayIndex {
			way1, err := w.ways.At(int64(prev.wayIndex))
			if err != nil {
				return err
			}
			way2, err := w.ways.At(int64(ep.edge.WayIndex))
			if err != nil {
				return err
			}
			w.stats.AddIssue(DuplicateWays, way1.WayID, way2.WayID)
		} else if !ok {
			endNodes[endNode] = dup{wayIndex: ep.edge.WayIndex, length: lengths[n]}
		}
	}
	return nil
}

// buildTile assembles and stores one tile, scanning canonical nodes
// from the tile's first offset until the tile id changes.
func (w *tileWorker) buildTile(entry TileIndexEntry) error {
	builder := tile.NewGraphTileBuilder(entry.Tile)

	var directedEdgeCount uint32
	idx := uint32(0) // directed edge index within the tile

	nodeItr := entry.Start
	for nodeItr < w.nodes.Size() {
		bundle, err := collectNodeEdges(w.nodes, w.edges, nodeItr)
		if err != nil {
			return err
		}
		if bundle.node.GraphID.TileBase() != entry.Tile {
			break
		}
		node := bundle.node

		var (
			driveable uint32
			bestClass = pkg.SERVICE_OTHER
			lengths   = make([]uint32, 0, len(bundle.edges))
		)
		directedEdges := make([]tile.DirectedEdge, 0, len(bundle.edges))

		for n, ep := range bundle.edges {
			edge := ep.edge
			way, err := w.ways.At(int64(edge.WayIndex))
			if err != nil {
				return err
			}

			shape, err := w.edgeShape(uint32(edge.LLIndex), edge.LLCount())
			if err != nil {
				return err
			}
			length := uint32(geo.PolylineLengthMeters(shape) + 0.5)
			lengths = append(lengths, length)

			// orientation between the two canonical nodes
			forward := int64(edge.SourceNode) == nodeItr
			source := int64(edge.SourceNode)
			target := int64(edge.TargetNode)
			if !forward {
				source, target = target, source
			}

			if edge.DriveableForward() || edge.DriveableReverse() {
				driveable++
			}

			// not-thru only matters on low importance edges
			notThru := false
			if edge.Importance() > pkg.TERTIARY {
				notThru, err = w.isNoThroughEdge(source, target, ep.index)
				if err != nil {
					return err
				}
				if notThru {
					w.stats.NotThruCount++
				}
			}

			internal, err := w.isIntersectionInternal(source, target, ep.index, way.WayID, length)
			if err != nil {
				return err
			}
			if internal {
				w.stats.InternalCount++
			}

			speed := way.Speed
			rc := edge.Importance()
			use := way.Use
			if way.Link() {
				use, err = w.getLinkUse(ep.index, rc, length,
					int64(edge.SourceNode), int64(edge.TargetNode))
				if err != nil {
					return err
				}
				if use == pkg.USE_TURN_CHANNEL {
					w.stats.TurnChannelCount++
				}
				speed = updateLinkSpeed(use, rc, way.Speed)
			}

			// a low class road looping back onto itself is a cul-de-sac
			if use == pkg.USE_ROAD && source == target && rc > pkg.TERTIARY {
				use = pkg.USE_CULDESAC
				w.stats.CuldesacCount++
			}

			restrictionMask, err := createSimpleTurnRestriction(way.WayID, target,
				w.nodes, w.edges, w.ways, w.osmdata, w.stats)
			if err != nil {
				return err
			}
			if restrictionMask != 0 {
				w.stats.SimpleRestrictions++
			}

			// a signal at the target-end intersection node, or a
			// signal folded into the edge whose direction matches the
			// orientation; a directionless edge signal applies to
			// oneways
			hasSignal := (!forward && node.TrafficSignal()) ||
				(edge.TrafficSignal() &&
					((forward && edge.ForwardSignal()) ||
						(!forward && edge.BackwardSignal()) ||
						(way.Oneway() && !edge.ForwardSignal() && !edge.BackwardSignal())))

			targetNode, err := w.nodes.At(target)
			if err != nil {
				return err
			}
			directedEdge := tile.NewDirectedEdge(&way, targetNode.GraphID, forward,
				length, speed, use, notThru, internal, rc, uint32(n), hasSignal,
				restrictionMask)

			if directedEdge.Classification < bestClass {
				bestClass = directedEdge.Classification
			}

			// check for an updated ref from relations
			var ref string
			if relationRef, ok := w.osmdata.WayRef[way.WayID]; ok && way.RefIndex != 0 {
				ref = GetRef(w.osmdata.RefOffsetMap.Name(way.RefIndex), relationRef)
			}

			sourceNode, err := w.nodes.At(source)
			if err != nil {
				return err
			}
			directedEdge.EdgeInfoOffset = builder.AddEdgeInfo(ep.index,
				sourceNode.GraphID, targetNode.GraphID, shape,
				GetNames(&way, ref, w.osmdata))

			// exit signs go on forward ramp edges only
			exits := CreateExitSignInfoList(node.OSMNode, &way, w.osmdata)
			if len(exits) > 0 && directedEdge.ForwardAccess && directedEdge.Use == pkg.USE_RAMP {
				builder.AddSigns(idx, exits)
				directedEdge.ExitSign = true
			}

			directedEdges = append(directedEdges, directedEdge)
			idx++
		}

		if err := w.checkDuplicateWays(bundle, nodeItr, lengths); err != nil {
			return err
		}

		nodeInfo := tile.NodeInfo{
			Lat:            node.Lat,
			Lng:            node.Lng,
			EdgeIndex:      directedEdgeCount,
			EdgeCount:      uint32(len(bundle.edges)),
			DriveableCount: driveable,
			BestClass:      bestClass,
			AccessMask:     node.AccessMask(),
			Type:           node.Type(),
			Intersection:   len(bundle.edges) == 1,
			TrafficSignal:  node.TrafficSignal(),
		}
		directedEdgeCount += uint32(len(bundle.edges))
		builder.AddNodeAndDirectedEdges(nodeInfo, directedEdges)
		w.stats.AddNodeCount(len(directedEdges))

		nodeItr += bundle.nodeCount
	}

	size, err := builder.StoreTileData(w.tileDir, w.compress)
	if err != nil {
		return err
	}
	w.logger.Sugar().Debugf("wrote tile %s: %d bytes", entry.Tile, size)
	return nil
}
