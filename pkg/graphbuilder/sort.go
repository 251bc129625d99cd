package graphbuilder

import (
	"github.com/lintang-b-s/tilegraph/pkg/datastructure"
	"github.com/lintang-b-s/tilegraph/pkg/geo"
	"github.com/lintang-b-s/tilegraph/pkg/sequence"
	"go.uber.org/zap"
)

// TileIndexEntry maps a tile to the offset of its first node in the
// sorted node sequence.
type TileIndexEntry struct {
	Tile  geo.GraphID
	Start int64
}

// TileIndex is ordered by tile; starts are strictly increasing.
type TileIndex []TileIndexEntry

// SortGraph sorts the node sequence by (tile, osmid) so it becomes a
// set of tiles, collapses each run of duplicate osm ids onto its first
// node, and rewrites every edge endpoint to reference that canonical
// index. Duplicate nodes stay in the sequence (they are how we know,
// from a node's perspective, which edges connect to it) but no edge
// references them afterwards.
func SortGraph(nodesFile, edgesFile string, logger *zap.Logger) (TileIndex, error) {
	logger.Sugar().Infof("sorting graph...")

	nodes, err := sequence.New[datastructure.Node](nodesFile, false)
	if err != nil {
		return nil, err
	}
	defer nodes.Close()
	edges, err := sequence.New[datastructure.Edge](edgesFile, false)
	if err != nil {
		return nil, err
	}
	defer edges.Close()

	if err := nodes.Sort(func(a, b datastructure.Node) bool {
		if a.GraphID.TileBase() == b.GraphID.TileBase() {
			return a.OsmID < b.OsmID
		}
		return a.GraphID.TileBase() < b.GraphID.TileBase()
	}); err != nil {
		return nil, err
	}

	// point this node's own edges at the given canonical index
	retarget := func(node datastructure.Node, canonical int64) error {
		if node.IsStart() {
			e, err := edges.At(int64(node.StartOf))
			if err != nil {
				return err
			}
			e.SourceNode = datastructure.Index(canonical)
			if err := edges.Put(int64(node.StartOf), e); err != nil {
				return err
			}
		}
		if node.IsEnd() {
			e, err := edges.At(int64(node.EndOf))
			if err != nil {
				return err
			}
			e.TargetNode = datastructure.Index(canonical)
			if err := edges.Put(int64(node.EndOf), e); err != nil {
				return err
			}
		}
		return nil
	}

	// forward scan with two cursors: the current node and the first
	// index of the current run of equal osm ids. The accumulator is
	// the run-first node (it keeps its own start_of/end_of) with the
	// duplicates' link flags folded in; closing a run writes it back
	// at the run start.
	var (
		tiles    TileIndex
		runIndex int64
		runAccum datastructure.Node
	)
	for i := int64(0); i < nodes.Size(); i++ {
		node, err := nodes.At(i)
		if err != nil {
			return nil, err
		}
		runback := false

		if len(tiles) == 0 || node.GraphID.TileBase() != tiles[len(tiles)-1].Tile {
			// a new tile opens here
			tiles = append(tiles, TileIndexEntry{Tile: node.GraphID.TileBase(), Start: i})
			node.GraphID = node.GraphID.WithID(0)
			if i != 0 {
				runback = true
			}
			if err := retarget(node, i); err != nil {
				return nil, err
			}
		} else if runAccum.OsmID != node.OsmID {
			// a new node within the tile
			node.GraphID = node.GraphID.WithID(runAccum.GraphID.ID() + 1)
			runback = true
			if err := retarget(node, i); err != nil {
				return nil, err
			}
		} else {
			// a duplicate: inherit the id, push its edges onto the
			// canonical index and fold its link flags into the
			// accumulator
			node.GraphID = node.GraphID.WithID(runAccum.GraphID.ID())
			if node.IsStart() {
				e, err := edges.At(int64(node.StartOf))
				if err != nil {
					return nil, err
				}
				e.SourceNode = datastructure.Index(runIndex)
				if err := edges.Put(int64(node.StartOf), e); err != nil {
					return nil, err
				}
				runAccum.SetLinkEdge(runAccum.LinkEdge() || e.Link())
				runAccum.SetNonLinkEdge(runAccum.NonLinkEdge() || !e.Link())
			}
			if node.IsEnd() {
				e, err := edges.At(int64(node.EndOf))
				if err != nil {
					return nil, err
				}
				e.TargetNode = datastructure.Index(runIndex)
				if err := edges.Put(int64(node.EndOf), e); err != nil {
					return nil, err
				}
				runAccum.SetLinkEdge(runAccum.LinkEdge() || e.Link())
				runAccum.SetNonLinkEdge(runAccum.NonLinkEdge() || !e.Link())
			}
		}

		if runback {
			// the previous run is complete
			if err := nodes.Put(runIndex, runAccum); err != nil {
				return nil, err
			}
			runIndex = i
		}
		if runback || i == 0 {
			runAccum = node
		}

		if err := nodes.Put(i, node); err != nil {
			return nil, err
		}
	}
	// close the final run
	if nodes.Size() > 0 {
		if err := nodes.Put(runIndex, runAccum); err != nil {
			return nil, err
		}
	}

	logger.Sugar().Infof("finished sorting, %d tiles", len(tiles))
	return tiles, nil
}

// ResolveRestrictionVias rewrites restriction via references from osm
// node ids to canonical node indexes in the sorted sequence. Must run
// after SortGraph and before the tile build.
func ResolveRestrictionVias(osmdata *datastructure.OSMData, nodesFile string) error {
	vias := make(map[uint64]datastructure.Index)
	for _, restrictions := range osmdata.Restrictions {
		for _, r := range restrictions {
			vias[r.ViaOsmID] = datastructure.InvalidIndex
		}
	}
	if len(vias) == 0 {
		return nil
	}

	nodes, err := sequence.OpenReadOnly[datastructure.Node](nodesFile)
	if err != nil {
		return err
	}
	defer nodes.Close()

	var lastOsmID uint64
	first := true
	if err := nodes.Iterate(func(i int64, n datastructure.Node) error {
		if first || n.OsmID != lastOsmID {
			if _, wanted := vias[n.OsmID]; wanted {
				vias[n.OsmID] = datastructure.Index(i)
			}
		}
		lastOsmID = n.OsmID
		first = false
		return nil
	}); err != nil {
		return err
	}

	for wayID, restrictions := range osmdata.Restrictions {
		for i := range restrictions {
			restrictions[i].ViaNode = vias[restrictions[i].ViaOsmID]
		}
		osmdata.Restrictions[wayID] = restrictions
	}
	return nil
}
