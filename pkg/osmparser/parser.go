package osmparser

import (
	"context"
	"os"
	"strings"

	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/lintang-b-s/tilegraph/pkg/datastructure"
	"github.com/lintang-b-s/tilegraph/pkg/sequence"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// parsedNode carries the node tags needed while emitting way nodes.
type parsedNode struct {
	lat, lng       float64
	signal         bool
	forwardSignal  bool
	backwardSignal bool
	hasRef         bool
	hasName        bool
	hasExitTo      bool
	nodeType       pkg.NodeType
}

type pendingRestriction struct {
	fromWay uint64
	viaNode uint64
	toWay   uint64
	rType   pkg.RestrictionType
	dayOn   pkg.DOW
}

// OsmParser scans an openstreetmap pbf extract and produces the fixed
// size way / way-node sequences plus the metadata maps the graph
// builder consumes.
type OsmParser struct {
	wayNodeMap   map[int64]wayNodeKind
	nodes        map[int64]parsedNode
	restrictions []pendingRestriction
}

func NewOsmParser() *OsmParser {
	return &OsmParser{
		wayNodeMap: make(map[int64]wayNodeKind),
		nodes:      make(map[int64]parsedNode),
	}
}

func acceptOsmWay(way *osm.Way) bool {
	if len(way.Nodes) < 2 {
		return false
	}
	highway := way.Tags.Find("highway")
	if highway != "" {
		_, ok := acceptedHighway[highway]
		return ok
	}
	return way.Tags.Find("junction") != ""
}

// Parse runs two scans over the extract: ways and relations first to
// mark intersections and collect restrictions, then nodes and ways in
// a single second scan. A pbf extract stores nodes before ways, so the
// node map is complete by the time the first way is emitted.
func (p *OsmParser) Parse(mapFile, waysFile, wayNodesFile string,
	logger *zap.Logger) (*datastructure.OSMData, error) {

	osmdata := datastructure.NewOSMData(waysFile, wayNodesFile)

	if err := p.scanWaysAndRelations(mapFile, osmdata, logger); err != nil {
		return nil, err
	}
	if err := p.emitNodesAndWays(mapFile, osmdata, logger); err != nil {
		return nil, err
	}

	for _, r := range p.restrictions {
		osmdata.Restrictions[r.fromWay] = append(osmdata.Restrictions[r.fromWay],
			datastructure.OSMRestriction{
				Type:     r.rType,
				DayOn:    r.dayOn,
				ViaOsmID: r.viaNode,
				ViaNode:  datastructure.InvalidIndex,
				To:       r.toWay,
			})
	}

	logger.Sugar().Infof("parsed %d way nodes, %d restrictions",
		len(p.wayNodeMap), len(p.restrictions))
	return osmdata, nil
}

func (p *OsmParser) scanWaysAndRelations(mapFile string,
	osmdata *datastructure.OSMData, logger *zap.Logger) error {

	f, err := os.Open(mapFile)
	if err != nil {
		return errors.Wrapf(err, "osmparser: open %s", mapFile)
	}
	defer f.Close()

	scanner := osmpbf.New(context.Background(), f, 0)
	defer scanner.Close()

	countWays := 0
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Way:
			if !acceptOsmWay(o) {
				continue
			}
			if (countWays+1)%50000 == 0 {
				logger.Sugar().Infof("scanning openstreetmap ways: %d...", countWays+1)
			}
			countWays++
			for i, node := range o.Nodes {
				if _, ok := p.wayNodeMap[int64(node.ID)]; !ok {
					if i == 0 || i == len(o.Nodes)-1 {
						p.wayNodeMap[int64(node.ID)] = END_NODE
					} else {
						p.wayNodeMap[int64(node.ID)] = BETWEEN_NODE
					}
				} else {
					p.wayNodeMap[int64(node.ID)] = JUNCTION_NODE
				}
			}

		case *osm.Relation:
			p.scanRelation(o, osmdata)
		}
	}
	return errors.Wrap(scanner.Err(), "osmparser: scan ways")
}

func (p *OsmParser) scanRelation(relation *osm.Relation, osmdata *datastructure.OSMData) {
	relType := relation.Tags.Find("type")

	if relType == "restriction" {
		rType, ok := restrictionTypes[relation.Tags.Find("restriction")]
		if !ok {
			return
		}
		r := pendingRestriction{rType: rType}
		r.dayOn = dayOn[strings.ToLower(relation.Tags.Find("day_on"))]
		for _, member := range relation.Members {
			switch {
			case member.Type == osm.TypeWay && member.Role == "from":
				r.fromWay = uint64(member.Ref)
			case member.Type == osm.TypeNode && member.Role == "via":
				r.viaNode = uint64(member.Ref)
			case member.Type == osm.TypeWay && member.Role == "to":
				r.toWay = uint64(member.Ref)
			}
		}
		if r.fromWay != 0 && r.viaNode != 0 && r.toWay != 0 {
			p.restrictions = append(p.restrictions, r)
		}
		return
	}

	// road route relations contribute "ref|direction" tokens for the
	// relation ref merge of their member ways
	if relType == "route" && relation.Tags.Find("route") == "road" {
		ref := relation.Tags.Find("ref")
		if ref == "" {
			return
		}
		token := ref
		if direction := relation.Tags.Find("direction"); direction != "" {
			token = ref + "|" + direction
		}
		for _, member := range relation.Members {
			if member.Type != osm.TypeWay {
				continue
			}
			wayID := uint64(member.Ref)
			if existing, ok := osmdata.WayRef[wayID]; ok {
				osmdata.WayRef[wayID] = existing + ";" + token
			} else {
				osmdata.WayRef[wayID] = token
			}
		}
	}
}

// emitNodesAndWays is the second scan. Nodes come before ways in the
// extract, so p.nodes is filled in as the scan proceeds and each way
// only looks up nodes already seen.
func (p *OsmParser) emitNodesAndWays(mapFile string, osmdata *datastructure.OSMData,
	logger *zap.Logger) error {

	f, err := os.Open(mapFile)
	if err != nil {
		return errors.Wrapf(err, "osmparser: open %s", mapFile)
	}
	defer f.Close()

	ways, err := sequence.New[datastructure.OSMWay](osmdata.WaysFile, true)
	if err != nil {
		return err
	}
	defer ways.Close()
	wayNodes, err := sequence.New[datastructure.OSMWayNode](osmdata.WayNodesFile, true)
	if err != nil {
		return err
	}
	defer wayNodes.Close()

	scanner := osmpbf.New(context.Background(), f, 0)
	defer scanner.Close()

	countNodes := 0
	skipped := 0
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			if _, wanted := p.wayNodeMap[int64(o.ID)]; !wanted {
				continue
			}
			if (countNodes+1)%500000 == 0 {
				logger.Sugar().Infof("scanning openstreetmap nodes: %d...", countNodes+1)
			}
			countNodes++
			p.processNode(o, osmdata)

		case *osm.Way:
			if !acceptOsmWay(o) {
				continue
			}
			ok, err := p.processWay(o, osmdata, ways, wayNodes)
			if err != nil {
				return err
			}
			if !ok {
				skipped++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "osmparser: emit nodes and ways")
	}

	logger.Sugar().Infof("emitted %d ways, %d way nodes (%d skipped, incomplete)",
		ways.Size(), wayNodes.Size(), skipped)
	return nil
}

func (p *OsmParser) processNode(node *osm.Node, osmdata *datastructure.OSMData) {
	pn := parsedNode{lat: node.Lat, lng: node.Lon, nodeType: pkg.STREET_INTERSECTION}

	if node.Tags.Find("highway") == "traffic_signals" {
		pn.signal = true
		switch node.Tags.Find("traffic_signals:direction") {
		case "forward":
			pn.forwardSignal = true
		case "backward":
			pn.backwardSignal = true
		}
	}
	if node.Tags.Find("highway") == "motorway_junction" {
		pn.nodeType = pkg.MOTORWAY_JUNCTION
	}
	if barrier := node.Tags.Find("barrier"); barrier != "" {
		if t, ok := acceptedBarrierType[barrier]; ok {
			pn.nodeType = t
		}
	}
	if ref := node.Tags.Find("ref"); ref != "" {
		pn.hasRef = true
		osmdata.NodeRef[uint64(node.ID)] = ref
	}
	if name := node.Tags.Find("name"); name != "" {
		pn.hasName = true
		osmdata.NodeName[uint64(node.ID)] = name
	}
	if exitTo := node.Tags.Find("exit_to"); exitTo != "" {
		pn.hasExitTo = true
		osmdata.NodeExitTo[uint64(node.ID)] = exitTo
	}

	p.nodes[int64(node.ID)] = pn
}

// processWay appends the way and its way-node records. Returns false
// when the way references nodes missing from the extract.
func (p *OsmParser) processWay(way *osm.Way, osmdata *datastructure.OSMData,
	ways *sequence.Sequence[datastructure.OSMWay],
	wayNodes *sequence.Sequence[datastructure.OSMWayNode]) (bool, error) {

	for _, wn := range way.Nodes {
		if _, ok := p.nodes[int64(wn.ID)]; !ok {
			return false, nil
		}
	}

	record := p.buildWayRecord(way, osmdata)
	wayIndex := datastructure.Index(ways.Size())
	if err := ways.Append(record); err != nil {
		return false, err
	}

	for i, wn := range way.Nodes {
		pn := p.nodes[int64(wn.ID)]
		var node datastructure.OSMNode
		node.OsmID = uint64(wn.ID)
		node.Lat = pn.lat
		node.Lng = pn.lng
		node.SetIntersection(p.wayNodeMap[int64(wn.ID)] == JUNCTION_NODE ||
			i == 0 || i == len(way.Nodes)-1)
		node.SetTrafficSignal(pn.signal)
		node.SetForwardSignal(pn.forwardSignal)
		node.SetBackwardSignal(pn.backwardSignal)
		node.SetRef(pn.hasRef)
		node.SetName(pn.hasName)
		node.SetExitTo(pn.hasExitTo)
		node.SetType(pn.nodeType)
		node.SetAccessMask(1)
		if err := wayNodes.Append(datastructure.OSMWayNode{
			WayIndex: wayIndex,
			Node:     node,
		}); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (p *OsmParser) buildWayRecord(way *osm.Way, osmdata *datastructure.OSMData) datastructure.OSMWay {
	highway := way.Tags.Find("highway")
	info, ok := acceptedHighway[highway]
	if !ok {
		// junction-only ways (roundabouts without a highway tag)
		info = highwayInfo{class: pkg.UNCLASSIFIED}
	}

	var record datastructure.OSMWay
	record.WayID = uint64(way.ID)
	record.NodeCount = uint16(len(way.Nodes))
	record.RoadClass = info.class
	record.SetLink(info.link)

	record.Use = pkg.USE_ROAD
	if highway == "track" {
		record.Use = pkg.USE_TRACK
	} else if highway == "service" {
		record.Use = serviceUse(way.Tags.Find("service"))
	}

	oneway := way.Tags.Find("oneway")
	reversed := oneway == "-1"
	isOneway := oneway == "yes" || oneway == "1" || oneway == "true" || reversed ||
		way.Tags.Find("junction") == "roundabout"
	record.SetOneway(isOneway)
	record.SetAutoForward(!isOneway || !reversed)
	record.SetAutoBackward(!isOneway || reversed)

	record.Speed = parseMaxSpeed(way.Tags.Find("maxspeed"))
	if record.Speed == 0 {
		record.Speed = defaultSpeed[info.class]
	}

	addRef := func(tag string) uint32 {
		if val := way.Tags.Find(tag); val != "" {
			return osmdata.RefOffsetMap.Add(val)
		}
		return 0
	}
	addName := func(tag string) uint32 {
		if val := way.Tags.Find(tag); val != "" {
			return osmdata.NameOffsetMap.Add(val)
		}
		return 0
	}
	record.RefIndex = addRef("ref")
	record.JunctionRefIndex = addRef("junction:ref")
	record.DestinationRefIndex = addRef("destination:ref")
	record.DestinationRefToIndex = addRef("destination:ref:to")
	record.NameIndex = addName("name")
	record.DestinationIndex = addName("destination")
	record.DestinationStreetIndex = addName("destination:street")
	record.DestinationStreetToIndex = addName("destination:street:to")
	record.ExitToIndex = addName("exit_to")

	return record
}
