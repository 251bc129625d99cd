package graphbuilder

import (
	"strings"

	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/lintang-b-s/tilegraph/pkg/datastructure"
	"github.com/lintang-b-s/tilegraph/pkg/tile"
	"github.com/lintang-b-s/tilegraph/pkg/util"
)

// GetRef merges way refs with directions from the relation ref. The
// way ref is ";" separated ("US 51;I 57"); the relation ref carries
// "ref|direction" tokens ("US 51|north;I 57|north"). Ref order of the
// way wins.
func GetRef(wayRef, relationRef string) string {
	var refs []string
	wayRefs := util.GetTagTokens(wayRef)
	refDirs := util.GetTagTokens(relationRef)
	for _, ref := range wayRefs {
		found := false
		for _, refDir := range refDirs {
			tmp := util.GetTagTokensSep(refDir, '|')
			if len(tmp) == 2 && tmp[0] == ref {
				refs = append(refs, ref+" "+tmp[1])
				found = true
				break
			}
		}
		if !found {
			// no direction found in relations for this ref
			refs = append(refs, ref)
		}
	}
	return strings.Join(refs, ";")
}

// GetNames returns the name list of a way for the edge-info record:
// ref tokens first (the relation-merged ref when present), then name
// tokens.
func GetNames(way *datastructure.OSMWay, ref string, osmdata *datastructure.OSMData) []string {
	var names []string
	if ref != "" {
		names = append(names, util.GetTagTokens(ref)...)
	} else if way.RefIndex != 0 {
		names = append(names, util.GetTagTokens(osmdata.RefOffsetMap.Name(way.RefIndex))...)
	}
	if way.NameIndex != 0 {
		names = append(names, util.GetTagTokens(osmdata.NameOffsetMap.Name(way.NameIndex))...)
	}
	return names
}

// CreateExitSignInfoList assembles the exit sign list for a ramp edge:
// exit number (way junction ref, node ref fallback), branch
// (destination ref and street), toward (destination ref-to, street-to
// and destination), the node's exit_to tag when no branch or toward
// exists, and finally the node name.
func CreateExitSignInfoList(node datastructure.OSMNode, way *datastructure.OSMWay,
	osmdata *datastructure.OSMData) []tile.SignInfo {

	var exitList []tile.SignInfo

	// NUMBER

	if way.JunctionRefIndex != 0 {
		exitList = append(exitList, tile.SignInfo{
			Type: pkg.EXIT_NUMBER,
			Text: osmdata.RefOffsetMap.Name(way.JunctionRefIndex),
		})
	} else if node.Ref() {
		exitList = append(exitList, tile.SignInfo{
			Type: pkg.EXIT_NUMBER,
			Text: osmdata.NodeRef[node.OsmID],
		})
	}

	// BRANCH

	hasBranch := false

	if way.DestinationRefIndex != 0 {
		hasBranch = true
		for _, branchRef := range util.GetTagTokens(osmdata.RefOffsetMap.Name(way.DestinationRefIndex)) {
			exitList = append(exitList, tile.SignInfo{Type: pkg.EXIT_BRANCH, Text: branchRef})
		}
	}

	if way.DestinationStreetIndex != 0 {
		hasBranch = true
		for _, branchStreet := range util.GetTagTokens(osmdata.NameOffsetMap.Name(way.DestinationStreetIndex)) {
			exitList = append(exitList, tile.SignInfo{Type: pkg.EXIT_BRANCH, Text: branchStreet})
		}
	}

	// TOWARD

	hasToward := false

	if way.DestinationRefToIndex != 0 {
		hasToward = true
		for _, towardRef := range util.GetTagTokens(osmdata.RefOffsetMap.Name(way.DestinationRefToIndex)) {
			exitList = append(exitList, tile.SignInfo{Type: pkg.EXIT_TOWARD, Text: towardRef})
		}
	}

	if way.DestinationStreetToIndex != 0 {
		hasToward = true
		for _, towardStreet := range util.GetTagTokens(osmdata.NameOffsetMap.Name(way.DestinationStreetToIndex)) {
			exitList = append(exitList, tile.SignInfo{Type: pkg.EXIT_TOWARD, Text: towardStreet})
		}
	}

	if way.DestinationIndex != 0 {
		hasToward = true
		for _, towardName := range util.GetTagTokens(osmdata.NameOffsetMap.Name(way.DestinationIndex)) {
			exitList = append(exitList, tile.SignInfo{Type: pkg.EXIT_TOWARD, Text: towardName})
		}
	}

	// process exit_to only if no other branch or toward info exists
	if !hasBranch && !hasToward && node.ExitTo() {
		for _, exitTo := range util.GetTagTokens(osmdata.NodeExitTo[node.OsmID]) {
			exitList = append(exitList, parseExitTo(exitTo)...)
		}
	}

	// NAME

	if node.Name() {
		for _, name := range util.GetTagTokens(osmdata.NodeName[node.OsmID]) {
			exitList = append(exitList, tile.SignInfo{Type: pkg.EXIT_NAME, Text: name})
		}
	}

	return exitList
}

// parseExitTo splits one exit_to token into branch/toward signs.
// Matching is case insensitive: a "to "/"toward " prefix marks a
// toward; a single " to " or " toward " infix splits branch from
// toward; anything else defaults to toward.
func parseExitTo(exitTo string) []tile.SignInfo {
	tmp := strings.ToLower(exitTo)

	// remove the "To". For example: US 11;To I 81;Carlisle;Harrisburg
	if strings.HasPrefix(tmp, "to ") {
		return []tile.SignInfo{{Type: pkg.EXIT_TOWARD, Text: exitTo[3:]}}
	}
	// remove the "Toward"
	if strings.HasPrefix(tmp, "toward ") {
		return []tile.SignInfo{{Type: pkg.EXIT_TOWARD, Text: exitTo[7:]}}
	}

	// "I 95 to I 695": <branch> to <toward>, unless " to " appears
	// twice or " toward " appears as well
	if found := strings.Index(tmp, " to "); found >= 0 &&
		strings.Index(tmp[found+4:], " to ") < 0 &&
		!strings.Contains(tmp, " toward ") {
		return []tile.SignInfo{
			{Type: pkg.EXIT_BRANCH, Text: exitTo[:found]},
			{Type: pkg.EXIT_TOWARD, Text: exitTo[found+4:]},
		}
	}

	if found := strings.Index(tmp, " toward "); found >= 0 &&
		strings.Index(tmp[found+8:], " toward ") < 0 &&
		!strings.Contains(tmp, " to ") {
		return []tile.SignInfo{
			{Type: pkg.EXIT_BRANCH, Text: exitTo[:found]},
			{Type: pkg.EXIT_TOWARD, Text: exitTo[found+8:]},
		}
	}

	// default to toward
	return []tile.SignInfo{{Type: pkg.EXIT_TOWARD, Text: exitTo}}
}
