package osmparser

import (
	"strconv"
	"strings"

	"github.com/lintang-b-s/tilegraph/pkg"
)

// kind of a way node observed during the first scan
type wayNodeKind uint8

const (
	END_NODE wayNodeKind = iota
	BETWEEN_NODE
	JUNCTION_NODE
)

type highwayInfo struct {
	class pkg.RoadClass
	link  bool
}

// https://wiki.openstreetmap.org/wiki/OSM_tags_for_routing/Telenav
var acceptedHighway = map[string]highwayInfo{
	"motorway":       {class: pkg.MOTORWAY},
	"motorway_link":  {class: pkg.MOTORWAY, link: true},
	"trunk":          {class: pkg.TRUNK},
	"trunk_link":     {class: pkg.TRUNK, link: true},
	"primary":        {class: pkg.PRIMARY},
	"primary_link":   {class: pkg.PRIMARY, link: true},
	"secondary":      {class: pkg.SECONDARY},
	"secondary_link": {class: pkg.SECONDARY, link: true},
	"tertiary":       {class: pkg.TERTIARY},
	"tertiary_link":  {class: pkg.TERTIARY, link: true},
	"unclassified":   {class: pkg.UNCLASSIFIED},
	"residential":    {class: pkg.RESIDENTIAL},
	"living_street":  {class: pkg.RESIDENTIAL},
	"service":        {class: pkg.SERVICE_OTHER},
	"road":           {class: pkg.UNCLASSIFIED},
	"track":          {class: pkg.SERVICE_OTHER},
	"motorroad":      {class: pkg.TRUNK},
}

// assumed speeds (km/h) when the way carries no usable maxspeed
var defaultSpeed = map[pkg.RoadClass]float32{
	pkg.MOTORWAY:      100.0,
	pkg.TRUNK:         80.0,
	pkg.PRIMARY:       60.0,
	pkg.SECONDARY:     50.0,
	pkg.TERTIARY:      40.0,
	pkg.UNCLASSIFIED:  35.0,
	pkg.RESIDENTIAL:   30.0,
	pkg.SERVICE_OTHER: 20.0,
}

// https://wiki.openstreetmap.org/wiki/Key:barrier
var acceptedBarrierType = map[string]pkg.NodeType{
	"gate":       pkg.GATE,
	"lift_gate":  pkg.GATE,
	"swing_gate": pkg.GATE,
	"bollard":    pkg.BOLLARD,
	"block":      pkg.BOLLARD,
	"toll_booth": pkg.TOLL_BOOTH,
}

var restrictionTypes = map[string]pkg.RestrictionType{
	"no_left_turn":     pkg.NO_LEFT_TURN,
	"no_right_turn":    pkg.NO_RIGHT_TURN,
	"no_straight_on":   pkg.NO_STRAIGHT_ON,
	"no_u_turn":        pkg.NO_U_TURN,
	"only_right_turn":  pkg.ONLY_RIGHT_TURN,
	"only_left_turn":   pkg.ONLY_LEFT_TURN,
	"only_straight_on": pkg.ONLY_STRAIGHT_ON,
}

var dayOn = map[string]pkg.DOW{
	"sunday":    pkg.DOW_SUNDAY,
	"monday":    pkg.DOW_MONDAY,
	"tuesday":   pkg.DOW_TUESDAY,
	"wednesday": pkg.DOW_WEDNESDAY,
	"thursday":  pkg.DOW_THURSDAY,
	"friday":    pkg.DOW_FRIDAY,
	"saturday":  pkg.DOW_SATURDAY,
}

// parseMaxSpeed returns km/h, 0 when the tag is unusable.
func parseMaxSpeed(val string) float32 {
	val = strings.TrimSpace(strings.ToLower(val))
	if val == "" || val == "none" || val == "signals" || val == "variable" {
		return 0
	}
	factor := 1.0
	if strings.HasSuffix(val, "mph") {
		factor = 1.609344
		val = strings.TrimSpace(strings.TrimSuffix(val, "mph"))
	} else if strings.HasSuffix(val, "km/h") {
		val = strings.TrimSpace(strings.TrimSuffix(val, "km/h"))
	} else if strings.HasSuffix(val, "kmh") {
		val = strings.TrimSpace(strings.TrimSuffix(val, "kmh"))
	}
	speed, err := strconv.ParseFloat(val, 64)
	if err != nil || speed <= 0 {
		return 0
	}
	return float32(speed * factor)
}

// serviceUse refines the use of a highway=service way.
func serviceUse(service string) pkg.Use {
	switch service {
	case "driveway":
		return pkg.USE_DRIVEWAY
	case "alley":
		return pkg.USE_ALLEY
	case "parking_aisle":
		return pkg.USE_PARKING_AISLE
	}
	return pkg.USE_OTHER
}
