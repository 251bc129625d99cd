package graphbuilder

import (
	"go.uber.org/zap"
)

type IssueKind uint8

const (
	// a link edge whose bounded expansion found fewer than 2 non-link
	// boundary classes
	UnconnectedLinkEdge IssueKind = iota
	// two edges from one node sharing endpoint and length but coming
	// from different ways
	DuplicateWays
	// the link expansion stepped onto a non-link edge
	NonLinkExpansion
)

func (k IssueKind) String() string {
	switch k {
	case UnconnectedLinkEdge:
		return "unconnected link edge"
	case DuplicateWays:
		return "duplicate ways"
	case NonLinkExpansion:
		return "expansion onto non-link edge"
	}
	return "unknown"
}

type Issue struct {
	Kind   IssueKind
	WayID  uint64
	WayID2 uint64
}

// histogram buckets for node degree; the last bucket collects the tail
const nodeCountBuckets = 16

// DataQuality aggregates per worker counters and recorded (non fatal)
// issues. Each phase-E worker owns one and the driver merges them at
// the join.
type DataQuality struct {
	NotThruCount       uint32
	InternalCount      uint32
	TurnChannelCount   uint32
	CuldesacCount      uint32
	TimedRestrictions  uint32
	SimpleRestrictions uint32

	NodeCounts [nodeCountBuckets]uint32

	issues []Issue
}

func NewDataQuality() *DataQuality {
	return &DataQuality{}
}

func (dq *DataQuality) AddIssue(kind IssueKind, wayID, wayID2 uint64) {
	dq.issues = append(dq.issues, Issue{Kind: kind, WayID: wayID, WayID2: wayID2})
}

func (dq *DataQuality) Issues() []Issue {
	return dq.issues
}

func (dq *DataQuality) AddNodeCount(degree int) {
	if degree >= nodeCountBuckets {
		degree = nodeCountBuckets - 1
	}
	dq.NodeCounts[degree]++
}

// AddStatistics merges another worker's counters and issues.
func (dq *DataQuality) AddStatistics(o *DataQuality) {
	dq.NotThruCount += o.NotThruCount
	dq.InternalCount += o.InternalCount
	dq.TurnChannelCount += o.TurnChannelCount
	dq.CuldesacCount += o.CuldesacCount
	dq.TimedRestrictions += o.TimedRestrictions
	dq.SimpleRestrictions += o.SimpleRestrictions
	for i := range o.NodeCounts {
		dq.NodeCounts[i] += o.NodeCounts[i]
	}
	dq.issues = append(dq.issues, o.issues...)
}

func (dq *DataQuality) LogIssues(logger *zap.Logger) {
	for _, issue := range dq.issues {
		logger.Sugar().Warnf("%s: way %d %d", issue.Kind, issue.WayID, issue.WayID2)
	}
}

func (dq *DataQuality) LogStatistics(logger *zap.Logger) {
	sugar := logger.Sugar()
	sugar.Infof("not thru edges: %d", dq.NotThruCount)
	sugar.Infof("internal intersection edges: %d", dq.InternalCount)
	sugar.Infof("turn channels: %d", dq.TurnChannelCount)
	sugar.Infof("cul-de-sacs: %d", dq.CuldesacCount)
	sugar.Infof("simple turn restrictions: %d", dq.SimpleRestrictions)
	sugar.Infof("timed turn restrictions (skipped): %d", dq.TimedRestrictions)
	for degree, count := range dq.NodeCounts {
		if count > 0 {
			sugar.Infof("nodes with %d directed edges: %d", degree, count)
		}
	}
}
