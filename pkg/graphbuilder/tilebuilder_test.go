package graphbuilder

import (
	"testing"

	"github.com/lintang-b-s/tilegraph/pkg"
	"github.com/stretchr/testify/require"
)

// an edge entering a dead-end region of low class roads is not-thru;
// adding a tertiary-or-better edge inside the region flips it back.
func TestIsNoThroughEdge(t *testing.T) {
	buildRegion := func(t *testing.T, exitClass pkg.RoadClass) (*tileWorker, int64, int64) {
		fixture := writeTestGraph(t, []testWay{
			twoWay(1, pkg.SECONDARY,
				wn(10, 0.0000, 0.0000, false),
				wn(11, 0.0010, 0.0000, true)), // S
			twoWay(2, pkg.RESIDENTIAL,
				wn(11, 0.0010, 0.0000, true),  // S
				wn(12, 0.0020, 0.0000, true)), // A
			twoWay(3, pkg.RESIDENTIAL,
				wn(12, 0.0020, 0.0000, true),  // A
				wn(13, 0.0030, 0.0000, true)), // B
			twoWay(4, exitClass,
				wn(13, 0.0030, 0.0000, true),   // B
				wn(14, 0.0040, 0.0000, false)), // C
		})
		fixture.construct(t)
		fixture.sort(t)

		worker := fixture.newTestWorker(t, t.TempDir())
		s := canonicalIndex(t, worker.nodes, 11)
		a := canonicalIndex(t, worker.nodes, 12)
		return worker, s, a
	}

	testCases := []struct {
		name      string
		exitClass pkg.RoadClass
		want      bool
	}{
		{name: "dead end region", exitClass: pkg.RESIDENTIAL, want: true},
		{name: "tertiary-or-better exit", exitClass: pkg.SECONDARY, want: false},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			worker, s, a := buildRegion(t, tt.exitClass)
			// edge 1 is way 2, the edge from S into the region
			got, err := worker.isNoThroughEdge(s, a, 1)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

// not-thru expansion returning to the start node proves a thoroughfare
func TestIsNoThroughEdgeLoop(t *testing.T) {
	fixture := writeTestGraph(t, []testWay{
		twoWay(1, pkg.RESIDENTIAL,
			wn(10, 0.0000, 0.0000, true),
			wn(11, 0.0010, 0.0000, true)),
		twoWay(2, pkg.RESIDENTIAL,
			wn(11, 0.0010, 0.0000, true),
			wn(12, 0.0010, 0.0010, true)),
		twoWay(3, pkg.RESIDENTIAL,
			wn(12, 0.0010, 0.0010, true),
			wn(10, 0.0000, 0.0000, true)),
	})
	fixture.construct(t)
	fixture.sort(t)

	worker := fixture.newTestWorker(t, t.TempDir())
	start := canonicalIndex(t, worker.nodes, 10)
	end := canonicalIndex(t, worker.nodes, 11)
	got, err := worker.isNoThroughEdge(start, end, 0)
	require.NoError(t, err)
	require.False(t, got)
}

func internalFixture(t *testing.T, connectorLng float64) (*tileWorker, int64, int64, uint32) {
	fixture := writeTestGraph(t, []testWay{
		// the connector under test
		twoWay(5, pkg.RESIDENTIAL,
			wn(20, 0.0000, 0.0000, true),        // P
			wn(21, 0.0000, connectorLng, true)), // Q
		oneWay(1, pkg.SECONDARY,
			wn(30, -0.0010, 0.0000, false),
			wn(20, 0.0000, 0.0000, true)), // into P
		oneWay(2, pkg.SECONDARY,
			wn(20, 0.0000, 0.0000, true), // out of P
			wn(31, 0.0010, 0.0000, false)),
		oneWay(3, pkg.SECONDARY,
			wn(32, -0.0010, connectorLng, false),
			wn(21, 0.0000, connectorLng, true)), // into Q
		oneWay(4, pkg.SECONDARY,
			wn(21, 0.0000, connectorLng, true), // out of Q
			wn(33, 0.0010, connectorLng, false)),
	})
	fixture.construct(t)
	fixture.sort(t)

	worker := fixture.newTestWorker(t, t.TempDir())
	p := canonicalIndex(t, worker.nodes, 20)
	q := canonicalIndex(t, worker.nodes, 21)

	shape, err := worker.edgeShape(0, 2)
	require.NoError(t, err)
	length := uint32(lengthOf(shape) + 0.5)
	return worker, p, q, length
}

func TestIsIntersectionInternal(t *testing.T) {
	// ~22 meters, two oneway pairs at both ends
	worker, p, q, length := internalFixture(t, 0.0002)
	got, err := worker.isIntersectionInternal(p, q, 0, 5, length)
	require.NoError(t, err)
	require.True(t, got)
}

func TestIsIntersectionInternalTooLong(t *testing.T) {
	// ~111 meters, over the internal length limit
	worker, p, q, length := internalFixture(t, 0.0010)
	got, err := worker.isIntersectionInternal(p, q, 0, 5, length)
	require.NoError(t, err)
	require.False(t, got)
}

func TestIsIntersectionInternalLowDegree(t *testing.T) {
	fixture := writeTestGraph(t, []testWay{
		twoWay(5, pkg.RESIDENTIAL,
			wn(20, 0.0000, 0.0000, true),
			wn(21, 0.0000, 0.0002, true)),
	})
	fixture.construct(t)
	fixture.sort(t)

	worker := fixture.newTestWorker(t, t.TempDir())
	p := canonicalIndex(t, worker.nodes, 20)
	q := canonicalIndex(t, worker.nodes, 21)
	got, err := worker.isIntersectionInternal(p, q, 0, 5, 20)
	require.NoError(t, err)
	require.False(t, got)
}

func TestGetLinkUse(t *testing.T) {
	build := func(t *testing.T, extraLinkAtQ bool) (*tileWorker, int64, int64) {
		ways := []testWay{
			linkWay(5, pkg.SECONDARY,
				wn(20, 0.0000, 0.0000, true),  // P
				wn(21, 0.0000, 0.0002, true)), // Q
			twoWay(1, pkg.SECONDARY,
				wn(30, -0.0010, 0.0000, false),
				wn(20, 0.0000, 0.0000, true)),
			twoWay(2, pkg.SECONDARY,
				wn(21, 0.0000, 0.0002, true),
				wn(31, 0.0010, 0.0002, false)),
		}
		if extraLinkAtQ {
			ways = append(ways, linkWay(6, pkg.SECONDARY,
				wn(21, 0.0000, 0.0002, true),
				wn(32, 0.0010, 0.0010, false)))
		}
		fixture := writeTestGraph(t, ways)
		fixture.construct(t)
		fixture.sort(t)
		worker := fixture.newTestWorker(t, t.TempDir())
		return worker, canonicalIndex(t, worker.nodes, 20), canonicalIndex(t, worker.nodes, 21)
	}

	t.Run("short link between non-links is a turn channel", func(t *testing.T) {
		worker, p, q := build(t, false)
		use, err := worker.getLinkUse(0, pkg.SECONDARY, 22, p, q)
		require.NoError(t, err)
		require.Equal(t, pkg.USE_TURN_CHANNEL, use)
	})

	t.Run("another link at an endpoint makes it a ramp", func(t *testing.T) {
		worker, p, q := build(t, true)
		use, err := worker.getLinkUse(0, pkg.SECONDARY, 22, p, q)
		require.NoError(t, err)
		require.Equal(t, pkg.USE_RAMP, use)
	})

	t.Run("motorway class is always a ramp", func(t *testing.T) {
		worker, p, q := build(t, false)
		use, err := worker.getLinkUse(0, pkg.MOTORWAY, 22, p, q)
		require.NoError(t, err)
		require.Equal(t, pkg.USE_RAMP, use)
	})

	t.Run("long links are ramps", func(t *testing.T) {
		worker, p, q := build(t, false)
		use, err := worker.getLinkUse(0, pkg.SECONDARY, 120, p, q)
		require.NoError(t, err)
		require.Equal(t, pkg.USE_RAMP, use)
	})
}

func TestUpdateLinkSpeed(t *testing.T) {
	testCases := []struct {
		name  string
		use   pkg.Use
		class pkg.RoadClass
		speed float32
		want  float32
	}{
		{name: "motorway ramp", use: pkg.USE_RAMP, class: pkg.MOTORWAY, speed: 50, want: 95},
		{name: "trunk ramp", use: pkg.USE_RAMP, class: pkg.TRUNK, speed: 50, want: 80},
		{name: "primary ramp", use: pkg.USE_RAMP, class: pkg.PRIMARY, speed: 50, want: 65},
		{name: "secondary ramp", use: pkg.USE_RAMP, class: pkg.SECONDARY, speed: 50, want: 50},
		{name: "tertiary ramp", use: pkg.USE_RAMP, class: pkg.TERTIARY, speed: 50, want: 40},
		{name: "unclassified ramp", use: pkg.USE_RAMP, class: pkg.UNCLASSIFIED, speed: 50, want: 35},
		{name: "other ramp", use: pkg.USE_RAMP, class: pkg.SERVICE_OTHER, speed: 50, want: 25},
		{name: "turn channel", use: pkg.USE_TURN_CHANNEL, class: pkg.SECONDARY, speed: 50, want: 45},
		{name: "plain road keeps its speed", use: pkg.USE_ROAD, class: pkg.SECONDARY, speed: 50, want: 50},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, updateLinkSpeed(tt.use, tt.class, tt.speed))
		})
	}
}

// restriction mask over the bundle order of the via node's edges:
// "no left" from way 1 through node N onto way 3 sets bit 2.
func TestCreateSimpleTurnRestriction(t *testing.T) {
	fixture := writeTestGraph(t, []testWay{
		twoWay(1, pkg.RESIDENTIAL,
			wn(100, 0.0000, 0.0000, false),
			wn(101, 0.0010, 0.0000, true)), // N
		twoWay(2, pkg.RESIDENTIAL,
			wn(101, 0.0010, 0.0000, true),
			wn(102, 0.0020, 0.0000, false)),
		twoWay(3, pkg.RESIDENTIAL,
			wn(101, 0.0010, 0.0000, true),
			wn(103, 0.0010, 0.0010, false)),
		twoWay(4, pkg.RESIDENTIAL,
			wn(101, 0.0010, 0.0000, true),
			wn(104, 0.0010, -0.0010, false)),
	})
	fixture.construct(t)
	fixture.sort(t)

	addRestriction(fixture, 1, pkg.NO_LEFT_TURN, pkg.DOW_NONE, 101, 3)
	require.NoError(t, ResolveRestrictionVias(fixture.osmdata, fixture.nodesFile))

	worker := fixture.newTestWorker(t, t.TempDir())
	n := canonicalIndex(t, worker.nodes, 101)

	stats := NewDataQuality()
	mask, err := createSimpleTurnRestriction(1, n,
		worker.nodes, worker.edges, worker.ways, fixture.osmdata, stats)
	require.NoError(t, err)
	require.Equal(t, uint32(1<<2), mask)
	require.Equal(t, uint32(0), stats.TimedRestrictions)
}

func TestCreateSimpleTurnRestrictionOnlyAndTimed(t *testing.T) {
	fixture := writeTestGraph(t, []testWay{
		twoWay(1, pkg.RESIDENTIAL,
			wn(100, 0.0000, 0.0000, false),
			wn(101, 0.0010, 0.0000, true)),
		twoWay(2, pkg.RESIDENTIAL,
			wn(101, 0.0010, 0.0000, true),
			wn(102, 0.0020, 0.0000, false)),
		twoWay(3, pkg.RESIDENTIAL,
			wn(101, 0.0010, 0.0000, true),
			wn(103, 0.0010, 0.0010, false)),
	})
	fixture.construct(t)
	fixture.sort(t)

	// only straight on way 2: every non-matching way is restricted
	addRestriction(fixture, 1, pkg.ONLY_STRAIGHT_ON, pkg.DOW_NONE, 101, 2)
	// a timed restriction is tallied and skipped
	addRestriction(fixture, 1, pkg.NO_RIGHT_TURN, pkg.DOW_SUNDAY, 101, 3)
	require.NoError(t, ResolveRestrictionVias(fixture.osmdata, fixture.nodesFile))

	worker := fixture.newTestWorker(t, t.TempDir())
	n := canonicalIndex(t, worker.nodes, 101)

	stats := NewDataQuality()
	mask, err := createSimpleTurnRestriction(1, n,
		worker.nodes, worker.edges, worker.ways, fixture.osmdata, stats)
	require.NoError(t, err)
	// bundle order is [way1, way2, way3]; ways 1 and 3 get bits
	require.Equal(t, uint32(1<<0|1<<2), mask)
	require.Equal(t, uint32(1), stats.TimedRestrictions)
}
