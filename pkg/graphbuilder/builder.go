package graphbuilder

import (
	"github.com/lintang-b-s/tilegraph/pkg/concurrent"
	"github.com/lintang-b-s/tilegraph/pkg/datastructure"
	"github.com/lintang-b-s/tilegraph/pkg/geo"
	"github.com/lintang-b-s/tilegraph/pkg/util"
	"go.uber.org/zap"
)

// GraphBuilder orchestrates the construction pipeline: edge synthesis,
// the graph sort, link reclassification and the parallel tile build.
type GraphBuilder struct {
	hierarchy   *geo.TileHierarchy
	nodesFile   string
	edgesFile   string
	tileDir     string
	concurrency int
	compress    bool
	logger      *zap.Logger
}

func NewGraphBuilder(hierarchy *geo.TileHierarchy, nodesFile, edgesFile, tileDir string,
	concurrency int, compress bool, logger *zap.Logger) *GraphBuilder {
	return &GraphBuilder{
		hierarchy:   hierarchy,
		nodesFile:   nodesFile,
		edgesFile:   edgesFile,
		tileDir:     tileDir,
		concurrency: concurrency,
		compress:    compress,
		logger:      logger,
	}
}

// Build runs the pipeline over the ingested osm data and returns the
// tile index plus the aggregated statistics. Tiles are written under
// the configured tile directory.
func (gb *GraphBuilder) Build(osmdata *datastructure.OSMData) (TileIndex, *DataQuality, error) {
	level := gb.hierarchy.LocalLevel()

	if err := ConstructEdges(osmdata, gb.nodesFile, gb.edgesFile,
		gb.hierarchy, level, gb.logger); err != nil {
		return nil, nil, err
	}

	tiles, err := SortGraph(gb.nodesFile, gb.edgesFile, gb.logger)
	if err != nil {
		return nil, nil, err
	}

	if err := ResolveRestrictionVias(osmdata, gb.nodesFile); err != nil {
		return nil, nil, err
	}

	// links are reclassified before the tile build since the edge
	// sequence cannot be modified once workers stream it
	stats := NewDataQuality()
	if err := ReclassifyLinks(osmdata.WaysFile, gb.nodesFile, gb.edgesFile,
		stats, gb.logger); err != nil {
		return nil, nil, err
	}

	if err := gb.buildLocalTiles(osmdata, tiles, stats); err != nil {
		return tiles, stats, err
	}

	stats.LogIssues(gb.logger)
	stats.LogStatistics(gb.logger)
	return tiles, stats, nil
}

type buildResult struct {
	stats *DataQuality
	err   error
}

// buildLocalTiles fans the tile index out over a worker pool. The
// index is divided into contiguous chunks, one per worker; the first
// len(tiles) mod n chunks take the ceiling size, the rest the floor.
// Workers return their statistics (or their first error) and the
// driver merges them after joining everyone.
func (gb *GraphBuilder) buildLocalTiles(osmdata *datastructure.OSMData,
	tiles TileIndex, stats *DataQuality) error {

	n := util.Max(1, gb.concurrency)
	gb.logger.Sugar().Infof("building %d tiles with %d workers...", len(tiles), n)

	pool := concurrent.NewWorkerPool[TileIndex, buildResult](n, n)

	floor := len(tiles) / n
	atCeiling := len(tiles) % n
	start := 0
	for i := 0; i < n; i++ {
		count := floor
		if i < atCeiling {
			count++
		}
		pool.AddJob(tiles[start : start+count])
		start += count
	}
	pool.Close()

	pool.Start(func(chunk TileIndex) buildResult {
		worker, err := newTileWorker(osmdata, gb.nodesFile, gb.edgesFile,
			gb.tileDir, gb.compress, gb.logger)
		if err != nil {
			return buildResult{err: err}
		}
		defer worker.close()
		for _, entry := range chunk {
			if err := worker.buildTile(entry); err != nil {
				return buildResult{stats: worker.stats, err: err}
			}
		}
		return buildResult{stats: worker.stats}
	})
	pool.Wait()

	var firstErr error
	for result := range pool.CollectResults() {
		if result.stats != nil {
			stats.AddStatistics(result.stats)
		}
		if result.err != nil && firstErr == nil {
			firstErr = result.err
		}
	}

	gb.logger.Sugar().Infof("finished building tiles")
	return firstErr
}
