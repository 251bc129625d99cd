package main

import (
	"github.com/lintang-b-s/tilegraph/pkg/datastructure"
	"github.com/lintang-b-s/tilegraph/pkg/geo"
	"github.com/lintang-b-s/tilegraph/pkg/graphbuilder"
	"github.com/lintang-b-s/tilegraph/pkg/logger"
	"github.com/lintang-b-s/tilegraph/pkg/spatialindex"
	"github.com/lintang-b-s/tilegraph/pkg/util"
	"github.com/spf13/viper"
)

func main() {
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	if err := util.ReadConfig(); err != nil {
		logger.Sugar().Warnf("no config file, using defaults: %v", err)
	}

	var levels []geo.TileLevel
	if err := viper.UnmarshalKey("hierarchy.levels", &levels); err != nil {
		panic(err)
	}
	hierarchy := geo.NewTileHierarchy(levels)

	osmdata, err := datastructure.LoadOSMData(viper.GetString("metadata_file"))
	if err != nil {
		panic(err)
	}
	osmdata.WaysFile = viper.GetString("ways_file")
	osmdata.WayNodesFile = viper.GetString("way_nodes_file")

	builder := graphbuilder.NewGraphBuilder(hierarchy,
		viper.GetString("nodes_file"), viper.GetString("edges_file"),
		viper.GetString("tile_dir"), viper.GetInt("concurrency"),
		viper.GetBool("compress_tiles"), logger)

	tiles, _, err := builder.Build(osmdata)
	if err != nil {
		panic(err)
	}

	index := spatialindex.NewTileRtree()
	tileIDs := make([]geo.GraphID, 0, len(tiles))
	for _, entry := range tiles {
		tileIDs = append(tileIDs, entry.Tile)
	}
	index.Build(hierarchy, tileIDs, logger)

	logger.Sugar().Infof("graph build completed successfully, %d tiles indexed", index.Len())
}
