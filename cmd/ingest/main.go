package main

import (
	"flag"

	"github.com/lintang-b-s/tilegraph/pkg/logger"
	"github.com/lintang-b-s/tilegraph/pkg/osmparser"
	"github.com/lintang-b-s/tilegraph/pkg/util"
	"github.com/spf13/viper"
)

func main() {
	mapFile := flag.String("map", "./data/map.osm.pbf", "openstreetmap pbf extract")
	flag.Parse()

	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	if err := util.ReadConfig(); err != nil {
		logger.Sugar().Warnf("no config file, using defaults: %v", err)
	}

	parser := osmparser.NewOsmParser()
	osmdata, err := parser.Parse(*mapFile,
		viper.GetString("ways_file"), viper.GetString("way_nodes_file"), logger)
	if err != nil {
		panic(err)
	}

	if err := osmdata.Save(viper.GetString("metadata_file")); err != nil {
		panic(err)
	}

	logger.Sugar().Infof("ingest completed successfully")
}
