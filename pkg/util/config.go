package util

import (
	"fmt"
	"runtime"

	"github.com/spf13/viper"
)

func ReadConfig() error {
	viper.SetConfigName("config")
	viper.AddConfigPath("./data/")

	viper.SetDefault("ways_file", "./data/ways.bin")
	viper.SetDefault("way_nodes_file", "./data/way_nodes.bin")
	viper.SetDefault("nodes_file", "./data/nodes.bin")
	viper.SetDefault("edges_file", "./data/edges.bin")
	viper.SetDefault("metadata_file", "./data/metadata.bin")
	viper.SetDefault("tile_dir", "./data/tiles")
	viper.SetDefault("concurrency", runtime.NumCPU())
	viper.SetDefault("compress_tiles", false)

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("fatal error config file: %w", err)
	}
	return nil
}
