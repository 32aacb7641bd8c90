package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the demo binary's runtime parameters.
type Config struct {
	Alpha                float64
	WalksPerNode         int
	DataPath             string
	OptimizeInvalidation bool
	RedisSnapshotAddr    string
	SnapshotPrefix       string
}

// NewConfig returns a Config with the defaults the demo runs with if no
// .env file is present.
func NewConfig() *Config {
	return &Config{
		Alpha:                0.85,
		WalksPerNode:         1000,
		DataPath:             "edges.csv",
		OptimizeInvalidation: true,
		RedisSnapshotAddr:    "",
		SnapshotPrefix:       "meritrank",
	}
}

// LoadConfig reads meritrank.env, falling back to defaults for anything
// the file doesn't set (or if the file is absent entirely).
func LoadConfig() (*Config, error) {
	config := NewConfig()

	if err := godotenv.Load("meritrank.env"); err != nil {
		return config, nil
	}

	if v := os.Getenv("ALPHA"); v != "" {
		alpha, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing ALPHA: %w", err)
		}
		config.Alpha = alpha
	}

	if v := os.Getenv("WALKS_PER_NODE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parsing WALKS_PER_NODE: %w", err)
		}
		config.WalksPerNode = n
	}

	if v := os.Getenv("DATA_PATH"); v != "" {
		config.DataPath = v
	}

	if v := os.Getenv("OPTIMIZE_INVALIDATION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parsing OPTIMIZE_INVALIDATION: %w", err)
		}
		config.OptimizeInvalidation = b
	}

	if v := os.Getenv("REDIS_SNAPSHOT_ADDR"); v != "" {
		config.RedisSnapshotAddr = v
	}

	if v := os.Getenv("SNAPSHOT_PREFIX"); v != "" {
		config.SnapshotPrefix = v
	}

	return config, nil
}
