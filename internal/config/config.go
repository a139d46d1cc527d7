// Package config loads the application configuration from an optional YAML
// file with environment variable overrides for endpoints.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SearchSettings is the ranking policy for one retrieval mode. Semantic and
// generative search are configured independently.
type SearchSettings struct {
	Threshold  float32 `yaml:"threshold"`
	MatchCount int     `yaml:"match_count"`
	MinLength  int     `yaml:"min_length"`
}

// ChunkSettings bounds passage sizes, in runes.
type ChunkSettings struct {
	MinSize int `yaml:"min_size"`
	MaxSize int `yaml:"max_size"`
	Overlap int `yaml:"overlap"`
}

// QdrantSettings locates the record store.
type QdrantSettings struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// SourceSettings selects and locates the document source.
type SourceSettings struct {
	Type string `yaml:"type"` // "dir" or "github"
	Root string `yaml:"root"` // dir source

	Owner    string `yaml:"owner"` // github source
	Repo     string `yaml:"repo"`
	BasePath string `yaml:"base_path"`
}

// Config is the full application configuration. Engines receive the values
// they need explicitly at call sites; nothing reads this as ambient mutable
// state after load.
type Config struct {
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	VectorSize     int    `yaml:"vector_size"`

	Chunk  ChunkSettings  `yaml:"chunk"`
	Search SearchSettings `yaml:"search"`
	Chat   SearchSettings `yaml:"chat"`

	// MinQueryLength gates auto-search at the edges; queries shorter than
	// this are not sent anywhere.
	MinQueryLength int `yaml:"min_query_length"`

	ExcludePrefixes []string `yaml:"exclude_prefixes"`
	PublicPrefixes  []string `yaml:"public_prefixes"`

	Qdrant QdrantSettings `yaml:"qdrant"`
	Source SourceSettings `yaml:"source"`
}

// Load reads the config from path. A missing file yields defaults; a present
// but invalid file is an error. QDRANT_HOST and QDRANT_PORT environment
// variables override the file in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		applyDefaults(cfg)
	}

	if host := os.Getenv("QDRANT_HOST"); host != "" {
		cfg.Qdrant.Host = host
	}
	if port := os.Getenv("QDRANT_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid QDRANT_PORT %q: %w", port, err)
		}
		cfg.Qdrant.Port = p
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		EmbeddingModel: "text-embedding-3-small",
		ChatModel:      "gpt-4o",
		VectorSize:     1536,
		Chunk: ChunkSettings{
			MinSize: 200,
			MaxSize: 600,
			Overlap: 100,
		},
		Search: SearchSettings{
			Threshold:  0.5,
			MatchCount: 10,
			MinLength:  40,
		},
		Chat: SearchSettings{
			Threshold:  0.4,
			MatchCount: 5,
			MinLength:  40,
		},
		MinQueryLength: 3,
		Qdrant: QdrantSettings{
			Host:       "localhost",
			Port:       6334,
			Collection: "notes",
		},
		Source: SourceSettings{
			Type: "dir",
			Root: ".",
		},
	}
}

// applyDefaults backfills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = def.EmbeddingModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = def.ChatModel
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = def.VectorSize
	}
	if cfg.Chunk.MinSize == 0 {
		cfg.Chunk.MinSize = def.Chunk.MinSize
	}
	if cfg.Chunk.MaxSize == 0 {
		cfg.Chunk.MaxSize = def.Chunk.MaxSize
	}
	if cfg.Search.MatchCount == 0 {
		cfg.Search.MatchCount = def.Search.MatchCount
	}
	if cfg.Chat.MatchCount == 0 {
		cfg.Chat.MatchCount = def.Chat.MatchCount
	}
	if cfg.MinQueryLength == 0 {
		cfg.MinQueryLength = def.MinQueryLength
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = def.Qdrant.Host
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = def.Qdrant.Port
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = def.Qdrant.Collection
	}
	if cfg.Source.Type == "" {
		cfg.Source.Type = def.Source.Type
	}
	if cfg.Source.Type == "dir" && cfg.Source.Root == "" {
		cfg.Source.Root = def.Source.Root
	}
}
