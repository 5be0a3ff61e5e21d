package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Metadata.Driver == "" {
		cfg.Metadata.Driver = "sqlite"
	}
	if cfg.Metadata.MongoURI == "" {
		cfg.Metadata.MongoURI = "mongodb://localhost:27017"
	}
	if cfg.Metadata.MongoDB == "" {
		cfg.Metadata.MongoDB = "kensaku"
	}
	if cfg.Metadata.SQLitePath == "" {
		cfg.Metadata.SQLitePath = "/usr/local/var/kensaku/data/metadata.db"
	}
	if cfg.Embedding.APIURL == "" {
		cfg.Embedding.APIURL = "http://localhost:11434/api/embed"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 60
	}
	if cfg.Generation.APIURL == "" {
		cfg.Generation.APIURL = "http://localhost:11434/api/generate"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "llama3"
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 300
	}
	if cfg.Chunking.MaxWords == 0 {
		cfg.Chunking.MaxWords = 140
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 30
	}
	if cfg.Chunking.SnippetLength == 0 {
		cfg.Chunking.SnippetLength = 400
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Search.CandidateMultiplier == 0 {
		cfg.Search.CandidateMultiplier = 10
	}
	if cfg.Backends.Qdrant.TimeoutSeconds == 0 {
		cfg.Backends.Qdrant.TimeoutSeconds = 15
	}
	// The flat backend needs nothing external; keep it on unless explicitly
	// disabled together with everything else.
	if !cfg.Backends.OpenSearch.Enabled && !cfg.Backends.Qdrant.Enabled && !cfg.Backends.Flat.Enabled {
		cfg.Backends.Flat.Enabled = true
	}
}
