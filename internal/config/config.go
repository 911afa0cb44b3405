package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Key     string `yaml:"key"`
	Debug   bool   `yaml:"debug"`
}

type VectorStoreConfig struct {
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	InMemory      bool   `yaml:"in_memory"`
	EncryptionKey string `yaml:"encryption_key"`
}

// LLMConfig configures one model endpoint. Key is resolved from the
// environment when empty.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Temperature float64 `yaml:"temperature"`
}

type ExpansionConfig struct {
	Enabled             bool   `yaml:"enabled"`
	Model               string `yaml:"model"`
	Key                 string `yaml:"key"`
	MaxTokens           int    `yaml:"max_tokens"`
	ShortQueryWordLimit int    `yaml:"short_query_word_limit"`
}

type RAGConfig struct {
	ChunkSize              int `yaml:"chunk_size"`
	ChunkOverlap           int `yaml:"chunk_overlap"`
	TranscriptChunkSize    int `yaml:"transcript_chunk_size"`
	TranscriptChunkOverlap int `yaml:"transcript_chunk_overlap"`
	TopK                   int `yaml:"top_k"`
	LateChunkSize          int `yaml:"late_chunk_size"`
	LateChunkOverlap       int `yaml:"late_chunk_overlap"`
}

type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLSecs  int    `yaml:"ttl_secs"`
}

type TranscriptionConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
}

type ReportConfig struct {
	Title string `yaml:"title"`
	Link  string `yaml:"link"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	VectorStore   VectorStoreConfig   `yaml:"vector_store"`
	EmbedLLM      LLMConfig           `yaml:"embedding"`
	AnswerLLM     LLMConfig           `yaml:"answer_llm"`
	Expansion     ExpansionConfig     `yaml:"expansion"`
	RAG           RAGConfig           `yaml:"rag"`
	Cache         CacheConfig         `yaml:"cache"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Report        ReportConfig        `yaml:"report"`
}

// LoadConfig reads the yaml config at path, overlaying a .env file and
// environment variables for secrets. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; environment wins either way.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := &Config{}
			applyDefaults(cfg)
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

// applyEnv overlays secrets from the environment. Environment values win
// over the config file so deployments can rotate keys without editing yaml.
func applyEnv(cfg *Config) {
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.EmbedLLM.Key = v
		cfg.AnswerLLM.Key = v
	}
	if v := os.Getenv("COHERE_API_KEY"); v != "" {
		cfg.Expansion.Key = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Transcription.Key = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploads"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 64
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = "vector_store_index"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "intelliquery"
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = "googleai"
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "models/embedding-001"
	}
	if cfg.AnswerLLM.Provider == "" {
		cfg.AnswerLLM.Provider = "googleai"
	}
	if cfg.AnswerLLM.Model == "" {
		cfg.AnswerLLM.Model = "gemini-1.5-flash-latest"
	}
	if cfg.AnswerLLM.Temperature == 0 {
		cfg.AnswerLLM.Temperature = 0.3
	}
	if cfg.Expansion.Model == "" {
		cfg.Expansion.Model = "command"
	}
	if cfg.Expansion.MaxTokens == 0 {
		cfg.Expansion.MaxTokens = 15
	}
	if cfg.Expansion.ShortQueryWordLimit == 0 {
		cfg.Expansion.ShortQueryWordLimit = 15
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 100
	}
	if cfg.RAG.TranscriptChunkSize == 0 {
		cfg.RAG.TranscriptChunkSize = 500
	}
	if cfg.RAG.TranscriptChunkOverlap == 0 {
		cfg.RAG.TranscriptChunkOverlap = 50
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.LateChunkSize == 0 {
		cfg.RAG.LateChunkSize = 1000
	}
	if cfg.RAG.LateChunkOverlap == 0 {
		cfg.RAG.LateChunkOverlap = 100
	}
	if cfg.Cache.Addr == "" {
		cfg.Cache.Addr = "localhost:6379"
	}
	if cfg.Cache.TTLSecs == 0 {
		cfg.Cache.TTLSecs = 3600
	}
	if cfg.Transcription.Model == "" {
		cfg.Transcription.Model = "whisper-1"
	}
	if cfg.Report.Title == "" {
		cfg.Report.Title = "IntelliQuery Conversation"
	}
}
