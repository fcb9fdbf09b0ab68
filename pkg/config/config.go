package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Cache    CacheConfig
	Metadata MetadataConfig
	Docs     DocsConfig
	Vector   VectorConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type CacheConfig struct {
	Backend  string
	Path     string
	TTLHours int
	Redis    RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type MetadataConfig struct {
	Path string
}

type DocsConfig struct {
	Path         string
	MaxFileSize  int64
	MaxTotalSize int64
}

type VectorConfig struct {
	Endpoint       string
	CollectionName string
	VectorDim      int
	TopK           int
	MinScore       float64
}

type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

type PipelineConfig struct {
	MaxQueryLength     int
	SearchTimeoutSec   int
	GenerateTimeoutSec int
	ChunkSize          int
	ChunkOverlap       int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/s3ai")

	viper.SetEnvPrefix("S3AI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/s3ai.db")

	viper.SetDefault("cache.backend", "sqlite")
	viper.SetDefault("cache.path", "./data/cache.db")
	viper.SetDefault("cache.ttlHours", 24)
	viper.SetDefault("cache.redis.host", "localhost")
	viper.SetDefault("cache.redis.port", 6379)
	viper.SetDefault("cache.redis.db", 0)

	viper.SetDefault("metadata.path", "./docs/bucket_metadata.txt")

	viper.SetDefault("docs.path", "./docs")
	viper.SetDefault("docs.maxFileSize", 10485760)
	viper.SetDefault("docs.maxTotalSize", 104857600)

	viper.SetDefault("vector.endpoint", "localhost:19530")
	viper.SetDefault("vector.collectionName", "s3_doc_chunks")
	viper.SetDefault("vector.vectorDim", 384)
	viper.SetDefault("vector.topK", 3)
	viper.SetDefault("vector.minScore", 0.25)

	viper.SetDefault("llm.baseURL", "http://localhost:11434/v1")
	viper.SetDefault("llm.apiKey", "ollama")
	viper.SetDefault("llm.model", "mistral")
	viper.SetDefault("llm.embeddingModel", "all-minilm")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("pipeline.maxQueryLength", 2000)
	viper.SetDefault("pipeline.searchTimeoutSec", 15)
	viper.SetDefault("pipeline.generateTimeoutSec", 60)
	viper.SetDefault("pipeline.chunkSize", 800)
	viper.SetDefault("pipeline.chunkOverlap", 100)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
