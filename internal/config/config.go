// Package config loads the daemon configuration: server binding, index
// location, embedder provider, cache sizing, engine tuning, and the
// per-role policies. Values merge as flags > environment > config file >
// defaults, with environment variables under the REHYDRATE_ prefix.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mnemohq/rehydrate/pkg/types"
)

// Config is the full daemon configuration.
type Config struct {
	Server   ServerConfig       `mapstructure:"server"`
	Index    IndexConfig        `mapstructure:"index"`
	Embedder EmbedderConfig     `mapstructure:"embedder"`
	Cache    CacheConfig        `mapstructure:"cache"`
	Engine   EngineConfig       `mapstructure:"engine"`
	Roles    []types.RoleConfig `mapstructure:"roles"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

// ListenAddr returns the bind:port address string.
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Bind, s.Port)
}

type IndexConfig struct {
	Path string `mapstructure:"path"`
}

type EmbedderConfig struct {
	Provider  string `mapstructure:"provider"` // "hash" or "ollama"
	URL       string `mapstructure:"url"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
}

type CacheConfig struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type EngineConfig struct {
	RRFConstant         float64       `mapstructure:"rrf_constant"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	CandidateMultiplier int           `mapstructure:"candidate_multiplier"`
	RecencyLimit        int           `mapstructure:"recency_limit"`
	EntityExpansion     bool          `mapstructure:"entity_expansion"`

	ExpanderMaxRelated         int     `mapstructure:"expander_max_related"`
	ExpanderBaseK              int     `mapstructure:"expander_base_k"`
	ExpanderPerEntityBonus     int     `mapstructure:"expander_per_entity_bonus"`
	ExpanderStabilityThreshold float64 `mapstructure:"expander_stability_threshold"`
}

// Load reads configuration from path (optional; empty searches the
// working directory and ~/.rehydrate for rehydrate.yaml) and the
// environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REHYDRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("rehydrate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.rehydrate")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
			// No file is fine; defaults plus env carry a dev setup.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.bind", "127.0.0.1")
	v.SetDefault("server.port", 8372)
	v.SetDefault("index.path", "rehydrate.db")
	v.SetDefault("embedder.provider", "hash")
	v.SetDefault("embedder.url", "http://localhost:11434")
	v.SetDefault("embedder.model", "nomic-embed-text")
	v.SetDefault("embedder.dimension", 384)
	v.SetDefault("cache.capacity", 1024)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("engine.rrf_constant", 60)
	v.SetDefault("engine.request_timeout", 5*time.Second)
	v.SetDefault("engine.candidate_multiplier", 2)
	v.SetDefault("engine.recency_limit", 10)
	v.SetDefault("engine.entity_expansion", true)
	v.SetDefault("engine.expander_max_related", 8)
	v.SetDefault("engine.expander_base_k", 2)
	v.SetDefault("engine.expander_per_entity_bonus", 2)
	v.SetDefault("engine.expander_stability_threshold", 0.7)
}
