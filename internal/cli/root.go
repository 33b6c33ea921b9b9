// Package cli wires the rehydrate command tree: serve (HTTP), mcp
// (stdio), seed (index loading), and version.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mnemohq/rehydrate/internal/cache"
	"github.com/mnemohq/rehydrate/internal/config"
	"github.com/mnemohq/rehydrate/internal/embedder"
	"github.com/mnemohq/rehydrate/internal/engine"
	"github.com/mnemohq/rehydrate/internal/expander"
	"github.com/mnemohq/rehydrate/internal/retriever"
	"github.com/mnemohq/rehydrate/internal/roles"
	"github.com/mnemohq/rehydrate/internal/storage"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rehydrate",
	Short: "rehydrate is a memory rehydration engine for AI agents",
	Long: `rehydrate turns a (role, task) query into a bounded context bundle by
fusing lexical and dense retrieval, expanding on extracted entities,
deduplicating overlapping content, and packing the result into the
role's token budget.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./rehydrate.yaml or ~/.rehydrate/rehydrate.yaml)")
	rootCmd.AddCommand(serveCmd, mcpCmd, seedCmd, versionCmd)
}

// newLogger builds the process logger. MCP mode must keep stdout clean
// for the protocol, so logs always go to stderr.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// buildEngine assembles the full pipeline from configuration.
func buildEngine(cfg *config.Config, logger *zap.Logger) (*engine.Engine, storage.Store, error) {
	store, err := storage.Open(cfg.Index.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open index: %w", err)
	}

	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	roleStore, err := roles.NewStore(cfg.Roles)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	// Cache failure is recoverable: the engine runs with cache bypass.
	bundleCache, err := cache.New(cfg.Cache.Capacity, cfg.Cache.TTL, logger)
	if err != nil {
		logger.Warn("bundle cache unavailable, computing fresh for every request", zap.Error(err))
		bundleCache = nil
	}

	engCfg := engine.Config{
		RRFConstant:         cfg.Engine.RRFConstant,
		RequestTimeout:      cfg.Engine.RequestTimeout,
		CandidateMultiplier: cfg.Engine.CandidateMultiplier,
		RecencyLimit:        cfg.Engine.RecencyLimit,
		EntityExpansion:     cfg.Engine.EntityExpansion,
		Expander: expander.Config{
			MaxRelated:         cfg.Engine.ExpanderMaxRelated,
			BaseK:              cfg.Engine.ExpanderBaseK,
			PerEntityBonus:     cfg.Engine.ExpanderPerEntityBonus,
			StabilityThreshold: cfg.Engine.ExpanderStabilityThreshold,
		},
	}

	eng := engine.New(
		roleStore,
		retriever.NewLexical(store),
		retriever.NewDense(store, emb),
		store,
		bundleCache,
		engCfg,
		logger,
	)
	return eng, store, nil
}

func newEmbedder(cfg config.EmbedderConfig) (embedder.Embedder, error) {
	switch cfg.Provider {
	case "", "hash":
		return embedder.NewHashingEmbedder(cfg.Dimension)
	case "ollama":
		return embedder.NewOllamaEmbedder(cfg.URL, cfg.Model, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
}

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second
