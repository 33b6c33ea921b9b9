package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mnemohq/rehydrate/internal/config"
	"github.com/mnemohq/rehydrate/internal/storage"
	"github.com/mnemohq/rehydrate/pkg/types"
)

var seedCmd = &cobra.Command{
	Use:   "seed <corpus.jsonl>",
	Short: "Load a JSONL chunk corpus into the local index",
	Long: `seed reads one JSON object per line with the fields source_file,
span_start, span_end, text, and optional updated_at (RFC 3339), embeds
each chunk, and upserts it into the index. Full ingestion pipelines are
out of scope; this exists so the reference retrievers have content.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

type seedRecord struct {
	SourceFile string `json:"source_file"`
	SpanStart  int    `json:"span_start"`
	SpanEnd    int    `json:"span_end"`
	Text       string `json:"text"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Index.Path)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = store.Close() }()

	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	ctx := cmd.Context()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	var loaded, failed int
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec seedRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			failed++
			logger.Warn("skipping malformed corpus line", zap.Error(err))
			continue
		}

		chunk := &types.Chunk{
			SourceFile: rec.SourceFile,
			SpanStart:  rec.SpanStart,
			SpanEnd:    rec.SpanEnd,
			Text:       rec.Text,
		}
		if rec.UpdatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, rec.UpdatedAt); err == nil {
				chunk.UpdatedAt = ts
			}
		}
		if chunk.Embedding, err = emb.Embed(ctx, chunk.Text); err != nil {
			failed++
			logger.Warn("embedding failed", zap.String("file", rec.SourceFile), zap.Error(err))
			continue
		}
		if err := store.UpsertChunk(ctx, chunk); err != nil {
			failed++
			logger.Warn("upsert failed", zap.String("file", rec.SourceFile), zap.Error(err))
			continue
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}

	logger.Info("seed complete", zap.Int("loaded", loaded), zap.Int("failed", failed))
	fmt.Printf("loaded %d chunks (%d failed)\n", loaded, failed)
	return nil
}
