package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mnemohq/rehydrate/internal/config"
	"github.com/mnemohq/rehydrate/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	eng, store, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	logger.Info("mcp server ready, listening on stdio",
		zap.String("version", mcp.ServerVersion))
	return mcp.NewServer(eng, store, logger).Serve(cmd.Context())
}
