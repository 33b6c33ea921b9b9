package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemohq/rehydrate/internal/cache"
	"github.com/mnemohq/rehydrate/internal/embedder"
	"github.com/mnemohq/rehydrate/internal/engine"
	"github.com/mnemohq/rehydrate/internal/retriever"
	"github.com/mnemohq/rehydrate/internal/roles"
	"github.com/mnemohq/rehydrate/internal/storage"
	"github.com/mnemohq/rehydrate/pkg/types"
)

func newTestMCPServer(t *testing.T) *Server {
	t.Helper()

	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewHashingEmbedder(64)
	require.NoError(t, err)

	ctx := context.Background()
	text := "the assembler packs evidence into four ordered slots"
	chunk := &types.Chunk{
		SourceFile: "internal/assembler/assembler.go",
		SpanStart:  0,
		SpanEnd:    len(text),
		Text:       text,
	}
	chunk.Embedding, err = emb.Embed(ctx, text)
	require.NoError(t, err)
	require.NoError(t, store.UpsertChunk(ctx, chunk))

	roleStore, err := roles.NewStore([]types.RoleConfig{
		{Role: "coder", TokenBudget: 2000},
	})
	require.NoError(t, err)

	bundleCache, err := cache.New(16, time.Minute, nil)
	require.NoError(t, err)

	eng := engine.New(
		roleStore,
		retriever.NewLexical(store),
		retriever.NewDense(store, emb),
		store,
		bundleCache,
		engine.DefaultConfig(),
		nil,
	)
	return NewServer(eng, store, nil)
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &body))
	return body
}

func TestRehydrateContextTool(t *testing.T) {
	s := newTestMCPServer(t)

	result, err := s.handleRehydrateContext(context.Background(), callRequest(map[string]interface{}{
		"role": "coder",
		"task": "how does the assembler pack evidence",
	}))
	require.NoError(t, err)

	body := resultText(t, result)
	assert.Equal(t, "coder", body["role"])
	assert.EqualValues(t, 2000, body["token_budget"])

	slots, ok := body["slots"].([]interface{})
	require.True(t, ok)
	require.Len(t, slots, 4)
	first, ok := slots[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(types.SlotPinnedInvariants), first["kind"])
}

func TestRehydrateContextToolMissingParams(t *testing.T) {
	s := newTestMCPServer(t)
	ctx := context.Background()

	_, err := s.handleRehydrateContext(ctx, callRequest(map[string]interface{}{
		"task": "no role given",
	}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)

	_, err = s.handleRehydrateContext(ctx, callRequest(map[string]interface{}{
		"role": "coder",
	}))
	require.Error(t, err)
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestRehydrateContextToolUnknownRole(t *testing.T) {
	s := newTestMCPServer(t)

	_, err := s.handleRehydrateContext(context.Background(), callRequest(map[string]interface{}{
		"role": "ghost",
		"task": "anything",
	}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeUnknownRole, mcpErr.Code)
}

func TestRehydrateContextToolNumericParams(t *testing.T) {
	s := newTestMCPServer(t)

	// JSON numbers arrive as float64 over the wire.
	result, err := s.handleRehydrateContext(context.Background(), callRequest(map[string]interface{}{
		"role":         "coder",
		"task":         "pack evidence",
		"limit":        float64(5),
		"token_budget": float64(800),
	}))
	require.NoError(t, err)

	body := resultText(t, result)
	assert.EqualValues(t, 800, body["token_budget"])
}

func TestEngineStatusTool(t *testing.T) {
	s := newTestMCPServer(t)

	_, err := s.handleRehydrateContext(context.Background(), callRequest(map[string]interface{}{
		"role": "coder",
		"task": "warm up the counters",
	}))
	require.NoError(t, err)

	result, err := s.handleEngineStatus(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)

	body := resultText(t, result)
	assert.EqualValues(t, 1, body["chunks"])
	assert.EqualValues(t, 1, body["requests"])
	assert.Equal(t, true, body["entity_expansion"])
}
