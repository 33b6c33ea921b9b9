package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mnemohq/rehydrate/internal/engine"
	"github.com/mnemohq/rehydrate/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602
	ErrorCodeInternalError = -32603
	ErrorCodeUnknownRole   = -32001
	ErrorCodeTimeout       = -32002
)

// handleRehydrateContext handles the rehydrate_context tool invocation.
func (s *Server) handleRehydrateContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	role, ok := args["role"].(string)
	if !ok || role == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "role parameter is required", map[string]interface{}{
			"param": "role", "reason": "missing or empty",
		})
	}
	task, ok := args["task"].(string)
	if !ok || task == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "task parameter is required", map[string]interface{}{
			"param": "task", "reason": "missing or empty",
		})
	}

	req := engine.Request{
		Role:        role,
		Task:        task,
		Limit:       getIntDefault(args, "limit", 0),
		TokenBudget: getIntDefault(args, "token_budget", 0),
	}
	if v, ok := args["entity_expansion"].(bool); ok {
		req.Flags = &types.FeatureFlags{EntityExpansion: v}
	}

	bundle, err := s.engine.Rehydrate(ctx, req)
	if err != nil {
		switch types.ErrorKind(err) {
		case types.ErrKindConfig:
			return nil, newMCPError(ErrorCodeUnknownRole, err.Error(), nil)
		case types.ErrKindTimeout:
			return nil, newMCPError(ErrorCodeTimeout, err.Error(), nil)
		default:
			return nil, newMCPError(ErrorCodeInternalError, "rehydrate failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	slots := make([]map[string]interface{}, len(bundle.Slots))
	for i, slot := range bundle.Slots {
		slots[i] = map[string]interface{}{
			"kind":        string(slot.Kind),
			"content":     slot.Content,
			"token_count": slot.TokenCount,
		}
	}
	response := map[string]interface{}{
		"role":         bundle.Role,
		"slots":        slots,
		"total_tokens": bundle.TotalTokens,
		"token_budget": bundle.TokenBudget,
	}
	if len(bundle.Flags) > 0 {
		response["flags"] = bundle.Flags
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleEngineStatus handles the engine_status tool invocation.
func (s *Server) handleEngineStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chunks, err := s.store.CountChunks(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "index unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	}
	m := s.engine.Metrics()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"chunks":           chunks,
		"requests":         m.Requests,
		"cache_hits":       m.CacheHits,
		"hit_rate":         m.HitRate,
		"error_rate":       m.ErrorRate,
		"avg_latency_ms":   m.AvgLatencyMS,
		"entity_expansion": s.engine.EntityExpansion(),
	})), nil
}

// newMCPError creates an MCP protocol error.
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// MCPError represents an MCP protocol error.
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value.
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
