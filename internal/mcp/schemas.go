package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// rehydrateContextTool returns the tool definition for rehydrate_context.
func rehydrateContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rehydrate_context",
		Description: "Build a bounded, ranked, deduplicated context bundle for a role and task",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"role": map[string]interface{}{
					"type":        "string",
					"description": "Agent role name; must match a configured role policy",
				},
				"task": map[string]interface{}{
					"type":        "string",
					"description": "Task query text used for retrieval and entity extraction",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of evidence results to consider (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"token_budget": map[string]interface{}{
					"type":        "integer",
					"description": "Token budget override; defaults to the role's configured budget",
				},
				"entity_expansion": map[string]interface{}{
					"type":        "boolean",
					"description": "Override the engine default for entity-adjacent expansion",
				},
			},
			Required: []string{"role", "task"},
		},
	}
}

// engineStatusTool returns the tool definition for engine_status.
func engineStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "engine_status",
		Description: "Report index size, cache hit rate, latency, and feature flags",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
