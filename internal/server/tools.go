package server

import "github.com/ironsheep/annodiff/internal/render"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// diffProperties are the arguments shared by both tools.
func diffProperties() map[string]interface{} {
	return map[string]interface{}{
		"first": map[string]interface{}{
			"type":        "string",
			"description": "First dataset: a manifest file, a directory containing dataset.yaml, or a redis:// URL with a dataset query parameter",
		},
		"second": map[string]interface{}{
			"type":        "string",
			"description": "Second dataset, in the same forms as first",
		},
		"reference": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"first", "second"},
			"description": "Which dataset is ground truth. Default first",
		},
		"iou_thresh": map[string]interface{}{
			"type":        "number",
			"description": "Minimum overlap for two annotations to be paired, within [0,1]. Default 0.5",
		},
		"conf_thresh": map[string]interface{}{
			"type":        "number",
			"description": "Candidate annotations scored below this are ignored, within [0,1]. Default 0.5",
		},
		"strategy": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"greedy", "optimal"},
			"description": "Pairing strategy. Default greedy",
		},
		"groups": map[string]interface{}{
			"type":        "boolean",
			"description": "Report partially matched annotation groups",
		},
		"label_map": map[string]interface{}{
			"type":                 "object",
			"additionalProperties": map[string]interface{}{"type": "string"},
			"description":          "Maps candidate label names onto reference label names",
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	diffProps := diffProperties()
	diffProps["include_items"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Include per-item results in the returned report. Default false returns totals and the confusion table only",
	}

	renderProps := diffProperties()
	renderProps["format"] = map[string]interface{}{
		"type":        "string",
		"enum":        render.Formats(),
		"description": "Output format. Default text",
	}
	renderProps["dest"] = map[string]interface{}{
		"type":        "string",
		"description": "Destination directory. Optional for text and json, which are returned inline when omitted",
	}
	renderProps["overwrite"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Allow writing into a non-empty destination directory",
	}

	return []Tool{
		{
			Name:        "dataset_diff",
			Description: "Compare two annotated datasets item by item and return match totals, the label confusion table and any items that could not be read.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": diffProps,
				"required":   []string{"first", "second"},
			},
		},
		{
			Name:        "dataset_diff_render",
			Description: "Compare two annotated datasets and render the diff as text, json, per-item overlay images, charts or a sqlite database.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": renderProps,
				"required":   []string{"first", "second"},
			},
		},
		{
			Name:        "diff_metrics",
			Description: "Return Prometheus metrics (run, item and pair counts, overlap histogram) accumulated by the diffs this server has run.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
				"required":   []string{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
