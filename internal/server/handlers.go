package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ironsheep/annodiff/internal/compare"
	"github.com/ironsheep/annodiff/internal/config"
	"github.com/ironsheep/annodiff/internal/dataset"
	"github.com/ironsheep/annodiff/internal/render"
	"github.com/ironsheep/annodiff/internal/report"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke ("dataset_diff", "dataset_diff_render" or
	// "diff_metrics").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "dataset_diff":
		return s.handleDatasetDiff(ctx, args)
	case "dataset_diff_render":
		return s.handleDatasetDiffRender(ctx, args)
	case "diff_metrics":
		return s.handleDiffMetrics()
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// diffArgs are the arguments shared by both tools. Pointer fields
// distinguish an omitted value from a zero one.
type diffArgs struct {
	First      string            `json:"first"`
	Second     string            `json:"second"`
	Reference  string            `json:"reference"`
	IoUThresh  *float64          `json:"iou_thresh"`
	ConfThresh *float64          `json:"conf_thresh"`
	Strategy   string            `json:"strategy"`
	Groups     *bool             `json:"groups"`
	LabelMap   map[string]string `json:"label_map"`
}

type datasetDiffArgs struct {
	diffArgs
	IncludeItems bool `json:"include_items"`
}

type datasetDiffRenderArgs struct {
	diffArgs
	Format    string `json:"format"`
	Dest      string `json:"dest"`
	Overwrite bool   `json:"overwrite"`
}

// resolve layers the tool arguments over the environment, the server's
// config file and the defaults.
func (s *Server) resolve(a diffArgs, overrides map[string]interface{}) (*config.Config, error) {
	if a.First == "" || a.Second == "" {
		return nil, errors.New("both first and second dataset paths are required")
	}

	v := viper.New()
	if a.Reference != "" {
		v.Set(config.KeyReference, a.Reference)
	}
	if a.IoUThresh != nil {
		v.Set(config.KeyIoUThreshold, *a.IoUThresh)
	}
	if a.ConfThresh != nil {
		v.Set(config.KeyConfThreshold, *a.ConfThresh)
	}
	if a.Strategy != "" {
		v.Set(config.KeyStrategy, a.Strategy)
	}
	if a.Groups != nil {
		v.Set(config.KeyGroups, *a.Groups)
	}
	if len(a.LabelMap) > 0 {
		v.Set(config.KeyLabelMap, a.LabelMap)
	}
	for key, value := range overrides {
		v.Set(key, value)
	}
	return config.Load(v, s.configFile)
}

// diff loads both datasets and compares them. A run in which every item
// failed is an error.
func (s *Server) diff(ctx context.Context, a diffArgs, cfg *config.Config) (*report.DiffReport, error) {
	first, err := dataset.Open(ctx, a.First)
	if err != nil {
		return nil, fmt.Errorf("first dataset: %w", err)
	}
	defer dataset.Close(first)
	second, err := dataset.Open(ctx, a.Second)
	if err != nil {
		return nil, fmt.Errorf("second dataset: %w", err)
	}
	defer dataset.Close(second)

	c, err := compare.New(cfg.ComparatorOptions(s.log)...)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rep, err := c.Compare(ctx, first, second)
	s.metrics.ObserveRun(rep, err, time.Since(start))
	return rep, err
}

// metricsResult is returned by diff_metrics.
type metricsResult struct {
	Format string `json:"format"`
	Text   string `json:"text"`
}

// handleDiffMetrics reports the metrics accumulated by this server's diff
// runs in the Prometheus text format.
func (s *Server) handleDiffMetrics() (interface{}, error) {
	var buf bytes.Buffer
	if err := s.metrics.WriteText(&buf); err != nil {
		return nil, err
	}
	return metricsResult{Format: "prometheus-text", Text: buf.String()}, nil
}

func (s *Server) handleDatasetDiff(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a datasetDiffArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg, err := s.resolve(a.diffArgs, nil)
	if err != nil {
		return nil, err
	}

	rep, err := s.diff(ctx, a.diffArgs, cfg)
	if err != nil {
		return nil, err
	}

	var data []byte
	if a.IncludeItems {
		data, err = json.Marshal(rep)
	} else {
		data, err = rep.Summary()
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// renderResult describes a finished render. Output carries text or json
// rendered without a destination.
type renderResult struct {
	Format   string        `json:"format"`
	Dest     string        `json:"dest,omitempty"`
	Output   string        `json:"output,omitempty"`
	Totals   report.Totals `json:"totals"`
	Failures int           `json:"failures"`
}

func (s *Server) handleDatasetDiffRender(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a datasetDiffRenderArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	overrides := map[string]interface{}{
		config.KeyDest:      a.Dest,
		config.KeyOverwrite: a.Overwrite,
	}
	if a.Format != "" {
		overrides[config.KeyFormat] = a.Format
	}
	cfg, err := s.resolve(a.diffArgs, overrides)
	if err != nil {
		return nil, err
	}
	format, err := render.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	rep, err := s.diff(ctx, a.diffArgs, cfg)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	opts := []render.Option{
		render.WithStdout(&out),
		render.WithOverwrite(cfg.Overwrite),
		render.WithImageCache(s.cache),
		render.WithMaxEdge(cfg.MaxEdge),
		render.WithLogger(s.log),
	}
	if cfg.Workers > 0 {
		opts = append(opts, render.WithWorkers(cfg.Workers))
	}
	err = render.New(opts...).Render(ctx, rep, format, cfg.Dest)
	s.trimCache()
	if err != nil {
		return nil, err
	}

	return renderResult{
		Format:   format.String(),
		Dest:     cfg.Dest,
		Output:   out.String(),
		Totals:   rep.Totals,
		Failures: len(rep.Failures),
	}, nil
}

// trimCache empties the image cache once it grows past the configured bound.
func (s *Server) trimCache() {
	if s.maxCached <= 0 {
		return
	}
	if n := s.cache.Len(); n > s.maxCached {
		s.log.Debug("clearing image cache", "images", n, "max", s.maxCached)
		s.cache.Clear()
	}
}
