package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ironsheep/annodiff/internal/dataset"
)

const referenceManifest = `name: gt
labels: [cat, dog]
items:
  - id: img1
    annotations:
      - type: box
        label: cat
        bbox: [0, 0, 10, 10]
  - id: img2
    annotations:
      - type: box
        label: dog
        bbox: [0, 0, 10, 10]
`

const candidateManifest = `name: pred
labels: [cat, dog]
items:
  - id: img1
    annotations:
      - type: box
        label: cat
        bbox: [0, 0, 10, 10]
        score: 0.9
  - id: img2
    annotations:
      - type: box
        label: cat
        bbox: [0, 0, 10, 10]
  - id: img3
    annotations:
      - type: box
        label: dog
        bbox: [5, 5, 10, 10]
`

// writeDataset writes a manifest into a fresh directory and returns the
// directory.
func writeDataset(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dataset.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return dir
}

// callTool runs a tools/call request and returns the response.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()
	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// toolText decodes the text content of a successful tool response.
func toolText(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("unexpected content: %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("failed to decode tool result: %v\n%s", err, text)
	}
}

type summary struct {
	Reference string         `json:"reference"`
	Candidate string         `json:"candidate"`
	Totals    map[string]int `json:"totals"`
	Confusion []struct {
		ReferenceLabel string `json:"reference_label"`
		CandidateLabel string `json:"candidate_label"`
		Count          int    `json:"count"`
	} `json:"confusion"`
	Items []json.RawMessage `json:"items"`
}

func TestHandleToolsCall_DatasetDiff(t *testing.T) {
	s := New()
	resp := callTool(t, s, "dataset_diff", map[string]interface{}{
		"first":  writeDataset(t, referenceManifest),
		"second": writeDataset(t, candidateManifest),
	})

	var got summary
	toolText(t, resp, &got)

	if got.Reference != "gt" || got.Candidate != "pred" {
		t.Errorf("names: got %s/%s, want gt/pred", got.Reference, got.Candidate)
	}
	want := map[string]int{
		"items":               3,
		"compared":            2,
		"matches":             1,
		"label_mismatches":    1,
		"unmatched_reference": 0,
		"unmatched_candidate": 1,
	}
	for k, v := range want {
		if got.Totals[k] != v {
			t.Errorf("totals[%s]: got %d, want %d", k, got.Totals[k], v)
		}
	}
	if len(got.Items) != 0 {
		t.Errorf("items should be omitted by default, got %d", len(got.Items))
	}

	foundMismatch := false
	for _, c := range got.Confusion {
		if c.ReferenceLabel == "dog" && c.CandidateLabel == "cat" && c.Count == 1 {
			foundMismatch = true
		}
	}
	if !foundMismatch {
		t.Errorf("expected a (dog, cat) confusion cell, got %+v", got.Confusion)
	}
}

func TestHandleToolsCall_DatasetDiffOptions(t *testing.T) {
	s := New()
	resp := callTool(t, s, "dataset_diff", map[string]interface{}{
		"first":         writeDataset(t, referenceManifest),
		"second":        writeDataset(t, candidateManifest),
		"conf_thresh":   0.95,
		"include_items": true,
	})

	var got summary
	toolText(t, resp, &got)

	if got.Totals["low_confidence"] != 1 {
		t.Errorf("low_confidence: got %d, want 1", got.Totals["low_confidence"])
	}
	if got.Totals["matches"] != 0 {
		t.Errorf("matches: got %d, want 0", got.Totals["matches"])
	}
	if len(got.Items) != 3 {
		t.Errorf("items: got %d, want 3", len(got.Items))
	}
}

func TestHandleToolsCall_DatasetDiffSecondAsReference(t *testing.T) {
	s := New()
	resp := callTool(t, s, "dataset_diff", map[string]interface{}{
		"first":     writeDataset(t, referenceManifest),
		"second":    writeDataset(t, candidateManifest),
		"reference": "second",
	})

	var got summary
	toolText(t, resp, &got)
	if got.Reference != "pred" {
		t.Errorf("reference: got %s, want pred", got.Reference)
	}
	if got.Totals["unmatched_reference"] != 1 {
		t.Errorf("unmatched_reference: got %d, want 1", got.Totals["unmatched_reference"])
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	ref := writeDataset(t, referenceManifest)
	cand := writeDataset(t, candidateManifest)

	tests := []struct {
		name    string
		tool    string
		args    map[string]interface{}
		wantMsg string
	}{
		{"unknown tool", "image_load", map[string]interface{}{}, "unknown tool"},
		{"missing second", "dataset_diff", map[string]interface{}{"first": ref}, "required"},
		{"bad threshold", "dataset_diff", map[string]interface{}{"first": ref, "second": cand, "iou_thresh": 1.5}, "threshold"},
		{"bad strategy", "dataset_diff", map[string]interface{}{"first": ref, "second": cand, "strategy": "fastest"}, "strategy"},
		{"missing dataset", "dataset_diff", map[string]interface{}{"first": ref, "second": filepath.Join(t.TempDir(), "nope")}, "second dataset"},
		{"bad format", "dataset_diff_render", map[string]interface{}{"first": ref, "second": cand, "format": "pdf"}, "format"},
		{"overlay without dest", "dataset_diff_render", map[string]interface{}{"first": ref, "second": cand, "format": "overlay"}, "destination"},
	}

	s := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, tt.tool, tt.args)
			if resp.Error == nil {
				t.Fatal("expected an error response")
			}
			if resp.Error.Code != codeToolFailed {
				t.Errorf("code: got %d, want %d", resp.Error.Code, codeToolFailed)
			}
			data, _ := resp.Error.Data.(string)
			if !strings.Contains(data, tt.wantMsg) {
				t.Errorf("error data %q does not mention %q", data, tt.wantMsg)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New()
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`[1,2,3]`),
	})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params error, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_RenderInline(t *testing.T) {
	s := New()
	resp := callTool(t, s, "dataset_diff_render", map[string]interface{}{
		"first":  writeDataset(t, referenceManifest),
		"second": writeDataset(t, candidateManifest),
		"format": "text",
	})

	var got renderResult
	toolText(t, resp, &got)

	if got.Format != "text" {
		t.Errorf("format: got %s, want text", got.Format)
	}
	if got.Dest != "" {
		t.Errorf("dest: got %s, want empty", got.Dest)
	}
	if !strings.Contains(got.Output, "CONFUSION") {
		t.Errorf("inline output missing confusion table:\n%s", got.Output)
	}
	if got.Totals.Matches != 1 {
		t.Errorf("matches: got %d, want 1", got.Totals.Matches)
	}
}

func TestHandleToolsCall_RenderToDestination(t *testing.T) {
	s := New()
	dest := filepath.Join(t.TempDir(), "diff")
	args := map[string]interface{}{
		"first":  writeDataset(t, referenceManifest),
		"second": writeDataset(t, candidateManifest),
		"format": "sqlite",
		"dest":   dest,
	}

	var got renderResult
	toolText(t, callTool(t, s, "dataset_diff_render", args), &got)

	if got.Output != "" {
		t.Errorf("file render should not return inline output, got %q", got.Output)
	}
	if _, err := os.Stat(filepath.Join(dest, "diff.db")); err != nil {
		t.Errorf("diff.db not written: %v", err)
	}

	// A second render into the now non-empty destination needs overwrite.
	resp := callTool(t, s, "dataset_diff_render", args)
	if resp.Error == nil {
		t.Fatal("expected destination exists error")
	}

	args["overwrite"] = true
	toolText(t, callTool(t, s, "dataset_diff_render", args), &got)
}

func TestHandleToolsCall_DiffMetrics(t *testing.T) {
	s := New()
	first := writeDataset(t, referenceManifest)
	second := writeDataset(t, candidateManifest)

	for i := 0; i < 2; i++ {
		resp := callTool(t, s, "dataset_diff", map[string]interface{}{"first": first, "second": second})
		if resp.Error != nil {
			t.Fatalf("dataset_diff failed: %+v", resp.Error)
		}
	}

	var got struct {
		Format string `json:"format"`
		Text   string `json:"text"`
	}
	toolText(t, callTool(t, s, "diff_metrics", map[string]interface{}{}), &got)

	if got.Format != "prometheus-text" {
		t.Errorf("format: got %s", got.Format)
	}
	for _, want := range []string{
		`annodiff_runs_total{result="ok"} 2`,
		`annodiff_pairs_total{outcome="match"} 2`,
		`annodiff_items_total{status="candidate-only"} 2`,
	} {
		if !strings.Contains(got.Text, want) {
			t.Errorf("metrics missing %q:\n%s", want, got.Text)
		}
	}
}

func TestHandleToolsCall_DatasetDiffFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	if err := dataset.Publish(context.Background(), client, "gt", []byte(referenceManifest), ""); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	s := New()
	resp := callTool(t, s, "dataset_diff", map[string]interface{}{
		"first":  "redis://" + mr.Addr() + "/0?dataset=gt",
		"second": writeDataset(t, candidateManifest),
	})

	var got summary
	toolText(t, resp, &got)
	if got.Reference != "gt" {
		t.Errorf("reference: got %s, want gt", got.Reference)
	}
	if got.Totals["matches"] != 1 || got.Totals["label_mismatches"] != 1 {
		t.Errorf("unexpected totals: %v", got.Totals)
	}
}
