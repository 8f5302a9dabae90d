package render

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ironsheep/annodiff/internal/report"
)

func writeJSON(w io.Writer, rep *report.DiffReport) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// renderJSONTree writes summary.json and one items/<name>.json per item.
func (r *Renderer) renderJSONTree(ctx context.Context, rep *report.DiffReport, dest string) error {
	summary, err := rep.Summary()
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dest, "summary.json"), append(summary, '\n'), 0o644); err != nil {
		return err
	}

	itemsDir := filepath.Join(dest, "items")
	if err := os.MkdirAll(itemsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create items directory: %w", err)
	}

	return forEachItem(ctx, rep, r.workers, func(it *report.ItemResult) error {
		data, err := json.MarshalIndent(it, "", "  ")
		if err != nil {
			return err
		}
		path := filepath.Join(itemsDir, FileName(it.ID)+".json")
		return os.WriteFile(path, append(data, '\n'), 0o644)
	})
}
