package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/annodiff/internal/annotation"
	"github.com/ironsheep/annodiff/internal/compare"
	"github.com/ironsheep/annodiff/internal/config"
	"github.com/ironsheep/annodiff/internal/render"
	"github.com/ironsheep/annodiff/internal/report"
)

const groundTruth = `name: gt
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

const predictions = `name: pred
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
`

const renamedPredictions = `name: pred
labels: [feline, dog]
items:
  - id: img1
    annotations:
      - type: box
        label: feline
        bbox: [0, 0, 10, 10]
`

func writeDataset(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataset.yaml"), []byte(manifest), 0o644))
	return dir
}

// newDiffTestCmd builds a standalone diff command with the same flags as the
// registered one, so tests do not share flag state.
func newDiffTestCmd(args ...string) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{
		Use:           "diff",
		Args:          cobra.ExactArgs(1),
		RunE:          runDiff,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addDiffFlags(cmd.Flags())
	cmd.Flags().BoolP("verbose", "v", false, "")
	cmd.SetFlagErrorFunc(flagError)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	return cmd, &out, &errOut
}

func TestDiff_TextToStdout(t *testing.T) {
	cmd, out, _ := newDiffTestCmd("-p", writeDataset(t, groundTruth), writeDataset(t, predictions))
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "TOTALS")
	assert.Contains(t, text, "CONFUSION")
	assert.Contains(t, text, "img2")
	assert.NotContains(t, text, "FAILURES")
}

func TestDiff_JSONToDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	cmd, out, _ := newDiffTestCmd("-p", writeDataset(t, groundTruth), "-f", "json", "-d", dest, writeDataset(t, predictions))
	require.NoError(t, cmd.Execute())

	assert.Empty(t, out.String())
	assert.FileExists(t, filepath.Join(dest, "summary.json"))
	assert.FileExists(t, filepath.Join(dest, "items", "img1.json"))
}

func TestDiff_JSONToStdout(t *testing.T) {
	cmd, out, _ := newDiffTestCmd("-p", writeDataset(t, groundTruth), "--output-format", "json", "--iou-thresh", "0.3", writeDataset(t, predictions))
	require.NoError(t, cmd.Execute())

	var got struct {
		Options struct {
			IoUThreshold float64 `json:"iou_threshold"`
		} `json:"options"`
		Totals report.Totals `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 0.3, got.Options.IoUThreshold)
	assert.Equal(t, 1, got.Totals.Matches)
	assert.Equal(t, 1, got.Totals.LabelMismatches)
}

func TestDiff_ConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "annodiff.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output_format: json\nconf_thresh: 0.95\n"), 0o644))

	cmd, out, _ := newDiffTestCmd("-p", writeDataset(t, groundTruth), "--config", cfgPath, writeDataset(t, predictions))
	require.NoError(t, cmd.Execute())

	var got struct {
		Totals report.Totals `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 1, got.Totals.LowConfidence)
}

func TestDiff_MetricsFile(t *testing.T) {
	metricsFile := filepath.Join(t.TempDir(), "annodiff.prom")
	cmd, _, _ := newDiffTestCmd("-p", writeDataset(t, groundTruth), "--metrics-file", metricsFile, writeDataset(t, predictions))
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `annodiff_runs_total{result="ok"} 1`)
	assert.Contains(t, string(data), `annodiff_pairs_total{outcome="label_mismatch"} 1`)
}

func TestDiff_Errors(t *testing.T) {
	ref := writeDataset(t, groundTruth)
	cand := writeDataset(t, predictions)

	tests := []struct {
		name     string
		args     []string
		wantErr  error
		wantCode int
	}{
		{"threshold above one", []string{"-p", ref, "--iou-thresh", "1.5", cand}, compare.ErrInvalidThreshold, exitConfig},
		{"negative confidence", []string{"-p", ref, "--conf-thresh", "-0.1", cand}, config.ErrInvalid, exitConfig},
		{"NaN threshold", []string{"-p", ref, "--iou-thresh", "NaN", cand}, compare.ErrInvalidThreshold, exitConfig},
		{"malformed flag", []string{"-p", ref, "--iou-thresh", "half", cand}, config.ErrInvalid, exitConfig},
		{"unknown format", []string{"-p", ref, "-f", "pdf", cand}, config.ErrInvalid, exitConfig},
		{"unknown strategy", []string{"-p", ref, "--strategy", "best", cand}, config.ErrInvalid, exitConfig},
		{"overlay without dest", []string{"-p", ref, "-f", "overlay", cand}, render.ErrDestinationRequired, exitFailure},
		{"incompatible labels", []string{"-p", ref, writeDataset(t, renamedPredictions)}, compare.ErrIncompatibleVocabulary, exitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, _ := newDiffTestCmd(tt.args...)
			err := cmd.Execute()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCode, exitCode(err))
		})
	}
}

func TestDiff_MissingDataset(t *testing.T) {
	cmd, _, _ := newDiffTestCmd("-p", writeDataset(t, groundTruth), filepath.Join(t.TempDir(), "missing"))
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
}

func TestDiff_LabelMap(t *testing.T) {
	cmd, out, _ := newDiffTestCmd("-p", writeDataset(t, groundTruth), "-f", "json", "--label-map", "feline=cat", writeDataset(t, renamedPredictions))
	require.NoError(t, cmd.Execute())

	var got struct {
		Totals report.Totals `json:"totals"`
		Labels []string      `json:"labels"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 1, got.Totals.Matches)
	assert.Equal(t, []string{"cat", "dog"}, got.Labels)
}

func TestDiff_DestinationExists(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "notes.txt"), []byte("keep"), 0o644))
	ref := writeDataset(t, groundTruth)
	cand := writeDataset(t, predictions)

	cmd, _, _ := newDiffTestCmd("-p", ref, "-d", dest, cand)
	err := cmd.Execute()
	require.ErrorIs(t, err, render.ErrDestinationExists)

	cmd, _, _ = newDiffTestCmd("-p", ref, "-d", dest, "--overwrite", cand)
	require.NoError(t, cmd.Execute())
	assert.FileExists(t, filepath.Join(dest, "summary.txt"))
}

func TestPublish_ThenDiffFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	location := "redis://" + mr.Addr() + "/0?dataset=gt"

	pub := &cobra.Command{Use: "publish", Args: cobra.ExactArgs(2), RunE: runPublish, SilenceUsage: true, SilenceErrors: true}
	var pubOut bytes.Buffer
	pub.SetOut(&pubOut)
	pub.SetArgs([]string{writeDataset(t, groundTruth), location})
	require.NoError(t, pub.Execute())
	assert.Equal(t, "published gt (2 items)\n", pubOut.String())
	assert.True(t, mr.Exists("gt:item:img1"))

	cmd, out, _ := newDiffTestCmd("-p", location, "-f", "json", writeDataset(t, predictions))
	require.NoError(t, cmd.Execute())

	var got struct {
		Reference string        `json:"reference"`
		Totals    report.Totals `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "gt", got.Reference)
	assert.Equal(t, 1, got.Totals.Matches)
	assert.Equal(t, 1, got.Totals.LabelMismatches)
}

func TestPublish_NotRedis(t *testing.T) {
	pub := &cobra.Command{Use: "publish", Args: cobra.ExactArgs(2), RunE: runPublish, SilenceUsage: true, SilenceErrors: true}
	pub.SetArgs([]string{writeDataset(t, groundTruth), t.TempDir()})
	err := pub.Execute()
	require.ErrorIs(t, err, config.ErrInvalid)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestPrintFailures(t *testing.T) {
	rep := report.New("gt", "pred", report.Options{}, annotation.Vocabulary{"cat"})
	rep.Add(&report.ItemResult{ID: "ok", Status: report.StatusCompared})
	rep.Add(&report.ItemResult{ID: "bad", Status: report.StatusUnavailable, Error: "permission denied"})
	rep.Add(&report.ItemResult{ID: "slow", Status: report.StatusSkipped, Error: "context deadline exceeded"})
	rep.AddFailure("bad", errors.New("permission denied"))
	rep.AddFailure("slow", errors.New("context deadline exceeded"))

	var buf bytes.Buffer
	printFailures(&buf, rep)

	want := "2 of 3 items could not be compared:\n" +
		"  bad (unavailable): permission denied\n" +
		"  slow (skipped): context deadline exceeded\n"
	assert.Equal(t, want, buf.String())

	buf.Reset()
	printFailures(&buf, report.New("gt", "pred", report.Options{}, nil))
	assert.Empty(t, buf.String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitConfig, exitCode(fmt.Errorf("wrapped: %w", config.ErrInvalid)))
	assert.Equal(t, exitConfig, exitCode(fmt.Errorf("iou: %w", compare.ErrInvalidThreshold)))
	assert.Equal(t, exitConfig, exitCode(fmt.Errorf("labels: %w", compare.ErrIncompatibleVocabulary)))
	assert.Equal(t, exitFailure, exitCode(compare.ErrAllItemsFailed))
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
}

func TestVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.True(t, strings.HasPrefix(info, "annodiff "))
	assert.Contains(t, info, "Git commit: "+GitCommit)

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, info+"\n", out.String())
}

func TestServe_Ping(t *testing.T) {
	cmd := &cobra.Command{Use: "serve", RunE: runServe, SilenceUsage: true}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("otlp-endpoint", "", "")

	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"ping"}` + "\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	var resp struct {
		ID     float64        `json:"id"`
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, float64(7), resp.ID)
	assert.NotNil(t, resp.Result)
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"diff", "publish", "serve", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
