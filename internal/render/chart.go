package render

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ironsheep/annodiff/internal/imaging"
	"github.com/ironsheep/annodiff/internal/report"
)

// viridis ramp for the confusion heat map.
var heatColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

func (r *Renderer) renderCharts(rep *report.DiffReport, dest string) error {
	if err := writeSummaryFile(rep, dest); err != nil {
		return err
	}
	if err := writeConfusionHTML(filepath.Join(dest, "confusion.html"), rep); err != nil {
		return err
	}

	stats := rep.LabelStats()
	if len(stats) == 0 {
		r.log.Info("no labels to chart, skipping labels.png")
		return nil
	}
	return writeLabelChart(filepath.Join(dest, "labels.png"), stats)
}

// writeConfusionHTML renders the confusion table as a heat map with
// candidate labels on the x axis and reference labels on the y axis.
func writeConfusionHTML(path string, rep *report.DiffReport) error {
	labels := rep.ConfusionLabels()
	names := make([]string, len(labels))
	index := make(map[int]int, len(labels))
	for i, l := range labels {
		names[i] = rep.Vocabulary.Name(l)
		index[int(l)] = i
	}

	maxCount := 0
	cells := rep.Cells()
	data := make([]opts.HeatMapData, 0, len(cells))
	for _, c := range cells {
		data = append(data, opts.HeatMapData{
			Value: [3]interface{}{index[int(c.Candidate)], index[int(c.Reference)], c.Count},
		})
		maxCount = max(maxCount, c.Count)
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Annotation confusion",
			ChartID:   "confusion",
			Width:     "900px",
			Height:    "900px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Confusion",
			Subtitle: fmt.Sprintf("reference=%s candidate=%s", rep.Reference, rep.Candidate),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: names, Name: "candidate", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: names, Name: "reference", NameLocation: "middle", NameGap: 50}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(max(maxCount, 1)),
			InRange:    &opts.VisualMapInRange{Color: heatColors},
		}),
	)
	hm.SetXAxis(names).AddSeries("confusion", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}),
	)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := hm.Render(w); err != nil {
		f.Close()
		return fmt.Errorf("failed to render confusion chart: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeLabelChart draws grouped bars of per-label outcome counts.
func writeLabelChart(path string, stats []report.LabelStat) error {
	p := plot.New()
	p.Title.Text = "Annotations per label"
	p.Y.Label.Text = "count"

	series := []struct {
		name  string
		value func(report.LabelStat) int
	}{
		{"matched", func(s report.LabelStat) int { return s.Matched }},
		{"mismatched", func(s report.LabelStat) int { return s.Mismatched }},
		{"unmatched reference", func(s report.LabelStat) int { return s.UnmatchedReference }},
		{"unmatched candidate", func(s report.LabelStat) int { return s.UnmatchedCandidate }},
	}

	width := vg.Points(10)
	names := make([]string, len(stats))
	for i, s := range stats {
		names[i] = s.Name
	}

	for i, sr := range series {
		values := make(plotter.Values, len(stats))
		for j, s := range stats {
			values[j] = float64(sr.value(s))
		}
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return fmt.Errorf("failed to build %s bars: %w", sr.name, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = imaging.PaletteColor(i)
		bars.Offset = width * vg.Length(float64(i)-float64(len(series)-1)/2)
		p.Add(bars)
		p.Legend.Add(sr.name, bars)
	}
	p.Legend.Top = true
	p.NominalX(names...)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save label chart: %w", err)
	}
	return nil
}
