package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"Go2NetProfile/internal/model"
)

// TextWriter renders describe-style tables, one per scenario and metric.
type TextWriter struct {
	path string
	out  io.Writer
}

// NewTextWriter creates a text writer for path; "" or "-" writes to stdout.
func NewTextWriter(path string) *TextWriter {
	return &TextWriter{path: path}
}

// NewTextWriterTo creates a text writer that renders into out.
func NewTextWriterTo(out io.Writer) *TextWriter {
	return &TextWriter{out: out}
}

func (w *TextWriter) Name() string { return "text" }

func (w *TextWriter) Close() error { return nil }

func (w *TextWriter) Write(report *model.Report) error {
	if w.out != nil {
		return Render(w.out, report)
	}
	f, err := create(w.path)
	if err != nil {
		return err
	}
	if err := Render(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Render writes the report as plain-text tables.
func Render(out io.Writer, report *model.Report) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "run %s generated %s\n\n", report.RunID, report.GeneratedAt.Format("2006-01-02 15:04:05"))

	for _, sr := range report.Scenarios() {
		if sr == nil {
			continue
		}
		for _, metric := range sr.MetricNames() {
			renderMetric(tw, report.Applications, sr.Name, sr.Metrics[metric])
		}
		renderTotals(tw, report.Applications, sr)
		renderCounts(tw, report.Applications, sr.Name+" / tcp flags", sr.TCPFlags)
		renderCounts(tw, report.Applications, sr.Name+" / tls versions", sr.TLSVersions)
		renderMeanWindow(tw, report.Applications, sr)
	}
	return tw.Flush()
}

func renderMetric(tw *tabwriter.Writer, labels []string, scenario string, mr *model.MetricResult) {
	title := fmt.Sprintf("== %s / %s", scenario, mr.Metric)
	if bound, ok := mr.ClipBound.Get(); ok {
		title += fmt.Sprintf(" (clip bound %s)", formatFloat(bound))
	}
	fmt.Fprintln(tw, title+" ==")

	quantiles := quantileHeader(labels, mr)
	header := []string{"application", "count", "mean", "std", "min"}
	for _, q := range quantiles {
		header = append(header, strconv.FormatFloat(q*100, 'f', -1, 64)+"%")
	}
	header = append(header, "max")
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for _, label := range labels {
		am, ok := mr.PerApplication[label]
		if !ok {
			continue
		}
		s := am.Summary
		row := []string{label, strconv.Itoa(s.Count)}
		if !s.Available {
			row = append(row, s.Reason)
			fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
			continue
		}
		row = append(row, formatFloat(s.Mean), formatFloat(s.Std), formatFloat(s.Min))
		for _, p := range quantiles {
			v, _ := s.Quantile(p)
			row = append(row, formatFloat(v))
		}
		row = append(row, formatFloat(s.Max))
		fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
	}
	fmt.Fprintln(tw)
}

func renderTotals(tw *tabwriter.Writer, labels []string, sr *model.ScenarioResult) {
	fmt.Fprintf(tw, "== %s / totals ==\n", sr.Name)
	fmt.Fprintln(tw, "application\tpackets\tbytes\tflows\t")
	for _, label := range labels {
		t := sr.Totals[label]
		flows := "-"
		if sr.Name == model.ScenarioFlowAware {
			flows = strconv.Itoa(t.Flows)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t\n", label, t.Packets, t.Bytes, flows)
	}
	fmt.Fprintln(tw)
}

// renderCounts prints a value distribution per application, most frequent
// first. Nothing is printed when no application has a value.
func renderCounts(tw *tabwriter.Writer, labels []string, title string, counts map[string]map[string]int) {
	empty := true
	for _, label := range labels {
		if len(counts[label]) > 0 {
			empty = false
		}
	}
	if empty {
		return
	}

	fmt.Fprintf(tw, "== %s ==\n", title)
	fmt.Fprintln(tw, "application\tvalue\tcount\t")
	for _, label := range labels {
		values := make([]string, 0, len(counts[label]))
		for v := range counts[label] {
			values = append(values, v)
		}
		sort.Slice(values, func(i, j int) bool {
			ci, cj := counts[label][values[i]], counts[label][values[j]]
			if ci != cj {
				return ci > cj
			}
			return values[i] < values[j]
		})
		for _, v := range values {
			fmt.Fprintf(tw, "%s\t%s\t%d\t\n", label, v, counts[label][v])
		}
	}
	fmt.Fprintln(tw)
}

func renderMeanWindow(tw *tabwriter.Writer, labels []string, sr *model.ScenarioResult) {
	if len(sr.MeanWindow) == 0 {
		return
	}
	fmt.Fprintf(tw, "== %s / mean tcp window ==\n", sr.Name)
	fmt.Fprintln(tw, "application\twindow\t")
	for _, label := range labels {
		window := "-"
		if w, ok := sr.MeanWindow[label].Get(); ok {
			window = formatFloat(w)
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", label, window)
	}
	fmt.Fprintln(tw)
}

// quantileHeader returns the quantile levels of the first available summary.
func quantileHeader(labels []string, mr *model.MetricResult) []float64 {
	for _, label := range labels {
		if am, ok := mr.PerApplication[label]; ok && am.Summary.Available {
			ps := make([]float64, len(am.Summary.Quantiles))
			for i, q := range am.Summary.Quantiles {
				ps[i] = q.P
			}
			return ps
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
