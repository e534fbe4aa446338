package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/panbanda/pydeadcode/pkg/analyzer/deadcode"
)

// DeadCodeReport renders the result of a dead code run.
type DeadCodeReport struct {
	Result *deadcode.Result
}

// reportData is the structured form shared by JSON, TOON and YAML.
type reportData struct {
	DeadCode    []deadcode.Record  `json:"dead_code" toon:"dead_code" yaml:"dead_code"`
	Warnings    []deadcode.Warning `json:"warnings,omitempty" toon:"warnings,omitempty" yaml:"warnings,omitempty"`
	Summary     deadcode.Summary   `json:"summary" toon:"summary" yaml:"summary"`
	Fingerprint string             `json:"fingerprint" toon:"fingerprint" yaml:"fingerprint"`
}

// NewDeadCodeReport wraps r for output.
func NewDeadCodeReport(r *deadcode.Result) *DeadCodeReport {
	return &DeadCodeReport{Result: r}
}

func (d *DeadCodeReport) records() []deadcode.Record {
	if d.Result == nil {
		return nil
	}
	return d.Result.Records
}

// RenderData returns the records with their summary.
func (d *DeadCodeReport) RenderData() any {
	data := reportData{DeadCode: d.records()}
	if data.DeadCode == nil {
		data.DeadCode = []deadcode.Record{}
	}
	if d.Result != nil {
		data.Warnings = d.Result.Warnings
		data.Summary = d.Result.Summary
		data.Fingerprint = d.Result.Fingerprint
	}
	return data
}

// RenderText writes one line per finding:
//
//	app/views.py: line 12 - unused_view [function] (100% confidence)
func (d *DeadCodeReport) RenderText(w io.Writer, colored bool) error {
	records := d.records()
	if len(records) == 0 {
		if colored {
			color.New(color.FgGreen).Fprintln(w, "No dead code found!")
		} else {
			fmt.Fprintln(w, "No dead code found!")
		}
		return nil
	}

	if colored {
		color.New(color.FgYellow, color.Bold).Fprintln(w, "Dead Code Found:")
	} else {
		fmt.Fprintln(w, "Dead Code Found:")
	}
	fmt.Fprintln(w)

	for _, r := range records {
		if colored {
			fmt.Fprintf(w, "%s: %s - %s %s (%s confidence)\n",
				color.HiBlueString(r.File),
				color.CyanString("line %d", r.Line),
				color.RedString(r.SymbolName),
				color.New(color.Faint).Sprintf("[%s]", r.Kind),
				LevelColor(string(r.Level), strconv.Itoa(r.Confidence)+"%"))
			continue
		}
		fmt.Fprintf(w, "%s: line %d - %s [%s] (%d%% confidence)\n", r.File, r.Line, r.SymbolName, r.Kind, r.Confidence)
	}

	fmt.Fprintln(w)
	count := strconv.Itoa(len(records))
	if colored {
		count = color.YellowString(count)
	}
	fmt.Fprintf(w, "%s dead code items found\n", count)
	return nil
}

// RenderMarkdown writes the findings as a Markdown table.
func (d *DeadCodeReport) RenderMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "# Dead Code\n\n")
	if len(d.records()) == 0 {
		fmt.Fprintln(w, "No dead code found!")
		return nil
	}
	t := d.Table()
	t.Title = ""
	if err := t.RenderMarkdown(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d dead code items found\n", len(d.records()))
	return nil
}

// Table returns the tabular view of the findings.
func (d *DeadCodeReport) Table() *Table {
	records := d.records()
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.File,
			strconv.Itoa(r.Line),
			r.SymbolName,
			string(r.Kind),
			strconv.Itoa(r.Confidence) + "%",
			strconv.Itoa(r.Size),
			strings.Join(r.Reasons, ", "),
		}
	}
	footer := []string{"", "", "", "", "", "", fmt.Sprintf("%d items", len(records))}
	return NewTable("Dead Code", []string{"File", "Line", "Name", "Kind", "Confidence", "Size", "Reasons"}, rows, footer, d.RenderData())
}

// Warnings writes the run's warnings to the formatter's error stream.
func (f *Formatter) Warnings(warnings []deadcode.Warning) {
	for _, w := range warnings {
		f.Warning("%s", w.String())
	}
}
