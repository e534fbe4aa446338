package deadcode

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
	"gonum.org/v1/gonum/stat"
)

// SortPolicy selects the order of reported findings.
type SortPolicy string

const (
	SortByLocation SortPolicy = "by-location"
	SortBySize     SortPolicy = "by-size"
)

// String returns the string representation.
func (p SortPolicy) String() string {
	return string(p)
}

// ParseSortPolicy converts a policy name, accepting "location" and "size" as
// short forms. The empty string selects SortByLocation.
func ParseSortPolicy(s string) (SortPolicy, error) {
	switch s {
	case "", "by-location", "location":
		return SortByLocation, nil
	case "by-size", "size":
		return SortBySize, nil
	default:
		return "", fmt.Errorf("unknown sort policy %q (want by-location or by-size)", s)
	}
}

// Aggregate drops findings below minConfidence and orders the rest. Both
// orders are total, so equal inputs always produce identical output.
func Aggregate(findings []Finding, minConfidence int, policy SortPolicy) []Finding {
	kept := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.Confidence >= minConfidence {
			kept = append(kept, f)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := &kept[i], &kept[j]
		if policy == SortBySize && a.Size != b.Size {
			return a.Size > b.Size
		}
		return locationLess(a, b)
	})
	return kept
}

func locationLess(a, b *Finding) bool {
	if a.Location.File != b.Location.File {
		return a.Location.File < b.Location.File
	}
	if a.Location.Line != b.Location.Line {
		return a.Location.Line < b.Location.Line
	}
	if a.Location.Column != b.Location.Column {
		return a.Location.Column < b.Location.Column
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Key < b.Key
}

// ToRecord converts a finding to its report form.
func (f Finding) ToRecord() Record {
	reasons := make([]string, len(f.Reasons))
	for i, r := range f.Reasons {
		reasons[i] = r.String()
	}
	return Record{
		File:       f.Location.File,
		Line:       f.Location.Line,
		Column:     f.Location.Column,
		EndLine:    f.Location.EndLine,
		SymbolName: f.Name,
		Kind:       f.Kind,
		Confidence: f.Confidence,
		Level:      LevelFor(f.Confidence),
		Size:       f.Size,
		Reasons:    reasons,
	}
}

// Records converts findings to records, preserving order.
func Records(findings []Finding) []Record {
	records := make([]Record, len(findings))
	for i, f := range findings {
		records[i] = f.ToRecord()
	}
	return records
}

// Fingerprint digests the ordered records. Two runs over the same input
// produce the same fingerprint.
func Fingerprint(records []Record) string {
	h := blake3.New()
	for _, r := range records {
		fmt.Fprintf(h, "%s\x00%d\x00%d\x00%s\x00%s\x00%d\n", r.File, r.Line, r.Column, r.SymbolName, r.Kind, r.Confidence)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Summary provides aggregate statistics for a run.
type Summary struct {
	FilesAnalyzed    int                `json:"files_analyzed" toon:"files_analyzed" yaml:"files_analyzed"`
	FilesSkipped     int                `json:"files_skipped" toon:"files_skipped" yaml:"files_skipped"`
	DegradedFiles    int                `json:"degraded_files" toon:"degraded_files" yaml:"degraded_files"`
	TotalSymbols     int                `json:"total_symbols" toon:"total_symbols" yaml:"total_symbols"`
	TotalReferences  int                `json:"total_references" toon:"total_references" yaml:"total_references"`
	ByWeight         map[Weight]int     `json:"by_weight" toon:"by_weight" yaml:"by_weight"`
	TotalFindings    int                `json:"total_findings" toon:"total_findings" yaml:"total_findings"`
	ByKind           map[SymbolKind]int `json:"by_kind" toon:"by_kind" yaml:"by_kind"`
	MeanConfidence   float64            `json:"mean_confidence" toon:"mean_confidence" yaml:"mean_confidence"`
	StdDevConfidence float64            `json:"stddev_confidence" toon:"stddev_confidence" yaml:"stddev_confidence"`
}

// NewSummary creates an initialized summary.
func NewSummary() Summary {
	return Summary{
		ByWeight: make(map[Weight]int),
		ByKind:   make(map[SymbolKind]int),
	}
}

// AddFindings tallies the reported findings.
func (s *Summary) AddFindings(findings []Finding) {
	s.TotalFindings = len(findings)
	if len(findings) == 0 {
		return
	}
	values := make([]float64, len(findings))
	for i, f := range findings {
		s.ByKind[f.Kind]++
		values[i] = float64(f.Confidence)
	}
	s.MeanConfidence = stat.Mean(values, nil)
	if len(values) > 1 {
		s.StdDevConfidence = stat.StdDev(values, nil)
	}
}

// AddEdges tallies resolution outcomes.
func (s *Summary) AddEdges(edges []Edge) {
	s.TotalReferences += len(edges)
	for _, e := range edges {
		s.ByWeight[e.Weight]++
	}
}
