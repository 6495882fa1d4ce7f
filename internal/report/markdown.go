package report

import (
	"fmt"
	"strings"

	"github.com/ehr/reconciler/internal/reconcile"
)

// Markdown renders one category section of a patient comparison.
func Markdown(s reconcile.ReconciliationSummary, label string) string {
	if label == "" {
		label = s.Category.Label()
	}
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", label)
	b.WriteString("| | Source A | Source B |\n")
	b.WriteString("|---|---:|---:|\n")
	fmt.Fprintf(&b, "| Total records | %d | %d |\n", s.A.Count, s.B.Count)
	fmt.Fprintf(&b, "| Last year | %d | %d |\n", s.A.LastYearCount(), s.B.LastYearCount())
	fmt.Fprintf(&b, "| Unique | %d | %d |\n\n", s.A.UniqueCount, s.B.UniqueCount)

	fmt.Fprintf(&b, "- More records overall: %s\n", Winner(s.A.Count, s.B.Count))
	fmt.Fprintf(&b, "- More records in the last year: %s\n", Winner(s.A.LastYearCount(), s.B.LastYearCount()))
	fmt.Fprintf(&b, "- More unique records: %s\n", Winner(s.A.UniqueCount, s.B.UniqueCount))
	fmt.Fprintf(&b, "- Common records: %d\n", s.Common.Count)
	if !s.Now.IsZero() {
		fmt.Fprintf(&b, "- Last year ends: %s\n", s.Now.UTC().Format("2006-01-02"))
	}
	b.WriteString("\n")

	writeUnique(&b, "Only in source A", s.A.UniqueRecords)
	writeUnique(&b, "Only in source B", s.B.UniqueRecords)

	return b.String()
}

func writeUnique(b *strings.Builder, title string, records []reconcile.ClinicalRecord) {
	fmt.Fprintf(b, "### %s (%d)\n\n", title, len(records))
	if len(records) == 0 {
		b.WriteString("_None_\n\n")
		return
	}
	for _, g := range GroupByYear(records) {
		fmt.Fprintf(b, "#### %s\n\n", g.Year)
		for _, r := range g.Records {
			b.WriteString("- ")
			b.WriteString(Line(r))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
}

// Line renders a record as one listing line: date, text, measurement and
// primary code.
func Line(r reconcile.ClinicalRecord) string {
	var parts []string
	if !r.Date.IsMissing() {
		parts = append(parts, r.Date.Day())
	}
	text := escape(r.DisplayText)
	if m := r.Measurement.String(); m != "" {
		text += ": " + m
	}
	parts = append(parts, text)
	if c := r.Code(); c != nil {
		parts = append(parts, "`"+c.String()+"`")
	}
	return strings.Join(parts, " ")
}

// PatientMarkdown joins rendered category sections under a patient heading.
func PatientMarkdown(patientID string, sections []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Patient %s\n\n", escape(patientID))
	for _, s := range sections {
		b.WriteString(s)
	}
	return b.String()
}

// Sections renders every summary with its category label, in order.
func Sections(summaries []reconcile.ReconciliationSummary) []string {
	out := make([]string, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, Markdown(s, s.Category.Label()))
	}
	return out
}

var mdEscaper = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "`", "'", "\n", " ")

func escape(s string) string { return mdEscaper.Replace(s) }
