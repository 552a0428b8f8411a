package masterdata

// DependencySummary counts descendants by plural kind name.
type DependencySummary map[string]int

// Total is the number of descendants across all kinds.
func (s DependencySummary) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// DependencyReport describes what a delete would cascade to.
type DependencyReport struct {
	HasDependencies bool              `json:"has_dependencies"`
	Summary         DependencySummary `json:"summary"`
	CascadePreview  []string          `json:"cascade_preview"`
}

// NewDependencyReport builds the report for a kind from descendant counts.
// Kinds with zero descendants are left out of the preview.
func NewDependencyReport(kind ResourceKind, counts map[ResourceKind]int) DependencyReport {
	report := DependencyReport{Summary: DependencySummary{}, CascadePreview: []string{}}
	for _, child := range kind.Descendants() {
		n := counts[child]
		report.Summary[child.Plural()] = n
		if n == 0 {
			continue
		}
		report.HasDependencies = true
		report.CascadePreview = append(report.CascadePreview, child.Noun(n)+" will be deleted")
	}
	return report
}
