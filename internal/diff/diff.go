// Package diff produces textual diffs between original and remediated code.
// It is stateless; the API layer calls it on demand.
package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Result of a diff operation.
type Result struct {
	DiffText      string `json:"diff_text"`
	LinesAdded    int    `json:"lines_added"`
	LinesRemoved  int    `json:"lines_removed"`
	LinesModified int    `json:"lines_modified"`
	HasChanges    bool   `json:"has_changes"`
}

// Row is one line of a side-by-side rendering. Status is one of
// "unchanged", "removed", "added".
type Row struct {
	Original string `json:"original"`
	Fixed    string `json:"fixed"`
	Status   string `json:"status"`
}

// Unified renders a unified diff with the given labels and context size.
func Unified(original, fixed, originalLabel, fixedLabel string, contextLines int) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(fixed),
		FromFile: originalLabel,
		ToFile:   fixedLabel,
		Context:  contextLines,
	})
}

// SideBySide renders the two versions as aligned rows.
func SideBySide(original, fixed string) []Row {
	a := strings.Split(original, "\n")
	b := strings.Split(fixed, "\n")
	m := difflib.NewMatcher(a, b)

	var rows []Row
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e': // equal
			for i := op.I1; i < op.I2; i++ {
				rows = append(rows, Row{Original: a[i], Fixed: a[i], Status: "unchanged"})
			}
		case 'd': // deleted from original
			for i := op.I1; i < op.I2; i++ {
				rows = append(rows, Row{Original: a[i], Status: "removed"})
			}
		case 'i': // inserted in fixed
			for j := op.J1; j < op.J2; j++ {
				rows = append(rows, Row{Fixed: b[j], Status: "added"})
			}
		case 'r': // replaced: render as removals then additions
			for i := op.I1; i < op.I2; i++ {
				rows = append(rows, Row{Original: a[i], Status: "removed"})
			}
			for j := op.J1; j < op.J2; j++ {
				rows = append(rows, Row{Fixed: b[j], Status: "added"})
			}
		}
	}
	return rows
}

// Stats counts added, removed and (approximately) modified lines.
func Stats(original, fixed string) (added, removed, modified int) {
	for _, row := range SideBySide(original, fixed) {
		switch row.Status {
		case "added":
			added++
		case "removed":
			removed++
		}
	}
	if added < removed {
		modified = added
	} else {
		modified = removed
	}
	return added, removed, modified
}

// Generate builds the full diff result for the two versions.
func Generate(original, fixed, originalLabel, fixedLabel string) (Result, error) {
	text, err := Unified(original, fixed, originalLabel, fixedLabel, 3)
	if err != nil {
		return Result{}, err
	}
	added, removed, modified := Stats(original, fixed)
	return Result{
		DiffText:      text,
		LinesAdded:    added,
		LinesRemoved:  removed,
		LinesModified: modified,
		HasChanges:    text != "",
	}, nil
}
