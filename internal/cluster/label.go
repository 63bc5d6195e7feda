package cluster

import (
	"strings"

	"golang.org/x/text/cases"
)

var labelFolder = cases.Fold()

// FoldLabel normalizes a topic label for matching: trimmed, inner whitespace
// collapsed, Unicode case-folded. Matching is exact on the folded form;
// fuzzy matching belongs to the AI collaborator, not this core.
func FoldLabel(label string) string {
	return labelFolder.String(strings.Join(strings.Fields(label), " "))
}
