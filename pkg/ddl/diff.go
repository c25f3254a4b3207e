package ddl

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const generatedPrefix = "-- Generated:"

// Diff returns a unified diff between two scripts, empty when they only
// differ in their generation timestamp.
func Diff(a, b, fromFile, toFile string) string {
	d := difflib.UnifiedDiff{
		A:        stripGenerated(difflib.SplitLines(a)),
		B:        stripGenerated(difflib.SplitLines(b)),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	}
	out, _ := difflib.GetUnifiedDiffString(d)
	return out
}

func stripGenerated(lines []string) []string {
	out := lines[:0:0]
	for _, l := range lines {
		if strings.HasPrefix(l, generatedPrefix) {
			continue
		}
		out = append(out, l)
	}
	return out
}
