package document

import (
	"strings"
)

// findSubsection locates a labeled subsection inside a section bound.
// The sub-bound runs from the label's heading line to the next heading
// of equal or shallower depth, a horizontal rule, a "**Detailed" link
// line, or the parent bound's end. Returns [s, e) and the heading depth.
func findSubsection(lines []string, start, end int, label string) (int, int, int, bool) {
	s := -1
	depth := 0
	for i := start; i < end; i++ {
		m := headingRe.FindStringSubmatch(lines[i])
		if m != nil {
			level := len(m[1])
			title := strings.TrimSpace(m[2])
			if s == -1 {
				if strings.EqualFold(title, label) {
					s = i
					depth = level
				}
				continue
			}
			if level <= depth {
				return s, i, depth, true
			}
		}
		if s == -1 {
			continue
		}
		stripped := strings.TrimSpace(lines[i])
		if stripped == "---" || strings.HasPrefix(stripped, "**Detailed") {
			return s, i, depth, true
		}
	}
	if s != -1 {
		return s, end, depth, true
	}
	return 0, 0, 0, false
}

// managedLabels are the subsections the rewriter owns, in canonical
// document order. Parameters is user-authored but anchors insertion.
var managedLabels = []string{LabelParameters, LabelCurrentState, LabelStatistics, LabelRunHistory}

// ReplaceSection replaces the body of the named subsection within the
// given section bound, or inserts the subsection at its canonical
// position when absent. render receives the heading depth to emit
// (the existing subsection's depth, or the default for insertions).
// Everything outside the targeted subsection's own sub-bound is
// preserved byte for byte.
func ReplaceSection(lines []string, sec Section, label string, render func(depth int) []string) []string {
	if s, e, depth, ok := findSubsection(lines, sec.Start, sec.End, label); ok {
		body := render(depth)
		out := make([]string, 0, len(lines)-(e-s)+len(body)+1)
		out = append(out, lines[:s]...)
		out = append(out, body...)
		out = append(out, "")
		out = append(out, lines[e:]...)
		return out
	}

	insertAt := insertionPoint(lines, sec)
	body := render(defaultSubsectionDepth)

	out := make([]string, 0, len(lines)+len(body)+2)
	out = append(out, lines[:insertAt]...)
	if insertAt > 0 && strings.TrimSpace(lines[insertAt-1]) != "" {
		out = append(out, "")
	}
	out = append(out, body...)
	out = append(out, "")
	out = append(out, lines[insertAt:]...)
	return out
}

// insertionPoint picks the canonical slot for a missing subsection:
// after the last managed subsection already present, otherwise directly
// after the definition field block, before any trailing free-form
// notes.
func insertionPoint(lines []string, sec Section) int {
	at := -1
	for _, label := range managedLabels {
		if _, e, _, ok := findSubsection(lines, sec.Start, sec.End, label); ok && e > at {
			at = e
		}
	}
	if at >= 0 {
		return at
	}

	last := -1
	for i := sec.Start; i < sec.End; i++ {
		if commandRe.MatchString(lines[i]) || commandPlainRe.MatchString(lines[i]) || scheduleRe.MatchString(lines[i]) {
			last = i
		}
	}
	if last == -1 {
		return sec.End
	}
	// Skip the remainder of the definition list block.
	at = last + 1
	for at < sec.End && strings.HasPrefix(strings.TrimSpace(lines[at]), "- ") {
		at++
	}
	return at
}
