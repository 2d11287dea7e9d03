package viewer

import "strings"

// matchLabels maps each model marker name to a capture column, -1 when the
// capture has no matching label. Capture labels often carry a subject
// prefix ("Subject:RASI"), so the part after the last colon matches too.
// Returns nil when nothing matches at all.
func matchLabels(markerNames, captureLabels []string) []int {
	byLabel := make(map[string]int, len(captureLabels))
	for i, label := range captureLabels {
		key := normalizeLabel(label)
		if _, dup := byLabel[key]; !dup {
			byLabel[key] = i
		}
	}

	mapped := make([]int, len(markerNames))
	matched := false
	for i, name := range markerNames {
		col, ok := byLabel[normalizeLabel(name)]
		if !ok {
			col = -1
		} else {
			matched = true
		}
		mapped[i] = col
	}
	if !matched {
		return nil
	}
	return mapped
}

func normalizeLabel(label string) string {
	if i := strings.LastIndexByte(label, ':'); i >= 0 {
		label = label[i+1:]
	}
	return strings.ToUpper(strings.TrimSpace(label))
}
