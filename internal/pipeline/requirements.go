package pipeline

import "strings"

// parseRequirements pulls individual requirements out of an LLM extraction
// response. Only numbered or bulleted lines count; decoration around the
// requirement text is stripped.
func parseRequirements(text string) []string {
	var requirements []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "-") && (line[0] < '0' || line[0] > '9') {
			continue
		}
		req := strings.TrimSpace(strings.TrimLeft(line, "0123456789.-) "))
		if req != "" {
			requirements = append(requirements, req)
		}
	}
	return requirements
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
