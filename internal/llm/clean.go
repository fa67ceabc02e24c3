package llm

import "strings"

// CleanJSON strips a markdown fence from a JSON reply and makes sure the
// result opens as a list.
func CleanJSON(s string) string {
	s = stripFence(s)
	if !strings.HasPrefix(s, "[") {
		s = "[" + s
	}
	return s
}

// CleanCode strips a markdown fence from a code reply. A reply of "None"
// means no code and yields "".
func CleanCode(s string) string {
	s = stripFence(s)
	if strings.EqualFold(s, "none") {
		return ""
	}
	return s
}

// stripFence removes an opening ``` line (with any language tag) and a
// closing ``` from s.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if _, rest, ok := strings.Cut(s, "\n"); ok {
			s = rest
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
