package memory

import (
	"fmt"
	"strings"

	"github.com/rcliao/tai/internal/model"
)

// Format renders entries as a transcript for prompt inclusion.
func Format(entries []model.Entry, tier model.Tier) string {
	if len(entries) == 0 {
		if tier == model.TierGlobal {
			return NoGlobalMemory
		}
		return NoRestrictedMemory
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if tier == model.TierGlobal {
			lines = append(lines, fmt.Sprintf("%s: %s", e.Timestamp, orNA(e.Memory)))
			continue
		}
		lines = append(lines, fmt.Sprintf("[User: %s\nTai: %s\n | Timestamp: %s]",
			orNA(e.User), orNA(e.Tai), e.Timestamp))
	}
	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Recent keeps the newest entries whose combined formatted size fits in
// budget characters, in their stored order. A budget <= 0 keeps
// everything.
func Recent(entries []model.Entry, tier model.Tier, budget int) []model.Entry {
	if budget <= 0 {
		return entries
	}
	used := 0
	start := len(entries)
	for i := len(entries) - 1; i >= 0; i-- {
		n := len(Format(entries[i:i+1], tier)) + 1
		if used+n > budget {
			break
		}
		used += n
		start = i
	}
	return entries[start:]
}

// Search returns entries containing query (case-insensitive) in any field,
// newest first, capped at limit.
func Search(entries []model.Entry, query string, limit int) []model.Entry {
	if limit <= 0 {
		limit = 20
	}
	q := strings.ToLower(query)

	var out []model.Entry
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := entries[i]
		for _, field := range []string{e.Timestamp, e.Memory, e.User, e.Tai} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
