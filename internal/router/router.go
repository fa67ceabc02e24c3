// Package router classifies model output: it splits off self-modification
// requests, detects memory directives, and scrubs tags before display.
package router

import (
	"regexp"
	"slices"
	"strings"
)

// Sentinels the model is instructed to emit.
const (
	EvolutionMarker = "_+_TaiEvolutionTransformer_+_"
	GlobalMemoryTag = "GlobalMemory"
	ForgetTag       = "Forget"
)

// DirectiveKind names a memory directive found in a response.
type DirectiveKind string

const (
	DirectiveRemember DirectiveKind = "remember"
	DirectiveForget   DirectiveKind = "forget"
)

// Directive is one memory tag region.
type Directive struct {
	Kind DirectiveKind
	Body string
}

var (
	rememberRe = tagPattern(GlobalMemoryTag)
	forgetRe   = tagPattern(ForgetTag)
	pairedRe   = regexp.MustCompile(`(?s)<[^>]+>.*?</[^>]+>`)
)

func tagPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)<` + name + `>(.*?)</` + name + `>`)
}

// Response is the classified result of one turn's model output.
type Response struct {
	// Visible is the scrubbed text shown to the user.
	Visible string
	// Raw is the follow-up text before scrubbing.
	Raw string
	// Evolve is set when the candidate reply carried EvolutionMarker.
	Evolve bool
	// CodePatch is the region code to apply when Evolve is set.
	CodePatch string
	// Directives lists memory tag regions in order of appearance.
	Directives []Directive
}

// UpdatesMemory reports whether the response asks for a global memory update.
func (r Response) UpdatesMemory() bool {
	return len(r.Directives) > 0
}

// Candidate is the first-pass reply after the evolution check.
type Candidate struct {
	Text   string
	Evolve bool
}

// SplitEvolution checks a candidate reply for EvolutionMarker. When present,
// the text after the first marker is returned trimmed; otherwise the reply is
// returned unchanged.
func SplitEvolution(reply string) Candidate {
	_, after, found := strings.Cut(reply, EvolutionMarker)
	if !found {
		return Candidate{Text: reply}
	}
	return Candidate{Text: strings.TrimSpace(after), Evolve: true}
}

// Directives returns every memory tag region in s.
func Directives(s string) []Directive {
	type hit struct {
		at int
		d  Directive
	}
	var hits []hit
	for _, m := range rememberRe.FindAllStringSubmatchIndex(s, -1) {
		hits = append(hits, hit{m[0], Directive{DirectiveRemember, strings.TrimSpace(s[m[2]:m[3]])}})
	}
	for _, m := range forgetRe.FindAllStringSubmatchIndex(s, -1) {
		hits = append(hits, hit{m[0], Directive{DirectiveForget, strings.TrimSpace(s[m[2]:m[3]])}})
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return a.at - b.at })
	out := make([]Directive, len(hits))
	for i, h := range hits {
		out[i] = h.d
	}
	return out
}

// Scrub removes every paired tag region and code fence from s. Unclosed tags
// are left as typed.
func Scrub(s string) string {
	s = pairedRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```xml", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// Classify builds the Response for a turn from the candidate and the
// follow-up text.
func Classify(c Candidate, codePatch, followUp string) Response {
	r := Response{
		Visible:    Scrub(followUp),
		Raw:        followUp,
		Evolve:     c.Evolve,
		Directives: Directives(followUp),
	}
	if c.Evolve {
		r.CodePatch = codePatch
	}
	return r
}
