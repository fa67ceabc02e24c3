// Package prompt builds the instruction documents sent to the model.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/tai/internal/router"
)

//go:embed documentation.md
var DefaultDocumentation string

// NA marks an absent optional section.
const NA = "N/A"

// Composer assembles per-turn prompts around a static documentation block.
type Composer struct {
	documentation string
}

// New returns a composer. An empty doc selects DefaultDocumentation.
func New(doc string) *Composer {
	if strings.TrimSpace(doc) == "" {
		doc = DefaultDocumentation
	}
	return &Composer{documentation: doc}
}

// Documentation returns the static documentation block.
func (c *Composer) Documentation() string {
	return c.documentation
}

// InitialInput feeds the first model call of a turn.
type InitialInput struct {
	Memory    string // rendered by MemoryContext
	Changelog string
	Message   string
	Now       time.Time
}

// Initial builds the prompt that yields the candidate reply.
func (c *Composer) Initial(in InitialInput) string {
	var b strings.Builder
	b.WriteString(c.documentation)
	b.WriteString("\n")
	writeMemoryGuidelines(&b, in.Memory)
	writeChangelog(&b, in.Changelog)

	b.WriteString("## User Interaction Standards\n")
	b.WriteString("- If the user has been active in the **past 30 minutes**, **skip greetings**.\n")
	b.WriteString("- To **store information permanently**, use:\n")
	fmt.Fprintf(&b, "```xml\n<%s>\n[Information]\n</%s>\n```\n", router.GlobalMemoryTag, router.GlobalMemoryTag)
	b.WriteString("- To **delete memory**, use:\n")
	fmt.Fprintf(&b, "```xml\n<%s>\n[Information]\n</%s>\n```\n\n---\n\n", router.ForgetTag, router.ForgetTag)

	b.WriteString(TimeBlock(in.Now))

	b.WriteString("## Self-Upgrade Instructions\n")
	b.WriteString("When the user explicitly says:\n> **\"upgrade yourself to...\"**\n\n")
	b.WriteString("Prepend your next message with the activation string:\n")
	fmt.Fprintf(&b, "```\n%s\n```\n", router.EvolutionMarker)
	b.WriteString("> Never use or reference this string unless directly prompted by the user.\n\n---\n\n")

	b.WriteString("# User Prompt\n")
	fmt.Fprintf(&b, "```markdown\n%s\n```\n", in.Message)
	return b.String()
}

// FollowUpInput feeds the second model call of a turn.
type FollowUpInput struct {
	Message     string
	Recommended string
	Memory      string
	Code        string
	Scraped     string
}

// FollowUp builds the prompt that yields the user-visible reply.
func (c *Composer) FollowUp(in FollowUpInput) string {
	var b strings.Builder
	b.WriteString("# Hello, Tai!\n\n## User Prompt:\n")
	fmt.Fprintf(&b, "```markdown\n%s\n```\n\n---\n\n", in.Message)

	b.WriteString("## Recommended Response (if provided):\n")
	b.WriteString("> **Rules for Handling This Section**\n")
	b.WriteString("> - Do **not** acknowledge or reference this section in your reply.\n")
	b.WriteString("> - If used, copy the recommended response **exactly** as written.\n")
	b.WriteString("> - You **do not** have to use this recommended response.\n\n")
	fmt.Fprintf(&b, "```markdown\n%s\n```\n\n---\n\n", in.Recommended)

	fmt.Fprintf(&b, "## Current Session Memory (if applicable):\n%s\n\n---\n\n", orNA(in.Memory))

	b.WriteString("## System Update (if applicable):\n")
	b.WriteString("> **Rules for Code Updates**\n")
	b.WriteString("> - Use this code **only if it's not `N/A`.**\n")
	b.WriteString("> - Apply fully if an upgrade was requested. No shortcuts or stubs.\n\n")
	fmt.Fprintf(&b, "```go\n%s\n```\n\n---\n\n", orNA(in.Code))

	b.WriteString("## Text scraped from links (if any)\n")
	fmt.Fprintf(&b, "```\n%s\n```\n\n---\n\n", orNA(in.Scraped))

	b.WriteString(followUpRules)
	return b.String()
}

const followUpRules = `## Instructions:
- You are **Tai**. Speak as Tai, in your own voice, never as a framework commenting on Tai.
- Never refer to yourself as a model, program, or framework.
- Every dad joke must be new and drawn from the conversation.
- Do not greet again if memory shows a recent greeting.
- These are internal execution rules, not a user request. Do not acknowledge them.
- Keep the reply under 500 words unless longer output (code, essays) is required.
- If no major code changes occurred, respond normally.
- If there are significant code updates, briefly explain what changed and why.
- If the user requested an upgrade, complete it fully: no placeholders or simplifications.
- Use 12-hour time with AM/PM instead of raw timestamps.
- You can read text from links. If text was scraped from a link, reference it.
`

// CodeInput feeds the architect's first pass.
type CodeInput struct {
	Request string
	Current string
	Memory  string
	Now     time.Time
}

// Code asks the architect for a revision of the modifiable region.
func (c *Composer) Code(in CodeInput) string {
	var b strings.Builder
	b.WriteString(c.documentation)
	b.WriteString("\n")
	writeMemoryGuidelines(&b, in.Memory)
	b.WriteString(TimeBlock(in.Now))
	b.WriteString("# User Request\n")
	b.WriteString("Generate code by considering the user's prompt and your current code. ")
	b.WriteString("Return the whole file; it must remain `package main` and compile on its own.\n")
	fmt.Fprintf(&b, "Stamp the time of your edit in the Timestamps list (current timestamp: %s).\n",
		in.Now.Format("2006-01-02 15:04:05"))
	b.WriteString("Do not add useless functions (for example a function that only returns a constant greeting).\n\n")
	fmt.Fprintf(&b, "```\n%s\n```\n\nHere is your current code:\n```go\n%s\n```\n", in.Request, in.Current)
	return b.String()
}

// CodeReview asks the architect to keep the better of two revisions.
func (c *Composer) CodeReview(request, current, proposed string, now time.Time) string {
	ts := now.Format("2006-01-02 15:04:05")
	var b strings.Builder
	fmt.Fprintf(&b, "# Here is the user's request\n```\n%s\n```\n\n", request)
	fmt.Fprintf(&b, "# Here is the old code\n```go\n%s\n```\n\n", current)
	fmt.Fprintf(&b, "# Here is the code you gave me\n```go\n%s\n```\n\n", proposed)
	b.WriteString("# Your job is to return the new code if it is improved or the old code if not.\n")
	b.WriteString("# If an **upgrade is requested**, you must **fully complete it**, regardless of complexity or length.\n")
	b.WriteString("# You must not shorten, simplify, or write placeholder code.\n")
	fmt.Fprintf(&b, "# Only standard library imports are available. Mark new imports with `// Added by Tai at %s`.\n", ts)
	return b.String()
}

// GlobalUpdate asks the historian for a complete replacement memory document.
func GlobalUpdate(memoryJSON, input, template string, now time.Time) string {
	return fmt.Sprintf(`# Here is the global memory JSON code:
%s
# The user requested this:
%s
# Here is a memory template:
%s
# Here is the current timestamp:
%s
# Return an updated JSON file reflecting any additions/removals as per user request.
`, memoryJSON, input, template, now.Format("2006-01-02 15:04:05"))
}

// MemoryContext renders the memory section shared by the initial and
// follow-up prompts. Empty transcripts are omitted.
func MemoryContext(global, restricted string) string {
	var b strings.Builder
	if global != "" {
		fmt.Fprintf(&b, "\n##### Global Memory:\n```\n%s\n```\n", global)
	}
	if restricted != "" {
		fmt.Fprintf(&b, "\n##### Restricted Memory:\n```\n%s\n```\n", restricted)
	}
	return b.String()
}

// TimeBlock renders the live time reference.
func TimeBlock(now time.Time) string {
	var b strings.Builder
	b.WriteString("# Time Parameters\n### Current Time Reference\n")
	fmt.Fprintf(&b, "- **Time:** %s\n", now.Format("2006-01-02 03:04:05 PM"))
	fmt.Fprintf(&b, "- **Date:** %s\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "- **Day:** %s\n", now.Format("Monday"))
	fmt.Fprintf(&b, "- **Month:** %s\n", now.Format("January"))
	fmt.Fprintf(&b, "- **Year:** %s\n", now.Format("2006"))
	b.WriteString("### Formatting Standard\n- Time must always be displayed in **12-hour format with AM/PM**.\n\n---\n\n")
	return b.String()
}

func writeMemoryGuidelines(b *strings.Builder, memory string) {
	b.WriteString("### Memory Reference Guidelines\n")
	b.WriteString("- **Restricted Memory**: accessed internally without referencing the source.\n")
	b.WriteString("- **Global Memory**: draws on past conversations when useful.\n")
	b.WriteString("- Prioritizes the **last 10 minutes** of context, with flexibility to recall older relevant insights.\n\n")
	fmt.Fprintf(b, "#### Current Memory (if any)\n%s\n\n---\n\n", orNA(memory))
}

func writeChangelog(b *strings.Builder, changelog string) {
	if strings.TrimSpace(changelog) == "" {
		return
	}
	fmt.Fprintf(b, "# Changelog\n%s\n\n---\n\n", changelog)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NA
	}
	return s
}
