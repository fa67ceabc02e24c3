package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rcliao/tai/internal/router"
)

var testNow = time.Date(2025, 3, 4, 15, 4, 5, 0, time.UTC)

func TestNewDefaultsDocumentation(t *testing.T) {
	assert.Equal(t, DefaultDocumentation, New("").Documentation())
	assert.Equal(t, "custom", New("custom").Documentation())
	assert.NotEmpty(t, DefaultDocumentation)
}

func TestInitial(t *testing.T) {
	c := New("DOC")
	got := c.Initial(InitialInput{
		Memory:    MemoryContext("g", "r"),
		Changelog: "v2: new things",
		Message:   "hello tai",
		Now:       testNow,
	})

	assert.True(t, strings.HasPrefix(got, "DOC\n"))
	assert.Contains(t, got, router.EvolutionMarker)
	assert.Contains(t, got, "<GlobalMemory>")
	assert.Contains(t, got, "</Forget>")
	assert.Contains(t, got, "##### Global Memory:\n```\ng\n```")
	assert.Contains(t, got, "# Changelog\nv2: new things")
	assert.True(t, strings.HasSuffix(got, "```markdown\nhello tai\n```\n"))
}

func TestInitialWithoutChangelogOrMemory(t *testing.T) {
	got := New("DOC").Initial(InitialInput{Message: "m", Now: testNow})
	assert.NotContains(t, got, "# Changelog")
	assert.Contains(t, got, "#### Current Memory (if any)\nN/A")
}

func TestFollowUpNAFallbacks(t *testing.T) {
	got := New("").FollowUp(FollowUpInput{Message: "q", Recommended: "r"})
	assert.Contains(t, got, "```go\nN/A\n```")
	assert.Contains(t, got, "## Text scraped from links (if any)\n```\nN/A\n```")
	assert.Contains(t, got, "```markdown\nr\n```")

	got = New("").FollowUp(FollowUpInput{Message: "q", Code: "package main", Scraped: "# u\ntext"})
	assert.Contains(t, got, "```go\npackage main\n```")
	assert.Contains(t, got, "# u\ntext")
}

func TestCodePrompts(t *testing.T) {
	c := New("DOC")
	code := c.Code(CodeInput{Request: "add a joke", Current: "package main", Now: testNow})
	assert.Contains(t, code, "add a joke")
	assert.Contains(t, code, "```go\npackage main\n```")
	assert.Contains(t, code, "2025-03-04 15:04:05")

	review := c.CodeReview("add a joke", "old", "new", testNow)
	assert.Contains(t, review, "# Here is the old code\n```go\nold\n```")
	assert.Contains(t, review, "# Here is the code you gave me\n```go\nnew\n```")
	assert.Contains(t, review, "Added by Tai at 2025-03-04 15:04:05")
}

func TestGlobalUpdate(t *testing.T) {
	got := GlobalUpdate("[]", "remember tea", "TEMPLATE", testNow)
	assert.Contains(t, got, "# Here is the global memory JSON code:\n[]\n")
	assert.Contains(t, got, "# The user requested this:\nremember tea\n")
	assert.Contains(t, got, "# Here is a memory template:\nTEMPLATE\n")
	assert.Contains(t, got, "# Here is the current timestamp:\n2025-03-04 15:04:05\n")
}

func TestMemoryContext(t *testing.T) {
	assert.Empty(t, MemoryContext("", ""))
	got := MemoryContext("", "r")
	assert.NotContains(t, got, "Global Memory")
	assert.Contains(t, got, "##### Restricted Memory:\n```\nr\n```")
}

func TestTimeBlock(t *testing.T) {
	got := TimeBlock(testNow)
	assert.Contains(t, got, "- **Time:** 2025-03-04 03:04:05 PM")
	assert.Contains(t, got, "- **Day:** Tuesday")
	assert.Contains(t, got, "- **Month:** March")
	assert.Contains(t, got, "- **Year:** 2025")
}
