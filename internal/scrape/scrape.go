// Package scrape pulls readable text out of links mentioned in a message.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/tai/internal/llm"
)

// Fetcher returns the HTML served at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Scraper finds links with a model and fetches their text.
type Scraper struct {
	finder  llm.Model
	fetcher Fetcher
	log     *zap.Logger
}

// New creates a scraper. finder extracts URLs from free text.
func New(finder llm.Model, fetcher Fetcher, log *zap.Logger) *Scraper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scraper{finder: finder, fetcher: fetcher, log: log}
}

// Scrape returns the text of every link in message, each as
// "\n# <url>\n<text>". It never fails: problems are reported inline in
// place of the text, and a message without links yields "".
func (s *Scraper) Scrape(ctx context.Context, message string) string {
	reply, err := s.finder.Generate(ctx, message)
	if err != nil {
		return fmt.Sprintf("Error finding links: %v", err)
	}
	urls, err := ParseLinks(reply)
	if err != nil {
		return fmt.Sprintf("Error parsing links: %v", err)
	}
	return s.fetchAll(ctx, urls)
}

// Page fetches one known URL, formatted like Scrape.
func (s *Scraper) Page(ctx context.Context, url string) string {
	return s.fetchAll(ctx, []string{url})
}

func (s *Scraper) fetchAll(ctx context.Context, urls []string) string {
	var b strings.Builder
	for _, u := range urls {
		page, err := s.fetcher.Fetch(ctx, u)
		if err != nil {
			s.log.Warn("fetch failed", zap.String("url", u), zap.Error(err))
			return fmt.Sprintf("Request error: %v", err)
		}
		text, err := ExtractText(page)
		if err != nil {
			return fmt.Sprintf("An error occurred: %v", err)
		}
		fmt.Fprintf(&b, "\n# %s\n%s", u, text)
		s.log.Debug("scraped", zap.String("url", u), zap.Int("chars", len(text)))
	}
	return b.String()
}

// ParseLinks decodes the link finder's reply: a JSON (or Python-style,
// single-quoted) list of strings, or "None".
func ParseLinks(reply string) ([]string, error) {
	s := llm.CleanCode(reply)
	if s == "" {
		return nil, nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(s), &urls); err == nil {
		return urls, nil
	}
	if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &urls); err != nil {
		return nil, fmt.Errorf("not a list of links: %q", s)
	}
	return urls, nil
}
