package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/tai/internal/llm"
)

func finder(reply string) llm.Model {
	return llm.Func(func(context.Context, string) (string, error) { return reply, nil })
}

func TestExtractText(t *testing.T) {
	got, err := ExtractText(`<html><head><title>T</title><style>p{}</style></head>
<body><script>var x = 1;</script><p>Hello,
   world</p><div>again</div></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "T Hello, world again", got)
}

func TestParseLinks(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
		err   bool
	}{
		{"none", "None", nil, false},
		{"json", `["https://a.example", "https://b.example"]`, []string{"https://a.example", "https://b.example"}, false},
		{"python", `['https://a.example']`, []string{"https://a.example"}, false},
		{"fenced", "```json\n[\"https://a.example\"]\n```", []string{"https://a.example"}, false},
		{"garbage", "here you go: a.example", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLinks(tt.reply)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			fmt.Fprint(w, "<p>first page</p>")
		case "/b":
			fmt.Fprint(w, "<p>second <b>page</b></p>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	reply := fmt.Sprintf(`["%s/a", "%s/b"]`, srv.URL, srv.URL)
	s := New(finder(reply), NewHTTPFetcher(), nil)

	got := s.Scrape(context.Background(), "read these")
	want := fmt.Sprintf("\n# %s/a\nfirst page\n# %s/b\nsecond page", srv.URL, srv.URL)
	assert.Equal(t, want, got)
}

func TestScrapeNoLinks(t *testing.T) {
	s := New(finder("None"), NewHTTPFetcher(), nil)
	assert.Empty(t, s.Scrape(context.Background(), "hello"))
}

func TestScrapeErrorsInline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := New(finder(fmt.Sprintf(`["%s/missing"]`, srv.URL)), NewHTTPFetcher(), nil)
	got := s.Scrape(context.Background(), "read")
	assert.Contains(t, got, "Request error: 404 Not Found")

	s = New(finder("not a list"), NewHTTPFetcher(), nil)
	assert.Contains(t, s.Scrape(context.Background(), "read"), "Error parsing links")

	s = New(llm.Func(func(context.Context, string) (string, error) {
		return "", errors.New("quota")
	}), NewHTTPFetcher(), nil)
	assert.Equal(t, "Error finding links: quota", s.Scrape(context.Background(), "read"))
}

func TestPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<h1>Changelog</h1><ul><li>v2</li></ul>")
	}))
	defer srv.Close()

	s := New(finder("None"), NewHTTPFetcher(), nil)
	assert.Equal(t, fmt.Sprintf("\n# %s\nChangelog v2", srv.URL), s.Page(context.Background(), srv.URL))
}
