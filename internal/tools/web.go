package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const (
	webUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36"
	maxRedirects    = 5
	tavilySearchURL = "https://api.tavily.com/search"
	downloadsDir    = "downloads"
)

// validateURL checks that url is http(s) with a valid domain.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing domain in URL")
	}
	return nil
}

func newWebClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// ─── web_search ──────────────────────────────────────────────────────────────

type webSearchInput struct {
	Query string `json:"query" jsonschema_description:"Search query"`
	Count int    `json:"count,omitempty" jsonschema_description:"Number of results (1-10)" jsonschema:"minimum=1,maximum=10"`
}

var webSearchSchema = paramsSchema[webSearchInput]()

// WebSearchTool searches the web using the Tavily API.
type WebSearchTool struct {
	apiKey     string
	maxResults int
	endpoint   string
	httpClient *http.Client
}

// NewWebSearchTool creates a WebSearchTool. maxResults defaults to 5.
func NewWebSearchTool(apiKey string, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearchTool{
		apiKey:     apiKey,
		maxResults: maxResults,
		endpoint:   tavilySearchURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *WebSearchTool) Name() string { return string(ToolWebSearch) }
func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Returns titles, URLs, and snippets."
}
func (t *WebSearchTool) Parameters() json.RawMessage { return webSearchSchema }

func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	if t.apiKey == "" {
		return "Error: TAVILY_API_KEY not configured (tools.web.search.apiKey)", nil
	}
	in, err := decodeArgs[webSearchInput](params)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if in.Query == "" {
		return "Error: query is required", nil
	}

	n := t.maxResults
	if in.Count > 0 {
		n = in.Count
	}
	n = max(1, min(n, 10))

	body, _ := json.Marshal(map[string]any{
		"api_key":     t.apiKey,
		"query":       in.Query,
		"max_results": n,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Sprintf("Error: search failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil
	}

	var data struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Sprintf("Error parsing response: %v", err), nil
	}

	if len(data.Results) == 0 {
		return fmt.Sprintf("No results for: %s", in.Query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Results for: %s\n\n", in.Query)
	for i, item := range data.Results {
		if i >= n {
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s", i+1, item.Title, item.URL)
		if item.Content != "" {
			sb.WriteString("\n   " + item.Content)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ─── fetch_page ──────────────────────────────────────────────────────────────

type fetchPageInput struct {
	URL         string `json:"url" jsonschema_description:"URL to fetch"`
	ExtractMode string `json:"extractMode,omitempty" jsonschema:"enum=markdown,enum=text" jsonschema_description:"Output format (default markdown)"`
	MaxChars    int    `json:"maxChars,omitempty" jsonschema:"minimum=100" jsonschema_description:"Maximum characters to return"`
}

var fetchPageSchema = paramsSchema[fetchPageInput]()

// FetchPageTool fetches a URL over HTTP and extracts readable content.
type FetchPageTool struct {
	maxChars   int
	httpClient *http.Client
}

// NewFetchPageTool creates a FetchPageTool. maxChars defaults to 50000.
func NewFetchPageTool(maxChars int) *FetchPageTool {
	if maxChars <= 0 {
		maxChars = 50000
	}
	return &FetchPageTool{maxChars: maxChars, httpClient: newWebClient(30 * time.Second)}
}

func (t *FetchPageTool) Name() string { return string(ToolFetchPage) }
func (t *FetchPageTool) Description() string {
	return "Fetch a URL without the browser and extract readable content (HTML → markdown/text)."
}
func (t *FetchPageTool) Parameters() json.RawMessage { return fetchPageSchema }

func (t *FetchPageTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	in, err := decodeArgs[fetchPageInput](params)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if in.URL == "" {
		return "Error: url is required", nil
	}
	fail := func(msg string) (string, error) {
		out, _ := json.Marshal(map[string]any{"error": msg, "url": in.URL})
		return string(out), nil
	}

	if err := validateURL(in.URL); err != nil {
		return fail(fmt.Sprintf("URL validation failed: %v", err))
	}
	extractMode := in.ExtractMode
	if extractMode == "" {
		extractMode = "markdown"
	}
	maxChars := t.maxChars
	if in.MaxChars > 0 {
		maxChars = in.MaxChars
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
	if err != nil {
		return fail(err.Error())
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fail(err.Error())
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(err.Error())
	}

	ctype := resp.Header.Get("Content-Type")
	var text, extractor string

	switch {
	case strings.Contains(ctype, "application/json"):
		var jsonData any
		if err := json.Unmarshal(bodyBytes, &jsonData); err == nil {
			formatted, _ := json.MarshalIndent(jsonData, "", "  ")
			text = string(formatted)
		} else {
			text = string(bodyBytes)
		}
		extractor = "json"

	case strings.Contains(ctype, "text/html") || isHTMLPrefix(bodyBytes):
		parsedURL, _ := url.Parse(in.URL)
		article, err := readability.FromReader(bytes.NewReader(bodyBytes), parsedURL)
		if err == nil {
			if extractMode == "markdown" {
				text = htmlToMarkdown(article.Content)
			} else {
				text = stripHTMLTags(article.Content)
			}
			if article.Title != "" {
				text = "# " + article.Title + "\n\n" + text
			}
		} else {
			text = stripHTMLTags(string(bodyBytes))
		}
		extractor = "readability"

	default:
		text = string(bodyBytes)
		extractor = "raw"
	}

	truncated := len(text) > maxChars
	if truncated {
		text = text[:maxChars]
	}

	out, _ := json.Marshal(map[string]any{
		"url":       in.URL,
		"finalUrl":  resp.Request.URL.String(),
		"status":    resp.StatusCode,
		"extractor": extractor,
		"truncated": truncated,
		"length":    len(text),
		"text":      text,
	})
	return string(out), nil
}

func isHTMLPrefix(b []byte) bool {
	prefix := strings.ToLower(strings.TrimSpace(string(b[:min(256, len(b))])))
	return strings.HasPrefix(prefix, "<!doctype") || strings.HasPrefix(prefix, "<html")
}

// ─── save_file_from_url ──────────────────────────────────────────────────────

type saveFromURLInput struct {
	URL      string `json:"url" jsonschema_description:"Direct URL of the file"`
	Filename string `json:"filename" jsonschema_description:"Name to save the file under"`
}

var saveFromURLSchema = paramsSchema[saveFromURLInput]()

// SaveFileFromURLTool downloads a direct link into <workspace>/downloads.
type SaveFileFromURLTool struct {
	dir        string
	httpClient *http.Client
}

func NewSaveFileFromURLTool(workspace string) *SaveFileFromURLTool {
	return &SaveFileFromURLTool{
		dir:        filepath.Join(workspace, downloadsDir),
		httpClient: newWebClient(5 * time.Minute),
	}
}

func (t *SaveFileFromURLTool) Name() string                { return string(ToolSaveFileFromURL) }
func (t *SaveFileFromURLTool) Description() string         { return "Download a file from a direct URL." }
func (t *SaveFileFromURLTool) Parameters() json.RawMessage { return saveFromURLSchema }

func (t *SaveFileFromURLTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	in, err := decodeArgs[saveFromURLInput](params)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if err := validateURL(in.URL); err != nil {
		return "Error: " + err.Error(), nil
	}
	name := filepath.Base(filepath.Clean("/" + in.Filename))
	if name == "/" || name == "." {
		return "Error: filename is required", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Sprintf("Error: %d %s for url: %s", resp.StatusCode, http.StatusText(resp.StatusCode), in.URL), nil
	}

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "Error: " + err.Error(), nil
	}
	dst := filepath.Join(t.dir, name)
	f, err := os.Create(dst)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dst)
		return "Error: " + err.Error(), nil
	}
	if err := f.Close(); err != nil {
		return "Error: " + err.Error(), nil
	}
	return fmt.Sprintf("Success: Saved to %s", dst), nil
}

// ─── HTML → text/markdown helpers ────────────────────────────────────────────

var (
	reScript    = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle     = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reTags      = regexp.MustCompile(`<[^>]+>`)
	reSpaces    = regexp.MustCompile(`[ \t]+`)
	reNewlines  = regexp.MustCompile(`\n{3,}`)
	reLinks     = regexp.MustCompile(`(?is)<a\s+[^>]*href=["']([^"']+)["'][^>]*>([\s\S]*?)</a>`)
	reHeadings  = regexp.MustCompile(`(?is)<h([1-6])[^>]*>([\s\S]*?)</h[1-6]>`)
	reListItems = regexp.MustCompile(`(?is)<li[^>]*>([\s\S]*?)</li>`)
	reBlockEnd  = regexp.MustCompile(`(?is)</(p|div|section|article)>`)
	reLineBreak = regexp.MustCompile(`(?is)<(br|hr)\s*/?>`)
)

// stripHTMLTags removes all HTML tags and normalizes whitespace.
func stripHTMLTags(text string) string {
	text = reScript.ReplaceAllString(text, "")
	text = reStyle.ReplaceAllString(text, "")
	text = reTags.ReplaceAllString(text, "")
	return normalizeWhitespace(text)
}

// htmlToMarkdown converts HTML to a simple markdown representation.
func htmlToMarkdown(htmlText string) string {
	text := reLinks.ReplaceAllStringFunc(htmlText, func(m string) string {
		parts := reLinks.FindStringSubmatch(m)
		return fmt.Sprintf("[%s](%s)", stripHTMLTags(parts[2]), parts[1])
	})
	text = reHeadings.ReplaceAllStringFunc(text, func(m string) string {
		parts := reHeadings.FindStringSubmatch(m)
		level := int(parts[1][0] - '0')
		return fmt.Sprintf("\n%s %s\n", strings.Repeat("#", level), stripHTMLTags(parts[2]))
	})
	text = reListItems.ReplaceAllStringFunc(text, func(m string) string {
		return "\n- " + stripHTMLTags(reListItems.FindStringSubmatch(m)[1])
	})
	text = reBlockEnd.ReplaceAllString(text, "\n\n")
	text = reLineBreak.ReplaceAllString(text, "\n")
	return stripHTMLTags(text)
}

func normalizeWhitespace(text string) string {
	text = reSpaces.ReplaceAllString(text, " ")
	text = reNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
