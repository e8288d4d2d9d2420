package tools

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ─── web_search ──────────────────────────────────────────────────────────────

func TestWebSearch_Tavily(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"title":"Go","url":"https://go.dev","content":"The Go language"},
			{"title":"Tour","url":"https://go.dev/tour","content":""}
		]}`))
	}))
	defer srv.Close()

	tool := NewWebSearchTool("tvly-key", 5)
	tool.endpoint = srv.URL

	out := run(t, tool, map[string]any{"query": "golang", "count": 2.0})
	if got["api_key"] != "tvly-key" || got["query"] != "golang" || got["max_results"] != 2.0 {
		t.Errorf("request body = %v", got)
	}
	if !strings.Contains(out, "1. Go\n   https://go.dev\n   The Go language") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "2. Tour") {
		t.Errorf("second result missing: %q", out)
	}
}

func TestWebSearch_NoKey(t *testing.T) {
	out := run(t, NewWebSearchTool("", 5), map[string]any{"query": "x"})
	if !strings.HasPrefix(out, "Error:") {
		t.Errorf("got %q", out)
	}
}

func TestWebSearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	tool := NewWebSearchTool("k", 5)
	tool.endpoint = srv.URL

	out := run(t, tool, map[string]any{"query": "x"})
	if !strings.Contains(out, "HTTP 429") {
		t.Errorf("got %q", out)
	}
}

// ─── fetch_page ──────────────────────────────────────────────────────────────

func TestFetchPage_ReadableHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!doctype html><html><head><title>Hello Page</title></head><body>
			<article><h1>Hello Page</h1>
			<p>This is a paragraph with enough words to count as readable content for the extractor.
			It keeps going so the readability scorer treats it as the main article body.</p>
			<p>A second paragraph adds more body text. More text, more commas, more content, better score.</p>
			</article></body></html>`))
	}))
	defer srv.Close()

	out := run(t, NewFetchPageTool(0), map[string]any{"url": srv.URL, "extractMode": "text"})
	var res map[string]any
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if res["extractor"] != "readability" || res["status"] != 200.0 {
		t.Errorf("result = %v", res)
	}
	if !strings.Contains(res["text"].(string), "second paragraph") {
		t.Errorf("text = %q", res["text"])
	}
}

func TestFetchPage_RejectsNonHTTP(t *testing.T) {
	out := run(t, NewFetchPageTool(0), map[string]any{"url": "file:///etc/passwd"})
	if !strings.Contains(out, "URL validation failed") {
		t.Errorf("got %q", out)
	}
}

func TestFetchPage_Truncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("a", 500)))
	}))
	defer srv.Close()

	out := run(t, NewFetchPageTool(0), map[string]any{"url": srv.URL, "maxChars": 100.0})
	var res map[string]any
	_ = json.Unmarshal([]byte(out), &res)
	if res["truncated"] != true || res["length"] != 100.0 {
		t.Errorf("result = %v", res)
	}
}

// ─── save_file_from_url ──────────────────────────────────────────────────────

func TestSaveFileFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "Mozilla/5.0" {
			t.Errorf("user agent = %q", ua)
		}
		_, _ = w.Write([]byte("PDFDATA"))
	}))
	defer srv.Close()

	ws := t.TempDir()
	out := run(t, NewSaveFileFromURLTool(ws), map[string]any{"url": srv.URL + "/f.pdf", "filename": "../report.pdf"})
	want := filepath.Join(ws, "downloads", "report.pdf")
	if out != "Success: Saved to "+want {
		t.Fatalf("got %q", out)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "PDFDATA" {
		t.Errorf("file = %q, %v", data, err)
	}
}

func TestSaveFileFromURL_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	out := run(t, NewSaveFileFromURLTool(t.TempDir()), map[string]any{"url": srv.URL, "filename": "x"})
	if !strings.HasPrefix(out, "Error: 404") {
		t.Errorf("got %q", out)
	}
}
