package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreagent/core/internal/browser"
	"github.com/coreagent/core/internal/shared/llmutils"
)

const (
	maxHTMLSource   = 5000
	defaultScrollPx = 800
	screenshotFile  = "screenshot.png"
)

// Browser is the page-automation surface the browser tools need.
// *browser.Session implements it.
type Browser interface {
	Navigate(ctx context.Context, url string) (int, error)
	CurrentURL(ctx context.Context) (string, error)
	Back(ctx context.Context) (string, error)
	Reload(ctx context.Context) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string, submit bool) error
	Hover(ctx context.Context, selector string) error
	Scroll(ctx context.Context, dy int) error
	Text(ctx context.Context) (string, error)
	Links(ctx context.Context, absolute bool) ([]browser.Link, error)
	Elements(ctx context.Context, selector string, attributes []string) ([]map[string]string, error)
	HTML(ctx context.Context) (string, error)
	Eval(ctx context.Context, script string) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	DownloadByClick(ctx context.Context, selector, dir, filename string) (string, error)
}

var _ Browser = (*browser.Session)(nil)

// actionTool adapts a single closure to the Tool interface. Errors returned
// by run become "Error: ..." text.
type actionTool struct {
	name        ToolName
	description string
	params      json.RawMessage
	run         func(ctx context.Context, args map[string]any) (string, error)
}

func (t *actionTool) Name() string                { return string(t.name) }
func (t *actionTool) Description() string         { return t.description }
func (t *actionTool) Parameters() json.RawMessage { return t.params }

func (t *actionTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	out, err := t.run(ctx, args)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	return out, nil
}

type noInput struct{}

type urlInput struct {
	URL string `json:"url" jsonschema_description:"Absolute URL to open"`
}

type selectorInput struct {
	Selector string `json:"selector" jsonschema_description:"CSS selector of the element"`
}

type typeInput struct {
	Selector string `json:"selector" jsonschema_description:"CSS selector for the input box"`
	Text     string `json:"text" jsonschema_description:"The text to type"`
	Submit   bool   `json:"submit,omitempty" jsonschema_description:"Press Enter after typing"`
}

type scrollInput struct {
	Direction string `json:"direction" jsonschema:"enum=down,enum=up" jsonschema_description:"'down' or 'up'"`
	Amount    int    `json:"amount,omitempty" jsonschema_description:"Pixels to scroll (default 800)"`
}

type hyperlinksInput struct {
	AbsoluteURLs bool `json:"absolute_urls,omitempty" jsonschema_description:"Resolve links against the page URL"`
}

type elementsInput struct {
	Selector   string   `json:"selector" jsonschema_description:"CSS selector of the elements"`
	Attributes []string `json:"attributes,omitempty" jsonschema_description:"Attributes to read (default innerText)"`
}

type evalInput struct {
	Script string `json:"script" jsonschema_description:"JavaScript code to execute"`
}

type downloadInput struct {
	Selector string `json:"selector" jsonschema_description:"CSS selector of the element that starts the download"`
	Filename string `json:"filename,omitempty" jsonschema_description:"Name to save the file under (default: server-suggested name)"`
}

func requireField(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// cleanScript strips markdown fences and a leading language tag the model
// sometimes wraps scripts in.
func cleanScript(script string) string {
	s := llmutils.StripCodeFences(script)
	s = strings.Trim(s, "`")
	for _, tag := range []string{"javascript", "js"} {
		if rest, ok := strings.CutPrefix(s, tag); ok && (rest == "" || rest[0] == '\n' || rest[0] == ' ' || rest[0] == ':') {
			s = strings.TrimLeft(rest, ": \n")
			break
		}
	}
	return strings.TrimSpace(s)
}

// NewBrowserTools returns every browser tool bound to b. Files produced by
// the tools are written under workDir.
func NewBrowserTools(b Browser, workDir string) []Tool {
	back := func(ctx context.Context, _ map[string]any) (string, error) {
		loc, err := b.Back(ctx)
		if err != nil {
			return "Unable to navigate back; no previous page in the history", nil
		}
		return fmt.Sprintf("Navigated back to the previous page with URL '%s'", loc), nil
	}

	return []Tool{
		&actionTool{
			name:        ToolNavigate,
			description: "Navigate the browser to the specified URL.",
			params:      paramsSchema[urlInput](),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := decodeArgs[urlInput](args)
				if err != nil {
					return "", err
				}
				if err := validateURL(in.URL); err != nil {
					return "", err
				}
				status, err := b.Navigate(ctx, in.URL)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Navigating to %s returned status code %d", in.URL, status), nil
			},
		},
		&actionTool{
			name:        ToolCurrentPage,
			description: "Return the URL of the current web page.",
			params:      paramsSchema[noInput](),
			run: func(ctx context.Context, _ map[string]any) (string, error) {
				return b.CurrentURL(ctx)
			},
		},
		&actionTool{
			name:        ToolPreviousPage,
			description: "Navigate back to the previous page in the browser history.",
			params:      paramsSchema[noInput](),
			run:         back,
		},
		&actionTool{
			name:        ToolGoBack,
			description: "Go back in history.",
			params:      paramsSchema[noInput](),
			run:         back,
		},
		&actionTool{
			name:        ToolReloadPage,
			description: "Reload the current page.",
			params:      paramsSchema[noInput](),
			run: func(ctx context.Context, _ map[string]any) (string, error) {
				if err := b.Reload(ctx); err != nil {
					return "", err
				}
				return "Success: Reloaded.", nil
			},
		},
		&actionTool{
			name:        ToolClickElement,
			description: "Click on an element with the given CSS selector.",
			params:      paramsSchema[selectorInput](),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := decodeArgs[selectorInput](args)
				if err != nil {
					return "", err
				}
				if err := requireField("selector", in.Selector); err != nil {
					return "", err
				}
				if err := b.Click(ctx, in.Selector); err != nil {
					return fmt.Sprintf("Unable to click on element '%s': %v", in.Selector, err), nil
				}
				return fmt.Sprintf("Clicked element '%s'", in.Selector), nil
			},
		},
		&actionTool{
			name:        ToolTypeInput,
			description: "Type text into search bars or forms.",
			params:      paramsSchema[typeInput](),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := decodeArgs[typeInput](args)
				if err != nil {
					return "", err
				}
				if err := requireField("selector", in.Selector); err != nil {
					return "", err
				}
				if err := b.Type(ctx, in.Selector, in.Text, in.Submit); err != nil {
					return "", err
				}
				return fmt.Sprintf("Success: Typed '%s'", in.Text), nil
			},
		},
		&actionTool{
			name:        ToolHoverElement,
			description: "Hover over an element.",
			params:      paramsSchema[selectorInput](),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := decodeArgs[selectorInput](args)
				if err != nil {
					return "", err
				}
				if err := requireField("selector", in.Selector); err != nil {
					return "", err
				}
				if err := b.Hover(ctx, in.Selector); err != nil {
					return "", err
				}
				return fmt.Sprintf("Success: Hovered %s", in.Selector), nil
			},
		},
		&actionTool{
			name:        ToolScrollPage,
			description: "Scroll the page.",
			params:      paramsSchema[scrollInput](),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := decodeArgs[scrollInput](args)
				if err != nil {
					return "", err
				}
				amount := in.Amount
				if amount <= 0 {
					amount = defaultScrollPx
				}
				dy := amount
				if in.Direction != "down" {
					in.Direction = "up"
					dy = -amount
				}
				if err := b.Scroll(ctx, dy); err != nil {
					return "", err
				}
				return fmt.Sprintf("Success: Scrolled %s", in.Direction), nil
			},
		},
		&actionTool{
			name:        ToolExtractText,
			description: "Extract all the text on the current webpage.",
			params:      paramsSchema[noInput](),
			run: func(ctx context.Context, _ map[string]any) (string, error) {
				return b.Text(ctx)
			},
		},
		&actionTool{
			name:        ToolExtractHyperlinks,
			description: "Extract all hyperlinks on the current webpage.",
			params:      paramsSchema[hyperlinksInput](),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := decodeArgs[hyperlinksInput](args)
				if err != nil {
					return "", err
				}
				links, err := b.Links(ctx, in.AbsoluteURLs)
				if err != nil {
					return "", err
				}
				seen := make(map[string]bool, len(links))
				hrefs := make([]string, 0, len(links))
				for _, l := range links {
					if !seen[l.Href] {
						seen[l.Href] = true
						hrefs = append(hrefs, l.Href)
					}
				}
				return toJSON(hrefs), nil
			},
		},
		&actionTool{
			name:        ToolGetElements,
			description: "Retrieve elements in the current web page matching the given CSS selector.",
			params:      paramsSchema[elementsInput](),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := decodeArgs[elementsInput](args)
				if err != nil {
					return "", err
				}
				if err := requireField("selector", in.Selector); err != nil {
					return "", err
				}
				els, err := b.Elements(ctx, in.Selector, in.Attributes)
				if err != nil {
					return "", err
				}
				return toJSON(els), nil
			},
		},
		&actionTool{
			name:        ToolGetHTMLSource,
			description: "Get the raw HTML of the current page (truncated).",
			params:      paramsSchema[noInput](),
			run: func(ctx context.Context, _ map[string]any) (string, error) {
				html, err := b.HTML(ctx)
				if err != nil {
					return "", err
				}
				if len(html) > maxHTMLSource {
					html = html[:maxHTMLSource]
				}
				return html, nil
			},
		},
		&actionTool{
			name:        ToolEvaluateJS,
			description: "Execute custom JavaScript in the current page.",
			params:      paramsSchema[evalInput](),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := decodeArgs[evalInput](args)
				if err != nil {
					return "", err
				}
				script := cleanScript(in.Script)
				if script == "" {
					return "", fmt.Errorf("script is required")
				}
				res, err := b.Eval(ctx, script)
				if err != nil {
					return fmt.Sprintf("Error executing JS: %v", err), nil
				}
				return "Success: JS Result: " + res, nil
			},
		},
		&actionTool{
			name:        ToolTakeScreenshot,
			description: "Save an image of the current page.",
			params:      paramsSchema[noInput](),
			run: func(ctx context.Context, _ map[string]any) (string, error) {
				png, err := b.Screenshot(ctx)
				if err != nil {
					return "", err
				}
				path := filepath.Join(workDir, screenshotFile)
				if err := os.WriteFile(path, png, 0o644); err != nil {
					return "", err
				}
				return "Success: Saved to " + path, nil
			},
		},
		&actionTool{
			name:        ToolDownloadViaClick,
			description: "Click a button or link that starts a download and save the file.",
			params:      paramsSchema[downloadInput](),
			run: func(ctx context.Context, args map[string]any) (string, error) {
				in, err := decodeArgs[downloadInput](args)
				if err != nil {
					return "", err
				}
				if err := requireField("selector", in.Selector); err != nil {
					return "", err
				}
				path, err := b.DownloadByClick(ctx, in.Selector, filepath.Join(workDir, downloadsDir), in.Filename)
				if err != nil {
					return "", err
				}
				return "Success: Saved to " + path, nil
			},
		},
	}
}
