// Package browser owns the single headless Chrome instance shared by the
// browser tools. All page actions go through Session, which serialises them
// onto one tab.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

const (
	defaultActionTimeout = 30 * time.Second
	typeWaitTimeout      = 3 * time.Second
	downloadTimeout      = 10 * time.Second
)

// ErrClosed is returned by actions on a closed Session.
var ErrClosed = errors.New("browser session closed")

// Options configures Open.
type Options struct {
	Headless bool
	ExecPath string // empty: let chromedp find Chrome
	Timeout  time.Duration
}

// Link is one anchor on the current page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Session is a running browser with one active tab.
type Session struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	closed  bool
}

// Open starts Chrome and returns a Session bound to its first tab.
// JavaScript dialogs opened by any page are accepted automatically so a stray
// alert() cannot freeze the session.
func Open(ctx context.Context, opts Options) (*Session, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug(fmt.Sprintf(format, args...), "component", "browser")
		}),
	)
	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	// First Run launches the browser process.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				if err := chromedp.Run(tabCtx, page.HandleJavaScriptDialog(true)); err != nil {
					slog.Warn("auto-accept dialog failed", "err", err)
				}
			}()
		}
	})

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}
	slog.Info("browser started", "headless", opts.Headless)
	return &Session{ctx: tabCtx, cancel: cancel, timeout: timeout}, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return nil
}

// run executes actions on the tab under the session lock. The action is
// bounded by d and by the caller's ctx.
func (s *Session) run(ctx context.Context, d time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	runCtx, cancel := context.WithTimeout(s.ctx, d)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and returns the HTTP status of the main document, or 0
// when the browser did not report one.
func (s *Session) Navigate(ctx context.Context, url string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return 0, err
	}
	if resp == nil {
		return 0, nil
	}
	return int(resp.Status), nil
}

// CurrentURL returns the address of the active page.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, s.timeout, chromedp.Location(&loc))
	return loc, err
}

// Back goes one entry back in history and returns the new URL.
func (s *Session) Back(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, s.timeout, chromedp.NavigateBack(), chromedp.Location(&loc))
	return loc, err
}

func (s *Session) Reload(ctx context.Context) error {
	return s.run(ctx, s.timeout, chromedp.Reload())
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, s.timeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// Type replaces the value of the matched input with text. The element must
// become visible within 3 seconds.
func (s *Session) Type(ctx context.Context, selector, text string, submit bool) error {
	if err := s.run(ctx, typeWaitTimeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("element %q not visible: %w", selector, err)
	}
	actions := []chromedp.Action{
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	}
	if submit {
		actions = append(actions, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery))
	}
	return s.run(ctx, s.timeout, actions...)
}

// Hover moves the mouse to the centre of the first matched element.
func (s *Session) Hover(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	return s.run(ctx, s.timeout,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(1)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			box, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
			if err != nil {
				return err
			}
			x, y := quadCenter(box.Content)
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}),
	)
}

func quadCenter(q dom.Quad) (float64, float64) {
	if len(q) < 8 {
		return 0, 0
	}
	var x, y float64
	for i := 0; i < 8; i += 2 {
		x += q[i]
		y += q[i+1]
	}
	return math.Round(x / 4), math.Round(y / 4)
}

// Scroll scrolls the window vertically by dy pixels (negative is up).
func (s *Session) Scroll(ctx context.Context, dy int) error {
	return s.run(ctx, s.timeout, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", dy), nil))
}

// Text returns the visible text of the page body.
func (s *Session) Text(ctx context.Context) (string, error) {
	var text string
	err := s.run(ctx, s.timeout, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return text, err
}

// Links returns every anchor with an href. When absolute is set, hrefs are
// resolved against the page URL.
func (s *Session) Links(ctx context.Context, absolute bool) ([]Link, error) {
	script := fmt.Sprintf(`Array.from(document.querySelectorAll("a[href]")).map(a => ({
		text: (a.innerText || "").trim(),
		href: %t ? a.href : a.getAttribute("href")
	}))`, absolute)
	var links []Link
	err := s.run(ctx, s.timeout, chromedp.Evaluate(script, &links))
	return links, err
}

// Elements returns the requested attributes of every element matching
// selector. "innerText" is read as a property, everything else as an
// attribute.
func (s *Session) Elements(ctx context.Context, selector string, attributes []string) ([]map[string]string, error) {
	if len(attributes) == 0 {
		attributes = []string{"innerText"}
	}
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(el => {
		const out = {};
		for (const name of %s) {
			const v = name === "innerText" ? el.innerText : el.getAttribute(name);
			if (v !== null && v !== undefined) out[name] = String(v).trim();
		}
		return out;
	})`, jsString(selector), jsStringArray(attributes))
	var out []map[string]string
	err := s.run(ctx, s.timeout, chromedp.Evaluate(script, &out))
	return out, err
}

// HTML returns the serialised document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, s.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Eval runs script in the page, awaiting promises, and returns the result
// rendered as text.
func (s *Session) Eval(ctx context.Context, script string) (string, error) {
	var obj *runtime.RemoteObject
	err := s.run(ctx, s.timeout, chromedp.Evaluate(script, &obj, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return "", err
	}
	return remoteObjectText(obj), nil
}

func remoteObjectText(obj *runtime.RemoteObject) string {
	switch {
	case obj == nil:
		return "None"
	case obj.Type == runtime.TypeUndefined:
		return "None"
	case len(obj.Value) > 0:
		return string(obj.Value)
	case obj.UnserializableValue != "":
		return string(obj.UnserializableValue)
	case obj.Description != "":
		return obj.Description
	}
	return string(obj.Type)
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, s.timeout, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// DownloadByClick clicks selector and waits up to 10 seconds for the download
// it triggers to finish. The file lands in dir under filename, or under the
// name the server suggested when filename is empty. Returns the saved path.
func (s *Session) DownloadByClick(ctx context.Context, selector, dir, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	type result struct {
		guid, suggested string
		err             error
	}
	var (
		once      sync.Once
		done      = make(chan result, 1)
		suggested sync.Map
	)

	listenCtx, stopListening := context.WithCancel(s.ctx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev any) {
		switch e := ev.(type) {
		case *cdpbrowser.EventDownloadWillBegin:
			suggested.Store(e.GUID, e.SuggestedFilename)
		case *cdpbrowser.EventDownloadProgress:
			switch e.State {
			case cdpbrowser.DownloadProgressStateCompleted:
				name, _ := suggested.Load(e.GUID)
				n, _ := name.(string)
				once.Do(func() { done <- result{guid: e.GUID, suggested: n} })
			case cdpbrowser.DownloadProgressStateCanceled:
				once.Do(func() { done <- result{err: errors.New("download canceled")} })
			}
		}
	})

	err := s.run(ctx, s.timeout,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return "", err
	}

	timer := time.NewTimer(downloadTimeout)
	defer timer.Stop()
	select {
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		name := filename
		if name == "" {
			name = r.suggested
		}
		if name == "" {
			name = r.guid
		}
		dst := filepath.Join(dir, filepath.Base(name))
		if err := os.Rename(filepath.Join(dir, r.guid), dst); err != nil {
			return "", fmt.Errorf("save download: %w", err)
		}
		return dst, nil
	case <-timer.C:
		return "", fmt.Errorf("no download finished within %v", downloadTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsStringArray(ss []string) string {
	b, _ := json.Marshal(ss)
	return string(b)
}
