// Package desktop drives windows, the keyboard and screen capture on the
// host by shelling out to the platform's own tooling.
//
//	windows: powershell.exe
//	darwin:  osascript, open, screencapture
//	linux:   wmctrl, xdotool, xdg-open, import (ImageMagick)
package desktop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Action is a window operation.
type Action string

const (
	Minimize Action = "minimize"
	Maximize Action = "maximize"
	Restore  Action = "restore"
	Close    Action = "close"
	Focus    Action = "focus"
)

// ParseAction validates a model-supplied action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Minimize, Maximize, Restore, Close, Focus:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// ErrNoWindow is returned when no window title contains the requested text.
var ErrNoWindow = errors.New("no matching window")

// ErrUnsupported is returned for operations the host platform cannot do.
var ErrUnsupported = errors.New("not supported on this platform")

// Runner executes one external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg != "" {
			return msg, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.TrimSpace(out.String()), nil
}

// Controller is the process-wide handle on the desktop. Calls are
// serialised: two tools must not fight over focus or the keyboard.
type Controller struct {
	mu     sync.Mutex
	goos   string
	runner Runner
}

// New returns a Controller for the current OS using ExecRunner.
func New() *Controller {
	return NewWithRunner(runtime.GOOS, ExecRunner{})
}

// NewWithRunner returns a Controller for goos that runs commands via r.
func NewWithRunner(goos string, r Runner) *Controller {
	return &Controller{goos: goos, runner: r}
}

// Close releases the controller. It holds no OS resources today.
func (c *Controller) Close() error { return nil }

// Window applies action to the first window whose title contains title and
// returns that window's full title.
func (c *Controller) Window(ctx context.Context, title string, action Action) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.goos {
	case "windows":
		return c.windowWindows(ctx, title, action)
	case "darwin":
		return c.windowDarwin(ctx, title, action)
	default:
		return c.windowLinux(ctx, title, action)
	}
}

func (c *Controller) windowLinux(ctx context.Context, title string, action Action) (string, error) {
	out, err := c.runner.Run(ctx, "wmctrl", "-l")
	if err != nil {
		return "", err
	}
	id, full := "", ""
	for _, line := range strings.Split(out, "\n") {
		// <id> <desktop> <host> <title...>
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		t := strings.Join(fields[3:], " ")
		if strings.Contains(strings.ToLower(t), strings.ToLower(title)) {
			id, full = fields[0], t
			break
		}
	}
	if id == "" {
		return "", ErrNoWindow
	}

	switch action {
	case Minimize:
		_, err = c.runner.Run(ctx, "xdotool", "windowminimize", id)
	case Maximize:
		_, err = c.runner.Run(ctx, "wmctrl", "-i", "-r", id, "-b", "add,maximized_vert,maximized_horz")
	case Restore:
		_, err = c.runner.Run(ctx, "wmctrl", "-i", "-r", id, "-b", "remove,maximized_vert,maximized_horz")
		if err == nil {
			_, err = c.runner.Run(ctx, "wmctrl", "-i", "-a", id)
		}
	case Close:
		_, err = c.runner.Run(ctx, "wmctrl", "-i", "-c", id)
	case Focus:
		_, err = c.runner.Run(ctx, "wmctrl", "-i", "-a", id)
	}
	return full, err
}

func (c *Controller) windowDarwin(ctx context.Context, title string, action Action) (string, error) {
	var body string
	switch action {
	case Minimize:
		body = `set value of attribute "AXMinimized" of w to true`
	case Restore:
		body = `set value of attribute "AXMinimized" of w to false`
	case Maximize:
		body = `set value of attribute "AXFullScreen" of w to true`
	case Close:
		body = `click (first button of w whose subrole is "AXCloseButton")`
	case Focus:
		body = `perform action "AXRaise" of w
			set frontmost of p to true`
	}
	script := fmt.Sprintf(`tell application "System Events"
	repeat with p in (processes whose background only is false)
		repeat with w in windows of p
			if name of w contains %s then
				%s
				return name of w
			end if
		end repeat
	end repeat
end tell
return ""`, appleString(title), body)

	out, err := c.runner.Run(ctx, "osascript", "-e", script)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", ErrNoWindow
	}
	return out, nil
}

func (c *Controller) windowWindows(ctx context.Context, title string, action Action) (string, error) {
	show := map[Action]int{Minimize: 6, Maximize: 3, Restore: 9, Focus: 9}
	var body string
	if action == Close {
		body = `$p.CloseMainWindow() | Out-Null`
	} else {
		body = fmt.Sprintf(`[W]::ShowWindow($p.MainWindowHandle, %d) | Out-Null`, show[action])
		if action == Focus {
			body += `; [W]::SetForegroundWindow($p.MainWindowHandle) | Out-Null`
		}
	}
	script := fmt.Sprintf(`Add-Type @"
using System; using System.Runtime.InteropServices;
public class W {
  [DllImport("user32.dll")] public static extern bool ShowWindow(IntPtr h, int c);
  [DllImport("user32.dll")] public static extern bool SetForegroundWindow(IntPtr h);
}
"@
$p = Get-Process | Where-Object { $_.MainWindowTitle -like '*%s*' } | Select-Object -First 1
if (-not $p) { exit 3 }
%s
$p.MainWindowTitle`, psEscape(title), body)

	out, err := c.runner.Run(ctx, "powershell.exe", "-NoProfile", "-Command", script)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 3 {
			return "", ErrNoWindow
		}
		return "", err
	}
	return out, nil
}

// Open opens a folder, file or application with the desktop's default
// handler.
func (c *Controller) Open(ctx context.Context, target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch c.goos {
	case "windows":
		_, err = c.runner.Run(ctx, "cmd.exe", "/c", "start", "", target)
	case "darwin":
		_, err = c.runner.Run(ctx, "open", target)
		if err != nil {
			_, err = c.runner.Run(ctx, "open", "-a", target)
		}
	default:
		_, err = c.runner.Run(ctx, "xdg-open", target)
	}
	return err
}

// TypeText types text into the focused window, then presses Enter.
func (c *Controller) TypeText(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch c.goos {
	case "windows":
		script := fmt.Sprintf(`$ws = New-Object -ComObject WScript.Shell; $ws.SendKeys('%s'); $ws.SendKeys('{ENTER}')`,
			psEscape(sendKeysEscape(text)))
		_, err = c.runner.Run(ctx, "powershell.exe", "-NoProfile", "-Command", script)
	case "darwin":
		script := fmt.Sprintf(`tell application "System Events"
	keystroke %s
	key code 36
end tell`, appleString(text))
		_, err = c.runner.Run(ctx, "osascript", "-e", script)
	default:
		_, err = c.runner.Run(ctx, "xdotool", "type", "--delay", "50", "--", text)
		if err == nil {
			_, err = c.runner.Run(ctx, "xdotool", "key", "Return")
		}
	}
	return err
}

// Screenshot saves a capture of the whole screen to path as PNG.
func (c *Controller) Screenshot(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch c.goos {
	case "windows":
		script := fmt.Sprintf(`Add-Type -AssemblyName System.Windows.Forms,System.Drawing
$b = [System.Windows.Forms.SystemInformation]::VirtualScreen
$bmp = New-Object System.Drawing.Bitmap $b.Width, $b.Height
$g = [System.Drawing.Graphics]::FromImage($bmp)
$g.CopyFromScreen($b.Left, $b.Top, 0, 0, $bmp.Size)
$bmp.Save('%s', [System.Drawing.Imaging.ImageFormat]::Png)`, psEscape(path))
		_, err = c.runner.Run(ctx, "powershell.exe", "-NoProfile", "-Command", script)
	case "darwin":
		_, err = c.runner.Run(ctx, "screencapture", "-x", path)
	default:
		_, err = c.runner.Run(ctx, "import", "-window", "root", path)
	}
	return err
}

func appleString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// psEscape escapes s for use inside a single-quoted PowerShell string.
func psEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// sendKeysEscape wraps SendKeys metacharacters in braces.
func sendKeysEscape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '+', '^', '%', '~', '(', ')', '{', '}', '[', ']':
			sb.WriteString("{" + string(r) + "}")
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
