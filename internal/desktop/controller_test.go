package desktop

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls   []call
	outputs map[string]string
	fail    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, call{name, args})
	key := name
	if len(args) > 0 {
		key += " " + args[0]
	}
	if err := f.fail[key]; err != nil {
		return "", err
	}
	return f.outputs[key], nil
}

// ─── ParseAction ─────────────────────────────────────────────────────────────

func TestParseAction(t *testing.T) {
	for _, s := range []string{"minimize", "Maximize", " restore ", "CLOSE", "focus"} {
		if _, err := ParseAction(s); err != nil {
			t.Errorf("ParseAction(%q): %v", s, err)
		}
	}
	if _, err := ParseAction("explode"); err == nil {
		t.Error("expected error for unknown action")
	}
}

// ─── Linux ───────────────────────────────────────────────────────────────────

func TestWindow_LinuxFocusesMatchingWindow(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"wmctrl -l": "0x01 0 host Terminal\n0x02 0 host Mozilla Firefox - Docs\n",
	}}
	c := NewWithRunner("linux", r)

	title, err := c.Window(context.Background(), "firefox", Focus)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if title != "Mozilla Firefox - Docs" {
		t.Errorf("title = %q", title)
	}
	last := r.calls[len(r.calls)-1]
	if last.name != "wmctrl" || strings.Join(last.args, " ") != "-i -a 0x02" {
		t.Errorf("last call = %v", last)
	}
}

func TestWindow_LinuxNoMatch(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"wmctrl -l": "0x01 0 host Terminal\n"}}
	c := NewWithRunner("linux", r)

	if _, err := c.Window(context.Background(), "notepad", Close); !errors.Is(err, ErrNoWindow) {
		t.Errorf("err = %v, want ErrNoWindow", err)
	}
}

func TestTypeText_LinuxPressesEnter(t *testing.T) {
	r := &fakeRunner{}
	c := NewWithRunner("linux", r)

	if err := c.TypeText(context.Background(), "hello"); err != nil {
		t.Fatalf("TypeText: %v", err)
	}
	if len(r.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(r.calls))
	}
	if got := r.calls[0].args[len(r.calls[0].args)-1]; got != "hello" {
		t.Errorf("typed %q", got)
	}
	if strings.Join(r.calls[1].args, " ") != "key Return" {
		t.Errorf("second call = %v", r.calls[1])
	}
}

// ─── Other platforms ─────────────────────────────────────────────────────────

func TestScreenshot_PicksPlatformTool(t *testing.T) {
	cases := map[string]string{"darwin": "screencapture", "linux": "import", "windows": "powershell.exe"}
	for goos, want := range cases {
		r := &fakeRunner{}
		if err := NewWithRunner(goos, r).Screenshot(context.Background(), "/tmp/x.png"); err != nil {
			t.Fatalf("%s: %v", goos, err)
		}
		if r.calls[0].name != want {
			t.Errorf("%s: ran %s, want %s", goos, r.calls[0].name, want)
		}
	}
}

func TestOpen_DarwinFallsBackToApplication(t *testing.T) {
	r := &fakeRunner{fail: map[string]error{"open Safari": errors.New("no such file")}}
	c := NewWithRunner("darwin", r)

	if err := c.Open(context.Background(), "Safari"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(r.calls) != 2 || r.calls[1].args[0] != "-a" {
		t.Errorf("calls = %v", r.calls)
	}
}

func TestSendKeysEscape(t *testing.T) {
	if got := sendKeysEscape("a+b(c)"); got != "a{+}b{(}c{)}" {
		t.Errorf("got %q", got)
	}
}
