package tools

import (
	"runtime"
	"strings"
	"testing"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
}

func TestShell_Output(t *testing.T) {
	skipOnWindows(t)
	got := run(t, NewShellTool(t.TempDir(), 5, false), map[string]any{"command": "echo hi"})
	if got != "Output:\nhi" {
		t.Errorf("got %q", got)
	}
}

func TestShell_NoOutput(t *testing.T) {
	skipOnWindows(t)
	got := run(t, NewShellTool(t.TempDir(), 5, false), map[string]any{"command": "true"})
	if got != "Success: Command executed (No output)." {
		t.Errorf("got %q", got)
	}
}

func TestShell_ExitCode(t *testing.T) {
	skipOnWindows(t)
	got := run(t, NewShellTool(t.TempDir(), 5, false), map[string]any{"command": "echo broken >&2; exit 3"})
	if got != "Error (Exit Code 3):\nbroken" {
		t.Errorf("got %q", got)
	}
}

func TestShell_Timeout(t *testing.T) {
	skipOnWindows(t)
	got := run(t, NewShellTool(t.TempDir(), 1, false), map[string]any{"command": "sleep 5"})
	if !strings.Contains(got, "timed out") {
		t.Errorf("got %q", got)
	}
}

func TestShell_GuardBlocksDangerousCommands(t *testing.T) {
	tool := NewShellTool(t.TempDir(), 5, false)
	for _, cmd := range []string{"rm -rf /", "shutdown now", "dd if=/dev/zero of=/dev/sda", "Remove-Item C:\\x -Recurse"} {
		got := run(t, tool, map[string]any{"command": cmd})
		if !strings.Contains(got, "blocked by safety guard") {
			t.Errorf("%q was not blocked: %q", cmd, got)
		}
	}
}

func TestShell_GuardRestrictsPaths(t *testing.T) {
	tool := NewShellTool(t.TempDir(), 5, true)
	for _, cmd := range []string{"cat ../secret", "cat /etc/passwd"} {
		got := run(t, tool, map[string]any{"command": cmd})
		if !strings.Contains(got, "blocked by safety guard") {
			t.Errorf("%q was not blocked: %q", cmd, got)
		}
	}
}

func TestShell_CommandLinePerOS(t *testing.T) {
	tool := NewShellTool("", 5, false)
	cases := []struct {
		goos string
		ps   bool
		want string
	}{
		{"linux", false, "sh"},
		{"linux", true, "pwsh"},
		{"windows", false, "cmd.exe"},
		{"windows", true, "powershell.exe"},
	}
	for _, c := range cases {
		tool.goos = c.goos
		if name, _ := tool.commandLine("dir", c.ps); name != c.want {
			t.Errorf("%s ps=%v: got %s, want %s", c.goos, c.ps, name, c.want)
		}
	}
}
