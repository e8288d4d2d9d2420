package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// denyPatterns block commands that destroy data or take the machine down.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-[rf]{1,2}\b`),            // rm -r, rm -rf, rm -fr
	regexp.MustCompile(`(?i)\bdel\s+/[fq]\b`),                // del /f, del /q
	regexp.MustCompile(`(?i)\brmdir\s+/s\b`),                 // rmdir /s
	regexp.MustCompile(`(?i)\bremove-item\b.*-recurse\b`),    // PowerShell recursive delete
	regexp.MustCompile(`(?i)(?:^|[;&|]\s*)format\b`),         // format (standalone)
	regexp.MustCompile(`(?i)\b(mkfs|diskpart)\b`),            // disk ops
	regexp.MustCompile(`(?i)\bdd\s+if=`),                     // dd
	regexp.MustCompile(`(?i)>\s*/dev/sd`),                    // write to disk
	regexp.MustCompile(`(?i)\b(shutdown|reboot|poweroff)\b`), // power control
	regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`),                // fork bomb
}

const maxShellOutput = 10000

type shellInput struct {
	Command       string `json:"command" jsonschema_description:"The command to execute"`
	UsePowerShell bool   `json:"use_powershell,omitempty" jsonschema_description:"Run the command with PowerShell instead of the default shell"`
	WorkingDir    string `json:"working_dir,omitempty" jsonschema_description:"Optional working directory for the command"`
}

var shellSchema = paramsSchema[shellInput]()

// ShellTool executes system commands with safety guards.
type ShellTool struct {
	timeout             time.Duration
	workingDir          string
	restrictToWorkspace bool
	goos                string
}

// NewShellTool creates a ShellTool.
// workingDir is the default CWD (empty = os.Getwd()).
// restrictToWorkspace enables workspace path restriction.
func NewShellTool(workingDir string, timeoutSeconds int, restrictToWorkspace bool) *ShellTool {
	t := 60
	if timeoutSeconds > 0 {
		t = timeoutSeconds
	}
	return &ShellTool{
		timeout:             time.Duration(t) * time.Second,
		workingDir:          workingDir,
		restrictToWorkspace: restrictToWorkspace,
		goos:                runtime.GOOS,
	}
}

func (e *ShellTool) Name() string { return string(ToolShell) }
func (e *ShellTool) Description() string {
	return "Execute system commands. Use this to check system info, manage files, open applications, or check network status. Use with caution."
}
func (e *ShellTool) Parameters() json.RawMessage { return shellSchema }

func (e *ShellTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	in, err := decodeArgs[shellInput](params)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	if strings.TrimSpace(in.Command) == "" {
		return "Error: command is required", nil
	}

	cwd := e.workingDir
	if in.WorkingDir != "" {
		cwd = in.WorkingDir
	}
	if cwd == "" {
		cwd, _ = os.Getwd()
	}

	if guard := e.guardCommand(in.Command, cwd); guard != "" {
		return guard, nil
	}

	cmdCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	name, args := e.commandLine(in.Command, in.UsePowerShell)
	cmd := exec.CommandContext(cmdCtx, name, args...)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if cmdCtx.Err() != nil {
		return fmt.Sprintf("Error: Command timed out after %v", e.timeout), nil
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(runErr, &exitErr):
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return clampOutput(fmt.Sprintf("Error (Exit Code %d):\n%s", exitErr.ExitCode(), msg)), nil
	case runErr != nil:
		return fmt.Sprintf("System Error: %v", runErr), nil
	}

	if out := strings.TrimSpace(stdout.String()); out != "" {
		return clampOutput("Output:\n" + out), nil
	}
	return "Success: Command executed (No output).", nil
}

// commandLine picks the interpreter for the host OS.
func (e *ShellTool) commandLine(command string, powershell bool) (string, []string) {
	switch {
	case powershell && e.goos == "windows":
		return "powershell.exe", []string{"-NoProfile", "-Command", command}
	case powershell:
		return "pwsh", []string{"-NoProfile", "-Command", command}
	case e.goos == "windows":
		return "cmd.exe", []string{"/c", command}
	default:
		return "sh", []string{"-c", command}
	}
}

func clampOutput(s string) string {
	if len(s) <= maxShellOutput {
		return s
	}
	return s[:maxShellOutput] + fmt.Sprintf("\n... (truncated, %d more chars)", len(s)-maxShellOutput)
}

// guardCommand returns a refusal message, or "" when the command may run.
func (e *ShellTool) guardCommand(command, cwd string) string {
	lower := strings.ToLower(strings.TrimSpace(command))

	for _, p := range denyPatterns {
		if p.MatchString(lower) {
			return "Error: Command blocked by safety guard (dangerous pattern detected)"
		}
	}

	if e.restrictToWorkspace {
		if strings.Contains(command, `..\`) || strings.Contains(command, "../") {
			return "Error: Command blocked by safety guard (path traversal detected)"
		}

		cwdResolved, err := filepath.EvalSymlinks(cwd)
		if err != nil {
			cwdResolved = cwd
		}

		for _, raw := range extractAbsolutePaths(command) {
			p, err := filepath.EvalSymlinks(raw)
			if err != nil {
				p = filepath.Clean(raw)
			}
			if filepath.IsAbs(p) && p != cwdResolved && !strings.HasPrefix(p, cwdResolved+string(filepath.Separator)) {
				return "Error: Command blocked by safety guard (path outside working dir)"
			}
		}
	}
	return ""
}

var absolutePathRE = regexp.MustCompile(`(?:^|[\s|>])(/[^\s"'>]+)`)

// extractAbsolutePaths finds absolute POSIX paths embedded in a command line.
func extractAbsolutePaths(cmd string) []string {
	matches := absolutePathRE.FindAllStringSubmatch(cmd, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}
