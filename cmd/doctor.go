package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/coreagent/core/internal/browser"
	"github.com/coreagent/core/internal/config"
	"github.com/coreagent/core/internal/memory"
	"github.com/coreagent/core/internal/session"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that every configured component can start",
	RunE:  runDoctor,
}

type check struct {
	name string
	run  func(ctx context.Context, cfg *config.Config) (string, error)
}

var doctorSections = []struct {
	title  string
	checks []check
}{
	{"CONFIG", []check{
		{"workspace", checkWorkspace},
		{"model provider", checkProvider},
	}},
	{"STORES", []check{
		{"sessions", checkSessions},
		{"long-term memory", checkMemory},
	}},
	{"BROWSER", []check{
		{"headless browser", checkBrowser},
	}},
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	fmt.Println("--- DIAGNOSTIC MODE ---")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("[FAIL] config -> %v\n", err)
		return nil
	}
	fmt.Printf("[OK] config %s\n", config.ConfigPath())

	failed := 0
	for i, section := range doctorSections {
		fmt.Printf("\n%d. CHECKING %s...\n", i+1, section.title)
		for _, c := range section.checks {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			detail, err := c.run(ctx, cfg)
			cancel()
			switch {
			case err != nil:
				failed++
				fmt.Printf("[FAIL] %s -> %v\n", c.name, err)
			case detail != "":
				fmt.Printf("[OK] %s (%s)\n", c.name, detail)
			default:
				fmt.Printf("[OK] %s\n", c.name)
			}
		}
	}

	fmt.Println("\n--- END OF DIAGNOSTIC ---")
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func checkWorkspace(_ context.Context, cfg *config.Config) (string, error) {
	ws := cfg.WorkspacePath()
	if err := os.MkdirAll(ws, 0o755); err != nil {
		return "", err
	}
	probe := filepath.Join(ws, ".doctor")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return "", fmt.Errorf("workspace not writable: %w", err)
	}
	_ = os.Remove(probe)
	return ws, nil
}

func checkProvider(_ context.Context, cfg *config.Config) (string, error) {
	model := cfg.Agents.Defaults.Model
	m := cfg.MatchProvider(model)
	if m.Provider == nil {
		return "", fmt.Errorf("no API key configured for model %q", model)
	}
	return fmt.Sprintf("%s via %s", model, m.Name), nil
}

func checkSessions(ctx context.Context, cfg *config.Config) (string, error) {
	store, err := session.Open(ctx, cfg.Session, cfg.WorkspacePath())
	if err != nil {
		return "", err
	}
	defer store.Close()
	infos, err := store.List(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s backend, %d stored", backendName(cfg.Session.Backend), len(infos)), nil
}

func checkMemory(ctx context.Context, cfg *config.Config) (string, error) {
	if !cfg.Memory.Enabled {
		return "disabled", nil
	}
	store, err := memory.Open(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer store.Close()
	if _, err := store.Recall(ctx, "diagnostic probe", 1); err != nil {
		return "", err
	}
	return backendName(cfg.Memory.Backend) + " backend", nil
}

func checkBrowser(ctx context.Context, cfg *config.Config) (string, error) {
	bc := cfg.Tools.Browser
	if !bc.Enabled {
		return "disabled", nil
	}
	s, err := browser.Open(ctx, browser.Options{Headless: true, ExecPath: bc.ExecPath})
	if err != nil {
		return "", fmt.Errorf("%w (is Chrome or Chromium installed?)", err)
	}
	return "launched", s.Close()
}
