package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/coreagent/core/internal/config"
	"github.com/coreagent/core/internal/shared/cmdutils"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and workspace",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	cfg := config.DefaultConfig()
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		if existing, loadErr := config.Load(cfgPath); loadErr == nil {
			cfg = *existing
		}
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	fmt.Printf("✓ Workspace at %s\n", workspace)

	createWorkspaceTemplates(workspace)

	fmt.Printf("\n%s core is ready!\n\n", cmdutils.Logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add your API key to %s\n", cfgPath)
	fmt.Println("     The default model is Gemini: https://aistudio.google.com/apikey")
	fmt.Println("  2. Check the setup: core doctor")
	fmt.Println("  3. Chat: core agent -m \"Hello!\"")
	return nil
}

func createWorkspaceTemplates(workspace string) {
	p := filepath.Join(workspace, "INSTRUCTIONS.md")
	if _, err := os.Stat(p); os.IsNotExist(err) {
		_ = os.WriteFile(p, []byte(`# Instructions

Extra guidance for the agent goes here. It is appended to every turn.

- Preferred language: (your language)
- Folders the agent may touch: (paths)
`), 0o644)
		fmt.Println("  Created INSTRUCTIONS.md")
	}

	for _, dir := range []string{"downloads", "sessions"} {
		_ = os.MkdirAll(filepath.Join(workspace, dir), 0o755)
	}
}
