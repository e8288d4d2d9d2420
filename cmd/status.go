package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coreagent/core/internal/config"
	"github.com/coreagent/core/internal/providers"
	"github.com/coreagent/core/internal/shared/cmdutils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s core status\n\n", cmdutils.Logo)

	_, statErr := os.Stat(cfgPath)
	fmt.Printf("Config:    %s %s\n", cfgPath, cmdutils.Mark(statErr == nil))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	ws := cfg.WorkspacePath()
	_, wsErr := os.Stat(ws)
	d := cfg.Agents.Defaults

	fmt.Printf("Workspace: %s %s\n", ws, cmdutils.Mark(wsErr == nil))
	fmt.Printf("Model:     %s\n", d.Model)
	fmt.Printf("Session:   %s (%s backend)\n", d.SessionID, backendName(cfg.Session.Backend))
	if cfg.Memory.Enabled {
		fmt.Printf("Memory:    %s backend, %s embeddings\n", backendName(cfg.Memory.Backend), cfg.Memory.Embedding.Provider)
	} else {
		fmt.Println("Memory:    disabled")
	}
	fmt.Printf("Browser:   %s\n", enabledText(cfg.Tools.Browser.Enabled))
	fmt.Printf("Desktop:   %s\n\n", enabledText(cfg.Tools.Desktop.Enabled))

	fmt.Println("Providers:")
	for _, spec := range providers.PROVIDERS {
		p := cfg.ProviderByName(spec.Name)
		if p == nil {
			continue
		}
		label := spec.Label()
		switch {
		case spec.IsLocal:
			if p.APIBase != "" {
				fmt.Printf("  %-20s ✓ %s\n", label, p.APIBase)
			} else {
				fmt.Printf("  %-20s (not set)\n", label)
			}
		case p.APIKey != "":
			fmt.Printf("  %-20s ✓\n", label)
		default:
			fmt.Printf("  %-20s (not set)\n", label)
		}
	}
	return nil
}

func backendName(b string) string {
	if b == "" {
		return "file"
	}
	return b
}

func enabledText(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
