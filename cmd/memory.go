package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coreagent/core/internal/memory"
)

var (
	memorySource string
	memoryCount  int
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Save to or recall from long-term memory",
}

var memorySaveCmd = &cobra.Command{
	Use:   "save <text>",
	Short: "Store a fact in long-term memory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemorySave,
}

var memoryRecallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Print the memories most similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemoryRecall,
}

func init() {
	memorySaveCmd.Flags().StringVar(&memorySource, "source", "user", "Where the fact came from")
	memoryRecallCmd.Flags().IntVarP(&memoryCount, "count", "n", 2, "Number of memories to return")

	memoryCmd.AddCommand(memorySaveCmd)
	memoryCmd.AddCommand(memoryRecallCmd)
}

func openMemory(cmd *cobra.Command) (*memory.VectorStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return memory.Open(cmd.Context(), cfg)
}

func runMemorySave(cmd *cobra.Command, args []string) error {
	store, err := openMemory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	text := strings.Join(args, " ")
	if err := store.Save(cmd.Context(), text, memorySource); err != nil {
		return err
	}
	fmt.Printf("✓ Saved: %s\n", text)
	return nil
}

func runMemoryRecall(cmd *cobra.Command, args []string) error {
	store, err := openMemory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	query := strings.Join(args, " ")
	found, err := store.Recall(cmd.Context(), query, memoryCount)
	if err != nil {
		return err
	}
	fmt.Printf("Question: %s\n", query)
	if len(found) == 0 {
		fmt.Println("Found memories: none")
		return nil
	}
	fmt.Println("Found memories:")
	for i, m := range found {
		fmt.Printf("  %d. %s\n", i+1, m)
	}
	return nil
}
