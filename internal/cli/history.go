package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/guiyumin/unmark/internal/core/config"
	"github.com/guiyumin/unmark/internal/core/history"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previously resolved notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No history entries found.")
			return nil
		}
		printHistory(os.Stdout, entries)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all history entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d entries\n", n)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show (0 for all)")
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.Store, error) {
	cfg := config.LoadOrDefault()
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return history.Open(path, cfg.History.Limit)
}

func printHistory(w io.Writer, entries []history.Entry) {
	faint := color.New(color.Faint)
	cyan := color.New(color.FgCyan)
	for _, e := range entries {
		faint.Fprintf(w, "%s  ", e.CreatedAt.Local().Format("2006-01-02 15:04"))
		cyan.Fprintf(w, "%-11s ", e.Platform)
		if e.NoteID != "" {
			fmt.Fprintf(w, "%s ", e.NoteID)
		}
		fmt.Fprintf(w, "(%d)\n", e.Images)
		fmt.Fprintf(w, "  %s\n", e.ImageURL)
	}
}
