package main

import (
	"fmt"

	"pipewright/internal/store"
	"pipewright/internal/validator"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent generation runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(historyLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println(subtleStyle.Render("No runs recorded yet."))
		return nil
	}

	for _, run := range runs {
		verdict := string(run.Verdict)
		switch run.Verdict {
		case validator.VerdictAccepted:
			verdict = successStyle.Render(verdict)
		case "":
			verdict = subtleStyle.Render("unvalidated")
		default:
			verdict = errorStyle.Render(verdict)
		}

		fmt.Printf("%s  %s  %s  attempts=%d\n  %s\n",
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			subtleStyle.Render(shortID(run.ID)),
			verdict,
			run.Attempts,
			truncateInstruction(run.Instruction, 100))
	}
	return nil
}

// shortID abbreviates a UUID for display. IDs from hand-edited databases
// can be arbitrarily short.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncateInstruction(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
