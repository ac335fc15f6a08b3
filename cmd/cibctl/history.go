package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored revisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")

		mgr, err := newManager(true)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		revs, err := mgr.History(limit)
		if err != nil {
			return err
		}
		if output != "" && output != "text" {
			return printStructured(os.Stdout, output, revs)
		}

		if len(revs) == 0 {
			fmt.Println("No revisions stored")
			return nil
		}
		fmt.Printf("%-6s %-36s %-18s %-18s %-10s %s\n", "SEQ", "ID", "SCHEMA", "DECLARED", "GENERATION", "ACCEPTED")
		for _, r := range revs {
			gen := fmt.Sprintf("%d.%d.%d", r.AdminEpoch, r.Epoch, r.NumUpdates)
			fmt.Printf("%-6d %-36s %-18s %-18s %-10s %s\n",
				r.Sequence, r.ID, r.Schema, r.Declared, gen, r.AcceptedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print the document of a stored revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager(true)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		rev, err := mgr.Store().GetRevision(args[0])
		if err != nil {
			return err
		}
		fmt.Println(rev.Document)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 0, "Show only the newest N revisions")
	historyCmd.Flags().StringP("output", "o", "text", "Output format: text, json, yaml")
	historyCmd.AddCommand(historyShowCmd)
}
