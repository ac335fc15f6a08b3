package main

import (
	"fmt"
	"os"

	"github.com/cuemby/cibcore/pkg/schema"
	"github.com/spf13/cobra"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Inspect the schema catalog",
}

var schemasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known schema versions in upgrade order",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		mgr, err := newManager(false)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		entries := schemaEntries(mgr.Catalog())
		if output != "" && output != "text" {
			return printStructured(os.Stdout, output, entries)
		}

		fmt.Printf("%-8s %-20s %-8s %-10s %s\n", "ORDINAL", "NAME", "KIND", "TRANSFORM", "SOURCE")
		for _, e := range entries {
			source := e.Source
			if e.Remote {
				source += " (remote)"
			}
			if e.Alias {
				source += " (alias)"
			}
			transform := "-"
			if e.Transform {
				transform = "yes"
			}
			fmt.Printf("%-8d %-20s %-8s %-10s %s\n", e.Ordinal, e.Name, e.Kind, transform, source)
		}
		return nil
	},
}

// schemaEntry is the printable form of a catalog version
type schemaEntry struct {
	Ordinal   int    `json:"ordinal" yaml:"ordinal"`
	Name      string `json:"name" yaml:"name"`
	Kind      string `json:"kind" yaml:"kind"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
	Remote    bool   `json:"remote" yaml:"remote"`
	Alias     bool   `json:"alias" yaml:"alias"`
	Transform bool   `json:"transform" yaml:"transform"`
}

func schemaEntries(c *schema.Catalog) []schemaEntry {
	versions := c.Versions()
	entries := make([]schemaEntry, 0, len(versions))
	for _, v := range versions {
		entries = append(entries, schemaEntry{
			Ordinal:   v.Ordinal(),
			Name:      v.Name,
			Kind:      v.Kind.String(),
			Source:    v.Source,
			Remote:    v.Remote,
			Alias:     v.Alias,
			Transform: v.Transform != nil,
		})
	}
	return entries
}

func init() {
	schemasListCmd.Flags().StringP("output", "o", "text", "Output format: text, json, yaml")
	schemasCmd.AddCommand(schemasListCmd)
}
