package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cuemby/cibcore/pkg/manager"
	"github.com/cuemby/cibcore/pkg/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Validate a configuration document against its declared schema",
	Long: `Validate a configuration document against the schema it declares in
validate-with. A document that does not validate is migrated forward while
transforms allow it. Use "-" to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmission(cmd, args[0], false)
	},
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade FILE",
	Short: "Upgrade a configuration document to the newest schema it validates against",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmission(cmd, args[0], true)
	},
}

func runAdmission(cmd *cobra.Command, path string, upgrade bool) error {
	save, _ := cmd.Flags().GetBool("save")
	out, _ := cmd.Flags().GetString("write")

	doc, err := readDocument(path)
	if err != nil {
		return err
	}

	mgr, err := newManager(save)
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	var adm *manager.Admission
	if upgrade {
		adm, err = mgr.UpgradeDocument(doc)
	} else {
		adm, err = mgr.AcceptDocument(doc)
	}
	if err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				fmt.Fprintf(os.Stderr, "  %s\n", p)
			}
		}
		return err
	}

	fmt.Printf("✓ Document validates against %s\n", adm.Schema.Name)
	fmt.Printf("  Declared: %s\n", adm.Declared)
	if adm.Steps > 0 {
		fmt.Printf("  Transforms applied: %d\n", adm.Steps)
	}
	if len(adm.Path) > 1 {
		fmt.Printf("  Path: %v\n", adm.Path)
	}
	if adm.Revision != nil {
		fmt.Printf("  Revision: %s (sequence %d)\n", adm.Revision.ID, adm.Revision.Sequence)
	}

	if out != "" {
		data, err := adm.Document.Indented(2)
		if err != nil {
			return err
		}
		if out == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return fmt.Errorf("failed to write document: %w", err)
		}
		fmt.Printf("  Written to %s\n", out)
	}
	return nil
}

func init() {
	for _, cmd := range []*cobra.Command{validateCmd, upgradeCmd} {
		cmd.Flags().Bool("save", false, "Store the accepted document as a revision")
		cmd.Flags().StringP("write", "w", "", "Write the accepted document to this file (\"-\" for stdout)")
	}
}
