package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cuemby/cibcore/pkg/iso8601"
	"github.com/cuemby/cibcore/pkg/manager"
	"github.com/spf13/cobra"
)

var attributeCmd = &cobra.Command{
	Use:   "attribute FILE",
	Short: "Show the effective value of an attribute in a configuration document",
	Long: `Resolve one attribute of a configuration document: a cluster option
(crm_config), a resource or operation default, or a node attribute. Rules are
evaluated at --at, or now.`,
	Example: `  # Cluster option
  cibctl attribute cib.xml --name stonith-enabled

  # Node utilization at a given time
  cibctl attribute cib.xml --section nodes --node node1 --type utilization --name cpu --at 2024-06-15T12:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		section, _ := cmd.Flags().GetString("section")
		name, _ := cmd.Flags().GetString("name")
		node, _ := cmd.Flags().GetString("node")
		setType, _ := cmd.Flags().GetString("type")
		at, _ := cmd.Flags().GetString("at")
		nodeAttrs, _ := cmd.Flags().GetStringToString("node-attr")

		q := manager.Query{
			Section:   section,
			Name:      name,
			Node:      node,
			SetType:   setType,
			NodeAttrs: nodeAttrs,
		}
		if at != "" {
			t, err := iso8601.ParseDateTime(at)
			if err != nil {
				return fmt.Errorf("invalid --at: %w", err)
			}
			q.Now = t
		}

		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}

		mgr, err := newManager(false)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		res, err := mgr.QueryAttribute(doc, q)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %v\n", w)
		}
		if !res.Found {
			return fmt.Errorf("attribute %q not found in %s", name, strings.TrimSpace(section))
		}

		fmt.Println(res.Value)
		if res.NextChange != nil {
			fmt.Fprintf(os.Stderr, "next change: %s\n", res.NextChange.UTC().Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	attributeCmd.Flags().String("section", manager.SectionCRMConfig, "Section: crm_config, rsc_defaults, op_defaults, nodes")
	attributeCmd.Flags().StringP("name", "n", "", "Attribute name (required)")
	attributeCmd.Flags().String("node", "", "Node uname (nodes section)")
	attributeCmd.Flags().String("type", "", "Node set type: instance_attributes or utilization")
	attributeCmd.Flags().String("at", "", "Evaluate rules at this ISO 8601 date-time")
	attributeCmd.Flags().StringToString("node-attr", nil, "Node attributes available to rules (name=value)")
	_ = attributeCmd.MarkFlagRequired("name")
}
