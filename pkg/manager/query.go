package manager

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/cuemby/cibcore/pkg/cib"
	"github.com/cuemby/cibcore/pkg/types"
)

// Section names accepted by QueryAttribute
const (
	SectionCRMConfig   = "crm_config"
	SectionRscDefaults = "rsc_defaults"
	SectionOpDefaults  = "op_defaults"
	SectionNodes       = "nodes"
)

// BootstrapOptionsID is the cluster property set that takes precedence over
// all others
const BootstrapOptionsID = "cib-bootstrap-options"

// Query selects one attribute of a document
type Query struct {
	Section string
	Name    string

	// Node is the uname of the node to read; nodes section only
	Node string

	// SetType is the set element to read in the nodes section,
	// instance_attributes (default) or utilization
	SetType string

	// Now is the evaluation time; zero means the current time
	Now time.Time

	// NodeAttrs are available to attribute expressions
	NodeAttrs map[string]string
}

// QueryResult is the effective value of a queried attribute
type QueryResult struct {
	Value      string
	Found      bool
	NextChange *time.Time
	Warnings   []types.BlockWarning
}

// QueryAttribute resolves a single attribute of doc the way the cluster would
// see it at q.Now
func (m *Manager) QueryAttribute(doc *cib.Document, q Query) (*QueryResult, error) {
	if q.Name == "" {
		return nil, fmt.Errorf("attribute name is required")
	}

	parent, setTag, opts, err := querySets(doc, q)
	if err != nil {
		return nil, err
	}

	input := types.RuleInput{Now: q.Now, NodeAttrs: q.NodeAttrs}
	if input.Now.IsZero() {
		input.Now = time.Now()
	}
	if q.Section == SectionNodes {
		input.NodeAttrs = withUname(q.NodeAttrs, q.Node)
	}

	result := &QueryResult{}
	if parent == nil {
		return result, nil
	}

	blocks := cib.UnpackBlocks(parent, setTag, opts)
	table := m.ResolveAttributes(blocks, input)
	result.Value, result.Found = table.Get(q.Name)
	result.NextChange = table.NextChange
	result.Warnings = table.Warnings
	return result, nil
}

func querySets(doc *cib.Document, q Query) (*etree.Element, string, cib.BlockOptions, error) {
	switch q.Section {
	case SectionCRMConfig:
		return doc.Section("configuration/crm_config"), cib.TagClusterProperties,
			cib.BlockOptions{SpecialID: BootstrapOptionsID, SortByScore: true}, nil
	case SectionRscDefaults, SectionOpDefaults:
		return doc.Section("configuration/" + q.Section), cib.TagMetaAttributes,
			cib.BlockOptions{SortByScore: true}, nil
	case SectionNodes:
		if q.Node == "" {
			return nil, "", cib.BlockOptions{}, fmt.Errorf("node name is required for the %s section", SectionNodes)
		}
		setTag := q.SetType
		if setTag == "" {
			setTag = cib.TagInstanceAttributes
		}
		if setTag != cib.TagInstanceAttributes && setTag != cib.TagUtilization {
			return nil, "", cib.BlockOptions{}, fmt.Errorf("unsupported node set type %q", setTag)
		}
		return findNode(doc, q.Node), setTag, cib.BlockOptions{SortByScore: true}, nil
	default:
		return nil, "", cib.BlockOptions{}, fmt.Errorf("unsupported section %q", q.Section)
	}
}

// findNode returns the node entry with the given uname, or nil
func findNode(doc *cib.Document, uname string) *etree.Element {
	nodes := doc.Section("configuration/nodes")
	if nodes == nil {
		return nil
	}
	for _, node := range nodes.SelectElements("node") {
		if node.SelectAttrValue("uname", "") == uname {
			return node
		}
	}
	return nil
}

func withUname(attrs map[string]string, node string) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	if _, ok := out["#uname"]; !ok {
		out["#uname"] = node
	}
	return out
}
