package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/OneOfOne/xxhash"
	"github.com/beevik/etree"
	"github.com/cuemby/cibcore/pkg/cib"
	"gopkg.in/yaml.v3"
)

type attributeRename struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type attributeSet struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type stepFile struct {
	Select          string           `yaml:"select"`
	Rename          string           `yaml:"rename"`
	Remove          bool             `yaml:"remove"`
	RenameAttribute *attributeRename `yaml:"rename_attribute"`
	SetAttribute    *attributeSet    `yaml:"set_attribute"`
	RemoveAttribute string           `yaml:"remove_attribute"`
}

type transformFile struct {
	Description string     `yaml:"description"`
	Steps       []stepFile `yaml:"steps"`
}

type stepAction int

const (
	actionRename stepAction = iota
	actionRemove
	actionRenameAttribute
	actionSetAttribute
	actionRemoveAttribute
)

type step struct {
	selector string
	path     etree.Path
	action   stepAction
	name     string
	to       string
	value    string
}

// Transform rewrites a document of one schema version into the form of the
// next version. It is immutable once compiled.
type Transform struct {
	Digest      uint64
	Description string

	steps []step
}

// CompileTransform parses a YAML transform and compiles its element paths
func CompileTransform(data []byte) (*Transform, error) {
	var file transformFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse transform: %w", err)
	}

	t := &Transform{
		Digest:      xxhash.Checksum64(data),
		Description: file.Description,
	}
	for i, sf := range file.Steps {
		s, err := compileStep(sf)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		t.steps = append(t.steps, s)
	}
	return t, nil
}

func compileStep(sf stepFile) (step, error) {
	if sf.Select == "" {
		return step{}, fmt.Errorf("missing select")
	}
	path, err := etree.CompilePath(sf.Select)
	if err != nil {
		return step{}, fmt.Errorf("select %q: %w", sf.Select, err)
	}
	s := step{selector: sf.Select, path: path}

	actions := 0
	if sf.Rename != "" {
		actions++
		s.action, s.name = actionRename, sf.Rename
	}
	if sf.Remove {
		actions++
		s.action = actionRemove
	}
	if sf.RenameAttribute != nil {
		actions++
		if sf.RenameAttribute.From == "" || sf.RenameAttribute.To == "" {
			return step{}, fmt.Errorf("rename_attribute needs from and to")
		}
		s.action, s.name, s.to = actionRenameAttribute, sf.RenameAttribute.From, sf.RenameAttribute.To
	}
	if sf.SetAttribute != nil {
		actions++
		if sf.SetAttribute.Name == "" {
			return step{}, fmt.Errorf("set_attribute needs a name")
		}
		s.action, s.name, s.value = actionSetAttribute, sf.SetAttribute.Name, sf.SetAttribute.Value
	}
	if sf.RemoveAttribute != "" {
		actions++
		s.action, s.name = actionRemoveAttribute, sf.RemoveAttribute
	}
	if actions != 1 {
		return step{}, fmt.Errorf("select %q: expected exactly one action, got %d", sf.Select, actions)
	}
	return s, nil
}

// Apply returns a transformed copy of doc. Steps run in order, each against
// the result of the previous one. doc is not modified.
func (t *Transform) Apply(doc *cib.Document) (*cib.Document, error) {
	out := doc.Copy()
	tree := out.Tree()

	for i, s := range t.steps {
		for _, el := range tree.FindElementsPath(s.path) {
			if err := s.apply(el); err != nil {
				return nil, fmt.Errorf("step %d (%s): %w", i+1, s.selector, err)
			}
		}
	}
	if out.Root() == nil {
		return nil, cib.ErrNoRoot
	}
	return out, nil
}

func (s step) apply(el *etree.Element) error {
	switch s.action {
	case actionRename:
		el.Tag = s.name
	case actionRemove:
		parent := el.Parent()
		if parent == nil || parent.Parent() == nil {
			return fmt.Errorf("cannot remove the root element")
		}
		parent.RemoveChild(el)
	case actionRenameAttribute:
		if a := el.SelectAttr(s.name); a != nil {
			value := a.Value
			el.RemoveAttr(s.name)
			el.CreateAttr(s.to, value)
		}
	case actionSetAttribute:
		el.CreateAttr(s.name, s.value)
	case actionRemoveAttribute:
		el.RemoveAttr(s.name)
	}
	return nil
}
