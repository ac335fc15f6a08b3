package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/OneOfOne/xxhash"
	"github.com/beevik/etree"
	"github.com/cuemby/cibcore/pkg/cib"
	"github.com/cuemby/cibcore/pkg/iso8601"
	"github.com/cuemby/cibcore/pkg/version"
	"gopkg.in/yaml.v3"
)

// AttrType is the value type of a declared attribute
type AttrType string

const (
	TypeString   AttrType = "string"
	TypeID       AttrType = "id"
	TypeIDRef    AttrType = "idref"
	TypeInteger  AttrType = "integer"
	TypeScore    AttrType = "score"
	TypeBoolean  AttrType = "boolean"
	TypeDateTime AttrType = "datetime"
	TypeDuration AttrType = "duration"
	TypeVersion  AttrType = "version"
)

var knownTypes = map[AttrType]bool{
	TypeString: true, TypeID: true, TypeIDRef: true, TypeInteger: true,
	TypeScore: true, TypeBoolean: true, TypeDateTime: true, TypeDuration: true,
	TypeVersion: true,
}

// AttributeRule describes one allowed attribute
type AttributeRule struct {
	Required bool     `yaml:"required"`
	Type     AttrType `yaml:"type"`
	Enum     []string `yaml:"enum"`
}

// ElementRule describes one allowed element
type ElementRule struct {
	Attributes    map[string]AttributeRule `yaml:"attributes"`
	AnyAttributes bool                     `yaml:"any_attributes"`
	Children      []string                 `yaml:"children"`
	Required      []string                 `yaml:"required"`
	AnyChildren   bool                     `yaml:"any_children"`

	children map[string]bool
}

type definitionFile struct {
	Root     string                  `yaml:"root"`
	Elements map[string]*ElementRule `yaml:"elements"`
}

// Definition is the compiled validation rules of one schema version. A
// Definition is immutable and may be shared by several versions whose files
// have identical content.
type Definition struct {
	// Digest is the xxhash of the source file content
	Digest uint64

	root     string
	elements map[string]*ElementRule
}

// CompileDefinition parses and checks a YAML schema definition
func CompileDefinition(data []byte) (*Definition, error) {
	var file definitionFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}

	if file.Root == "" {
		return nil, fmt.Errorf("definition has no root element")
	}
	if _, ok := file.Elements[file.Root]; !ok {
		return nil, fmt.Errorf("root element %q is not declared", file.Root)
	}

	for tag, rule := range file.Elements {
		if rule == nil {
			rule = &ElementRule{}
			file.Elements[tag] = rule
		}
		rule.children = make(map[string]bool, len(rule.Children))
		for _, child := range rule.Children {
			if _, ok := file.Elements[child]; !ok {
				return nil, fmt.Errorf("element %q: child %q is not declared", tag, child)
			}
			rule.children[child] = true
		}
		for _, req := range rule.Required {
			if !rule.children[req] {
				return nil, fmt.Errorf("element %q: required child %q is not an allowed child", tag, req)
			}
		}
		for name, attr := range rule.Attributes {
			if attr.Type == "" {
				attr.Type = TypeString
				rule.Attributes[name] = attr
			}
			if !knownTypes[attr.Type] {
				return nil, fmt.Errorf("element %q: attribute %q has unknown type %q", tag, name, attr.Type)
			}
		}
	}

	return &Definition{
		Digest:   xxhash.Checksum64(data),
		root:     file.Root,
		elements: file.Elements,
	}, nil
}

// Root returns the required root element name
func (d *Definition) Root() string {
	return d.root
}

// Validate checks doc against the definition. It returns nil or a
// *ValidationError listing every problem found. doc is not modified.
func (d *Definition) Validate(doc *cib.Document) error {
	v := &validation{def: d, ids: make(map[string]string)}

	root := doc.Root()
	if root.Tag != d.root {
		v.fail(root, "root element is <%s>, expected <%s>", root.Tag, d.root)
	} else {
		v.element(root, d.elements[d.root])
	}
	v.checkRefs()

	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

type idRef struct {
	el    *etree.Element
	attr  string
	value string
}

type validation struct {
	def      *Definition
	problems []Problem
	ids      map[string]string // id -> path of first element carrying it
	refs     []idRef
}

func (v *validation) fail(el *etree.Element, format string, args ...any) {
	v.problems = append(v.problems, Problem{Path: el.GetPath(), Message: fmt.Sprintf(format, args...)})
}

func (v *validation) element(el *etree.Element, rule *ElementRule) {
	v.attributes(el, rule)

	present := make(map[string]bool)
	for _, child := range el.ChildElements() {
		present[child.Tag] = true
		childRule, declared := v.def.elements[child.Tag]
		switch {
		case rule.children[child.Tag]:
			v.element(child, childRule)
		case rule.AnyChildren && declared:
			v.element(child, childRule)
		case rule.AnyChildren:
			// Free-form content is not checked
		default:
			v.fail(child, "element <%s> is not allowed inside <%s>", child.Tag, el.Tag)
		}
	}

	for _, req := range rule.Required {
		if !present[req] {
			v.fail(el, "missing required element <%s>", req)
		}
	}
}

func (v *validation) attributes(el *etree.Element, rule *ElementRule) {
	seen := make(map[string]bool, len(el.Attr))
	for _, a := range el.Attr {
		// Namespace declarations and qualified attributes are not part of the
		// configuration
		if a.Space != "" || a.Key == "xmlns" {
			continue
		}
		seen[a.Key] = true

		attrRule, ok := rule.Attributes[a.Key]
		if !ok {
			if !rule.AnyAttributes {
				v.fail(el, "attribute %q is not allowed", a.Key)
			}
			continue
		}
		v.value(el, a.Key, a.Value, attrRule)
	}

	names := make([]string, 0, len(rule.Attributes))
	for name := range rule.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if rule.Attributes[name].Required && !seen[name] {
			v.fail(el, "missing required attribute %q", name)
		}
	}
}

func (v *validation) value(el *etree.Element, name, value string, rule AttributeRule) {
	if len(rule.Enum) > 0 && !contains(rule.Enum, value) {
		v.fail(el, "attribute %q: %q is not one of %s", name, value, strings.Join(rule.Enum, ", "))
		return
	}

	var err error
	switch rule.Type {
	case TypeID:
		if err = checkID(value); err == nil {
			if first, dup := v.ids[value]; dup {
				err = fmt.Errorf("duplicate id (first used at %s)", first)
			} else {
				v.ids[value] = el.GetPath()
			}
		}
	case TypeIDRef:
		if err = checkID(value); err == nil {
			v.refs = append(v.refs, idRef{el: el, attr: name, value: value})
		}
	case TypeInteger:
		_, err = strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	case TypeScore:
		_, err = cib.ParseScore(value)
	case TypeBoolean:
		err = checkBoolean(value)
	case TypeDateTime:
		_, err = iso8601.ParseDateTime(value)
	case TypeDuration:
		_, err = iso8601.ParseDuration(value)
	case TypeVersion:
		_, err = version.ParseDotted(value)
	}
	if err != nil {
		v.fail(el, "attribute %q: %v", name, err)
	}
}

func (v *validation) checkRefs() {
	for _, ref := range v.refs {
		if _, ok := v.ids[ref.value]; !ok {
			v.fail(ref.el, "attribute %q refers to unknown id %q", ref.attr, ref.value)
		}
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func checkID(s string) error {
	if s == "" {
		return fmt.Errorf("empty id")
	}
	for i, r := range s {
		if unicode.IsSpace(r) {
			return fmt.Errorf("id %q contains whitespace", s)
		}
		if i == 0 && !(unicode.IsLetter(r) || r == '_') {
			return fmt.Errorf("id %q must start with a letter or underscore", s)
		}
	}
	return nil
}

func checkBoolean(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "false", "yes", "no", "on", "off", "y", "n", "1", "0":
		return nil
	}
	return fmt.Errorf("%q is not a boolean", s)
}
