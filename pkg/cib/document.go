package cib

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/beevik/etree"
)

const (
	// TagCIB is the root element of a configuration document
	TagCIB = "cib"

	// AttrValidateWith names the schema version a document declares
	AttrValidateWith = "validate-with"

	AttrAdminEpoch = "admin_epoch"
	AttrEpoch      = "epoch"
	AttrNumUpdates = "num_updates"
)

// ErrNoRoot is returned when a document has no root element
var ErrNoRoot = errors.New("document has no root element")

// Document is a parsed configuration document. Methods returning a modified
// document work on a copy; the receiver is never changed by them.
type Document struct {
	doc *etree.Document
}

// Parse parses an XML document
func Parse(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if doc.Root() == nil {
		return nil, ErrNoRoot
	}
	return &Document{doc: doc}, nil
}

// ParseString parses an XML document from a string
func ParseString(s string) (*Document, error) {
	return Parse([]byte(s))
}

// ReadFile parses the XML document stored at path
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Parse(data)
}

// FromTree wraps an existing etree document. The caller must not modify the
// tree afterwards.
func FromTree(doc *etree.Document) (*Document, error) {
	if doc == nil || doc.Root() == nil {
		return nil, ErrNoRoot
	}
	return &Document{doc: doc}, nil
}

// Root returns the root element
func (d *Document) Root() *etree.Element {
	return d.doc.Root()
}

// Tree returns the underlying etree document
func (d *Document) Tree() *etree.Document {
	return d.doc
}

// ValidateWith returns the declared schema version, or "" if none is declared
func (d *Document) ValidateWith() string {
	return d.Root().SelectAttrValue(AttrValidateWith, "")
}

// Copy returns a deep copy of the document
func (d *Document) Copy() *Document {
	return &Document{doc: d.doc.Copy()}
}

// WithValidateWith returns a copy declaring schema version name
func (d *Document) WithValidateWith(name string) *Document {
	c := d.Copy()
	c.Root().CreateAttr(AttrValidateWith, name)
	return c
}

// Bytes serializes the document
func (d *Document) Bytes() ([]byte, error) {
	return d.doc.WriteToBytes()
}

// String serializes the document, ignoring write errors
func (d *Document) String() string {
	s, _ := d.doc.WriteToString()
	return s
}

// Indented serializes a copy of the document indented by spaces
func (d *Document) Indented(spaces int) ([]byte, error) {
	c := d.doc.Copy()
	c.Indent(spaces)
	return c.WriteToBytes()
}

// Generation identifies a revision of the configuration
type Generation struct {
	AdminEpoch int
	Epoch      int
	NumUpdates int
}

func (g Generation) String() string {
	return fmt.Sprintf("%d.%d.%d", g.AdminEpoch, g.Epoch, g.NumUpdates)
}

// Compare orders generations by admin_epoch, epoch, then num_updates
func (g Generation) Compare(o Generation) int {
	for _, pair := range [][2]int{
		{g.AdminEpoch, o.AdminEpoch},
		{g.Epoch, o.Epoch},
		{g.NumUpdates, o.NumUpdates},
	} {
		switch {
		case pair[0] < pair[1]:
			return -1
		case pair[0] > pair[1]:
			return 1
		}
	}
	return 0
}

// Generation reads the generation counters from the root element. Missing or
// unparseable counters read as zero.
func (d *Document) Generation() Generation {
	root := d.Root()
	get := func(name string) int {
		v, err := strconv.Atoi(root.SelectAttrValue(name, "0"))
		if err != nil {
			return 0
		}
		return v
	}
	return Generation{
		AdminEpoch: get(AttrAdminEpoch),
		Epoch:      get(AttrEpoch),
		NumUpdates: get(AttrNumUpdates),
	}
}

// Section returns the element at path below the root, e.g.
// "configuration/crm_config", or nil.
func (d *Document) Section(path string) *etree.Element {
	return d.Root().FindElement(path)
}
