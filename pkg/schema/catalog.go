package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/cibcore/pkg/version"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// NextName is the forward-compatibility sentinel: documents declaring a
	// version newer than any known one are treated as this version
	NextName = "pacemaker-next"

	// NoneName is the sentinel that disables validation
	NoneName = "none"

	definitionPrefix = version.SchemaPrefix
	transformPrefix  = "upgrade-"
	fileSuffix       = ".yaml"
)

// Kind distinguishes real schema versions from the two sentinels
type Kind int

const (
	KindReal Kind = iota
	KindNext
	KindNone
)

func (k Kind) String() string {
	switch k {
	case KindReal:
		return "real"
	case KindNext:
		return "next"
	case KindNone:
		return "none"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Version is one entry of the catalog
type Version struct {
	Name   string
	Kind   Kind
	Number version.Number // real versions only

	// Rules validates documents of this version. Versions with identical
	// definition files share the same *Definition. Nil for sentinels.
	Rules *Definition

	// Transform upgrades documents to the immediate successor, if any
	Transform *Transform

	Source string // definition file the entry was loaded from
	Remote bool   // found in the secondary directory
	Alias  bool   // symlink, or content-identical to another entry

	ordinal int
}

// Ordinal is the position of the version in the catalog
func (v *Version) Ordinal() int {
	return v.ordinal
}

// IsSentinel reports whether v is pacemaker-next or none
func (v *Version) IsSentinel() bool {
	return v.Kind != KindReal
}

// Source is one schema or transform file
type Source struct {
	// Name is the file name, e.g. pacemaker-3.0.yaml or upgrade-2.10.yaml
	Name string

	// Path identifies the file in errors and logs. Defaults to Name.
	Path string

	// RealPath is the symlink-resolved path, if known. Two sources with the
	// same RealPath are interchangeable.
	RealPath string

	Symlink bool
	Data    []byte
}

func (s Source) path() string {
	if s.Path != "" {
		return s.Path
	}
	return s.Name
}

// Catalog is an ordered, immutable list of schema versions. Real versions
// come first in ascending (major, minor) order, followed by pacemaker-next
// and none. All methods are safe for concurrent use.
type Catalog struct {
	versions []*Version
	byName   map[string]*Version
	newest   *Version
}

type loaded struct {
	src       Source
	remote    bool
	number    version.Number
	isDef     bool
	def       *Definition
	transform *Transform
	digest    uint64
}

// Assemble builds a catalog from in-memory sources. Secondary sources
// extend or override the primary ones. Assemble is all-or-nothing.
func Assemble(primary, secondary []Source) (*Catalog, error) {
	var files []*loaded
	for _, set := range []struct {
		sources []Source
		remote  bool
	}{{primary, false}, {secondary, true}} {
		for _, src := range set.sources {
			l, ok, err := classify(src, set.remote)
			if err != nil {
				return nil, err
			}
			if ok {
				files = append(files, l)
			}
		}
	}

	if err := compileAll(files); err != nil {
		return nil, err
	}

	hasPrimary := false
	for _, f := range files {
		if f.isDef && !f.remote {
			hasPrimary = true
			break
		}
	}
	if !hasPrimary {
		return nil, fmt.Errorf("%w: no schema definitions in primary directory", ErrDiscovery)
	}

	return merge(files)
}

// classify recognizes definition and transform files by name. Files with
// other names are ignored.
func classify(src Source, remote bool) (*loaded, bool, error) {
	if !strings.HasSuffix(src.Name, fileSuffix) {
		return nil, false, nil
	}
	base := strings.TrimSuffix(src.Name, fileSuffix)

	l := &loaded{src: src, remote: remote}
	var numText string
	switch {
	case base == NextName:
		// The next sentinel always validates; a definition file for it is
		// not used
		return nil, false, nil
	case strings.HasPrefix(base, definitionPrefix):
		l.isDef = true
		numText = strings.TrimPrefix(base, definitionPrefix)
	case strings.HasPrefix(base, transformPrefix):
		numText = strings.TrimPrefix(base, transformPrefix)
	default:
		return nil, false, nil
	}

	num, err := version.ParseNumber(numText)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrDiscovery, src.path(), err)
	}
	l.number = num
	return l, true, nil
}

// compileAll compiles every file concurrently. Content-identical files are
// compiled once and share the result.
func compileAll(files []*loaded) error {
	type unit struct {
		isDef     bool
		data      []byte
		path      string
		def       *Definition
		transform *Transform
	}
	units := make(map[[2]uint64]*unit)
	order := make([]*unit, 0, len(files))

	for _, f := range files {
		f.digest = digestOf(f.src.Data)
		kind := uint64(0)
		if f.isDef {
			kind = 1
		}
		key := [2]uint64{kind, f.digest}
		if _, ok := units[key]; !ok {
			u := &unit{isDef: f.isDef, data: f.src.Data, path: f.src.path()}
			units[key] = u
			order = append(order, u)
		}
	}

	var g errgroup.Group
	for _, u := range order {
		u := u
		g.Go(func() error {
			var err error
			if u.isDef {
				u.def, err = CompileDefinition(u.data)
			} else {
				u.transform, err = CompileTransform(u.data)
			}
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrDiscovery, u.path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, f := range files {
		kind := uint64(0)
		if f.isDef {
			kind = 1
		}
		u := units[[2]uint64{kind, f.digest}]
		f.def, f.transform = u.def, u.transform
	}
	return nil
}

// interchangeable reports whether two files for the same version may
// replace each other
func interchangeable(a, b *loaded) bool {
	if a.digest == b.digest {
		return true
	}
	return a.src.RealPath != "" && a.src.RealPath == b.src.RealPath
}

func merge(files []*loaded) (*Catalog, error) {
	defs := make(map[version.Number]*loaded)
	transforms := make(map[version.Number]*loaded)

	for _, f := range files {
		target := transforms
		if f.isDef {
			target = defs
		}
		if prev, ok := target[f.number]; ok {
			if !interchangeable(prev, f) {
				return nil, fmt.Errorf("%w: %s and %s", ErrDuplicateVersion, prev.src.path(), f.src.path())
			}
		}
		// Later files (secondary over primary) win
		target[f.number] = f
	}

	digestUsers := make(map[uint64]int)
	for _, f := range defs {
		digestUsers[f.digest]++
	}

	c := &Catalog{byName: make(map[string]*Version)}
	for num, f := range defs {
		c.versions = append(c.versions, &Version{
			Name:   num.SchemaName(),
			Kind:   KindReal,
			Number: num,
			Rules:  f.def,
			Source: f.src.path(),
			Remote: f.remote,
			Alias:  f.src.Symlink || digestUsers[f.digest] > 1,
		})
	}
	sort.Slice(c.versions, func(i, j int) bool {
		return c.versions[i].Number.Less(c.versions[j].Number)
	})
	c.newest = c.versions[len(c.versions)-1]

	for num, f := range transforms {
		v := c.lookupNumber(num)
		if v == nil {
			return nil, fmt.Errorf("%w: %s: transform for unknown version %s", ErrDiscovery, f.src.path(), num)
		}
		if v == c.newest {
			return nil, fmt.Errorf("%w: %s: transform from newest version %s has no target", ErrDiscovery, f.src.path(), v.Name)
		}
		v.Transform = f.transform
	}

	c.versions = append(c.versions,
		&Version{Name: NextName, Kind: KindNext},
		&Version{Name: NoneName, Kind: KindNone},
	)
	for i, v := range c.versions {
		v.ordinal = i
		c.byName[v.Name] = v
	}
	return c, nil
}

func (c *Catalog) lookupNumber(num version.Number) *Version {
	for _, v := range c.versions {
		if v.Kind == KindReal && v.Number == num {
			return v
		}
	}
	return nil
}

// Len returns the number of entries, sentinels included
func (c *Catalog) Len() int {
	return len(c.versions)
}

// ByOrdinal returns the entry at position i
func (c *Catalog) ByOrdinal(i int) (*Version, error) {
	if i < 0 || i >= len(c.versions) {
		return nil, fmt.Errorf("%w: %d (catalog has %d entries)", ErrOutOfRange, i, len(c.versions))
	}
	return c.versions[i], nil
}

// ByName returns the entry with the exact name
func (c *Catalog) ByName(name string) (*Version, error) {
	if v, ok := c.byName[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Versions returns every entry in ordinal order
func (c *Catalog) Versions() []*Version {
	out := make([]*Version, len(c.versions))
	copy(out, c.versions)
	return out
}

// Names returns the entry names in ordinal order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.versions))
	for i, v := range c.versions {
		names[i] = v.Name
	}
	return names
}

// Newest returns the newest real version
func (c *Catalog) Newest() *Version {
	return c.newest
}

// Oldest returns the oldest real version
func (c *Catalog) Oldest() *Version {
	return c.versions[0]
}

// Successor returns the entry following v, or nil for the last entry
func (c *Catalog) Successor(v *Version) *Version {
	i := v.ordinal + 1
	if i >= len(c.versions) || c.versions[v.ordinal] != v {
		return nil
	}
	return c.versions[i]
}

// BestSchemaFor maps the validate-with value of a document to a catalog
// entry. Exact names and "<major>.<minor>" shorthand are accepted. Versions
// newer than every known one map to pacemaker-next; versions older than
// every known one are unsupported.
func (c *Catalog) BestSchemaFor(declared string) (*Version, error) {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return nil, fmt.Errorf("%w: no version declared", ErrNotFound)
	}
	if v, ok := c.byName[declared]; ok {
		return v, nil
	}

	num, err := version.ParseSchemaName(declared)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, declared)
	}
	if v, ok := c.byName[num.SchemaName()]; ok {
		return v, nil
	}
	switch {
	case c.newest.Number.Less(num):
		return c.byName[NextName], nil
	case num.Less(c.Oldest().Number):
		return nil, fmt.Errorf("%w: %q is older than %s", ErrUnsupportedVersion, declared, c.Oldest().Name)
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, declared)
}

// LogKnownSchemas writes every entry to logger at debug level
func (c *Catalog) LogKnownSchemas(logger zerolog.Logger) {
	for _, v := range c.versions {
		logger.Debug().
			Int("ordinal", v.ordinal).
			Str("schema", v.Name).
			Str("kind", v.Kind.String()).
			Str("source", v.Source).
			Bool("remote", v.Remote).
			Bool("alias", v.Alias).
			Bool("transform", v.Transform != nil).
			Msg("Known schema")
	}
}
