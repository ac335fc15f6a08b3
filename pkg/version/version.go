package version

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// SchemaPrefix is the prefix every real schema version name carries.
const SchemaPrefix = "pacemaker-"

// Number is the major/minor pair embedded in a schema name such as
// "pacemaker-3.10". It is comparable so it can key maps.
type Number struct {
	Major int
	Minor int
}

// String renders the pair as "major.minor".
func (n Number) String() string {
	return fmt.Sprintf("%d.%d", n.Major, n.Minor)
}

// SchemaName renders the full schema version name.
func (n Number) SchemaName() string {
	return SchemaPrefix + n.String()
}

func (n Number) version() *goversion.Version {
	return goversion.Must(goversion.NewVersion(n.String()))
}

// Compare returns -1, 0 or 1 ordering n against o by major, then minor.
func (n Number) Compare(o Number) int {
	return n.version().Compare(o.version())
}

// Less reports whether n sorts before o.
func (n Number) Less(o Number) bool {
	return n.Compare(o) < 0
}

// ParseNumber parses "major.minor". Exactly two numeric components are
// accepted, without prefix, pre-release or build metadata.
func ParseNumber(s string) (Number, error) {
	v, err := goversion.NewVersion(s)
	if err != nil {
		return Number{}, fmt.Errorf("invalid schema version %q: %w", s, err)
	}
	if strings.HasPrefix(s, "v") || v.Prerelease() != "" || v.Metadata() != "" || strings.Count(s, ".") != 1 {
		return Number{}, fmt.Errorf("invalid schema version %q: expected major.minor", s)
	}
	segments := v.Segments()
	return Number{Major: segments[0], Minor: segments[1]}, nil
}

// ParseSchemaName parses "pacemaker-major.minor". The bare "major.minor"
// shorthand is accepted too.
func ParseSchemaName(name string) (Number, error) {
	return ParseNumber(strings.TrimPrefix(name, SchemaPrefix))
}

// ParseDotted parses a free-form dotted version such as "3.19.0" or
// "1.1.18-rc1". Surrounding whitespace is ignored.
func ParseDotted(s string) (*goversion.Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty version")
	}
	v, err := goversion.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("%q is not a dotted version", s)
	}
	return v, nil
}

// CompareDotted compares two dotted versions component by component.
// Missing components count as zero, so "2.0" equals "2".
func CompareDotted(a, b string) (int, error) {
	va, err := ParseDotted(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseDotted(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}
