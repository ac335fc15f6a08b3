package cib

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/cuemby/cibcore/pkg/iso8601"
	"github.com/cuemby/cibcore/pkg/log"
	"github.com/cuemby/cibcore/pkg/types"
)

// Element and attribute names used by rules and name/value sets
const (
	TagRule           = "rule"
	TagExpression     = "expression"
	TagDateExpression = "date_expression"
	TagDateSpec       = "date_spec"
	TagDuration       = "duration"
	TagRscExpression  = "rsc_expression"
	TagOpExpression   = "op_expression"
	TagNVPair         = "nvpair"

	TagClusterProperties  = "cluster_property_set"
	TagMetaAttributes     = "meta_attributes"
	TagInstanceAttributes = "instance_attributes"
	TagUtilization        = "utilization"

	AttrID    = "id"
	AttrIDRef = "id-ref"
	AttrScore = "score"
	AttrName  = "name"
	AttrValue = "value"
)

// BlockOptions controls how name/value sets are unpacked
type BlockOptions struct {
	// SpecialID marks the set with this ID as special (processed first)
	SpecialID string

	// Overwrite lets later sets replace values of earlier ones
	Overwrite bool

	// SortByScore orders sets by descending score, keeping document order
	// for equal scores
	SortByScore bool
}

// UnpackBlocks converts the setTag children of parent into name/value
// blocks. Sets referring to another set with id-ref take that set's rule and
// pairs but keep their own position. Sets whose reference cannot be resolved
// are skipped with a warning.
func UnpackBlocks(parent *etree.Element, setTag string, opts BlockOptions) []*types.NVPairBlock {
	if parent == nil {
		return nil
	}
	logger := log.WithComponent("cib")

	var blocks []*types.NVPairBlock
	for _, set := range parent.SelectElements(setTag) {
		resolved, err := resolveRef(set)
		if err != nil {
			logger.Warn().Err(err).Str("set", set.GetPath()).Msg("Skipping name/value set")
			continue
		}

		block := &types.NVPairBlock{
			ID:        resolved.SelectAttrValue(AttrID, ""),
			Overwrite: opts.Overwrite,
		}
		if block.ID == "" {
			block.ID = set.SelectAttrValue(AttrIDRef, "")
		}
		block.Special = opts.SpecialID != "" && block.ID == opts.SpecialID

		if raw := set.SelectAttr(AttrScore); raw != nil {
			score, err := ParseScore(raw.Value)
			if err != nil {
				logger.Warn().Err(err).Str("set", block.ID).Msg("Treating unparseable score as 0")
			}
			block.Score = score
		}

		block.Rule = unpackSetRules(block.ID, resolved)
		block.Pairs = unpackPairs(resolved)
		blocks = append(blocks, block)
	}

	if opts.SortByScore {
		sort.SliceStable(blocks, func(i, j int) bool {
			return blocks[i].Score > blocks[j].Score
		})
	}
	return blocks
}

// unpackSetRules combines every rule of a set. More than one rule means all
// of them must apply.
func unpackSetRules(setID string, set *etree.Element) *types.Rule {
	elems := set.SelectElements(TagRule)
	switch len(elems) {
	case 0:
		return nil
	case 1:
		return UnpackRule(elems[0])
	}
	combined := &types.Rule{ID: setID, BooleanOp: types.BooleanAnd}
	for _, el := range elems {
		combined.Expressions = append(combined.Expressions, UnpackRule(el))
	}
	return combined
}

func unpackPairs(set *etree.Element) []types.NVPair {
	var pairs []types.NVPair
	for _, el := range set.SelectElements(TagNVPair) {
		resolved, err := resolveRef(el)
		if err != nil {
			logger := log.WithComponent("cib")
			logger.Warn().Err(err).Msg("Skipping name/value pair")
			continue
		}
		pair := types.NVPair{
			ID:   resolved.SelectAttrValue(AttrID, ""),
			Name: resolved.SelectAttrValue(AttrName, ""),
		}
		if v := resolved.SelectAttr(AttrValue); v != nil {
			value := v.Value
			pair.Value = &value
		}
		pairs = append(pairs, pair)
	}
	return pairs
}

// UnpackRule converts a rule element. It never fails: expressions that
// cannot be unpacked become types.MalformedExpression, so evaluating the
// rule reports them and the guarded block is skipped.
func UnpackRule(el *etree.Element) *types.Rule {
	return unpackRule(el, make(map[*etree.Element]bool))
}

// unpackRule tracks the rule elements being unpacked on the current branch
// in active. A rule that reaches one of them again through id-ref is
// malformed.
func unpackRule(el *etree.Element, active map[*etree.Element]bool) *types.Rule {
	id := el.SelectAttrValue(AttrID, "")
	resolved, err := resolveRef(el)
	if err != nil {
		return malformedRule(id, err.Error())
	}
	if id == "" {
		id = resolved.SelectAttrValue(AttrID, "")
	}
	if active[resolved] {
		return malformedRule(id, fmt.Sprintf("rule %q refers to itself through id-ref", resolved.SelectAttrValue(AttrID, "")))
	}
	active[resolved] = true
	defer delete(active, resolved)

	rule := &types.Rule{
		ID:        id,
		BooleanOp: types.BooleanOp(resolved.SelectAttrValue("boolean-op", "")),
	}
	for _, child := range resolved.ChildElements() {
		rule.Expressions = append(rule.Expressions, unpackExpression(child, active))
	}
	return rule
}

func malformedRule(id, reason string) *types.Rule {
	return &types.Rule{ID: id, Expressions: []types.Expression{
		&types.MalformedExpression{ID: id, Reason: reason},
	}}
}

func unpackExpression(el *etree.Element, active map[*etree.Element]bool) types.Expression {
	id := el.SelectAttrValue(AttrID, "")
	attr := func(name string) string {
		return el.SelectAttrValue(name, "")
	}

	switch el.Tag {
	case TagRule:
		return unpackRule(el, active)

	case TagExpression:
		return &types.AttributeExpression{
			ID:          id,
			Attribute:   attr("attribute"),
			Operation:   types.AttributeOperation(attr("operation")),
			Value:       attr("value"),
			Type:        types.ComparisonType(attr("type")),
			ValueSource: types.ValueSource(attr("value-source")),
		}

	case TagDateExpression:
		expr, err := unpackDate(el)
		if err != nil {
			return &types.MalformedExpression{ID: id, Reason: err.Error()}
		}
		return expr

	case TagRscExpression:
		return &types.ResourceExpression{
			ID:       id,
			Class:    attr("class"),
			Provider: attr("provider"),
			Agent:    attr("type"),
		}

	case TagOpExpression:
		op := &types.OperationExpression{ID: id, Name: attr("name")}
		if raw := el.SelectAttr("interval"); raw != nil {
			interval, err := iso8601.ParseInterval(raw.Value)
			if err != nil {
				return &types.MalformedExpression{ID: id, Reason: err.Error()}
			}
			op.Interval = &interval
		}
		return op
	}
	return &types.MalformedExpression{ID: id, Reason: fmt.Sprintf("unknown expression element <%s>", el.Tag)}
}

func unpackDate(el *etree.Element) (*types.DateExpression, error) {
	expr := &types.DateExpression{
		ID:        el.SelectAttrValue(AttrID, ""),
		Operation: types.DateOperation(el.SelectAttrValue("operation", string(types.DateInRange))),
	}

	if raw := el.SelectAttr("start"); raw != nil {
		t, err := iso8601.ParseDateTime(raw.Value)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		expr.Start = &t
	}
	if raw := el.SelectAttr("end"); raw != nil {
		t, err := iso8601.ParseDateTime(raw.Value)
		if err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}
		expr.End = &t
	}

	if d := el.SelectElement(TagDuration); d != nil {
		dur, err := unpackDuration(d)
		if err != nil {
			return nil, err
		}
		expr.Duration = &dur
	}
	if s := el.SelectElement(TagDateSpec); s != nil {
		spec, err := unpackDateSpec(s)
		if err != nil {
			return nil, err
		}
		expr.Spec = spec
	}
	return expr, nil
}

func unpackDuration(el *etree.Element) (iso8601.Duration, error) {
	var d iso8601.Duration
	fields := []struct {
		name string
		dst  *int
	}{
		{"years", &d.Years},
		{"months", &d.Months},
		{"weeks", &d.Weeks},
		{"days", &d.Days},
		{"hours", &d.Hours},
		{"minutes", &d.Minutes},
		{"seconds", &d.Seconds},
	}
	for _, f := range fields {
		raw := el.SelectAttr(f.name)
		if raw == nil {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw.Value))
		if err != nil {
			return d, fmt.Errorf("duration %s: invalid value %q", f.name, raw.Value)
		}
		*f.dst = v
	}
	return d, nil
}

func unpackDateSpec(el *etree.Element) (*types.DateSpec, error) {
	spec := &types.DateSpec{ID: el.SelectAttrValue(AttrID, "")}
	fields := []struct {
		name string
		dst  *types.Range
	}{
		{"seconds", &spec.Seconds},
		{"minutes", &spec.Minutes},
		{"hours", &spec.Hours},
		{"monthdays", &spec.MonthDays},
		{"weekdays", &spec.WeekDays},
		{"yeardays", &spec.YearDays},
		{"months", &spec.Months},
		{"weeks", &spec.Weeks},
		{"years", &spec.Years},
	}
	for _, f := range fields {
		raw := el.SelectAttr(f.name)
		if raw == nil {
			continue
		}
		r, err := ParseRange(raw.Value)
		if err != nil {
			return nil, fmt.Errorf("date_spec %s: %w", f.name, err)
		}
		*f.dst = r
	}
	return spec, nil
}

// ParseRange parses a date_spec field value, "N" or "N-M"
func ParseRange(s string) (types.Range, error) {
	s = strings.TrimSpace(s)
	lowText, highText, isRange := strings.Cut(s, "-")
	low, err := strconv.Atoi(strings.TrimSpace(lowText))
	if err != nil {
		return types.Range{}, fmt.Errorf("invalid range %q", s)
	}
	if !isRange {
		return types.Range{Set: true, Low: low, High: low}, nil
	}
	high, err := strconv.Atoi(strings.TrimSpace(highText))
	if err != nil {
		return types.Range{}, fmt.Errorf("invalid range %q", s)
	}
	return types.Range{Set: true, Low: low, High: high}, nil
}

// resolveRef follows an id-ref attribute to the element of the same tag with
// that id. Elements without id-ref resolve to themselves.
func resolveRef(el *etree.Element) (*etree.Element, error) {
	ref := el.SelectAttrValue(AttrIDRef, "")
	if ref == "" {
		return el, nil
	}
	top := el
	for top.Parent() != nil {
		top = top.Parent()
	}
	for _, candidate := range top.FindElements("//" + el.Tag) {
		if candidate != el && candidate.SelectAttrValue(AttrID, "") == ref {
			return candidate, nil
		}
	}
	return nil, fmt.Errorf("<%s> id-ref %q does not match any element", el.Tag, ref)
}
