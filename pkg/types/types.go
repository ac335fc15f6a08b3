package types

import (
	"strings"
	"time"

	"github.com/cuemby/cibcore/pkg/iso8601"
)

// DefaultValue is the nvpair value meaning "use the inherited or default
// value". It is matched case-insensitively.
const DefaultValue = "#default"

// RuleInput is the context a rule is evaluated against
type RuleInput struct {
	// Now is the evaluation time. Rules never read the system clock.
	Now time.Time

	// Node attributes referenced by attribute expressions
	NodeAttrs map[string]string

	// Resource parameters and meta-attributes, used when an attribute
	// expression takes its comparison value from value-source="param" or "meta"
	Params map[string]string
	Meta   map[string]string

	// Resource agent the rule is evaluated for (rsc_expression)
	RscClass    string
	RscProvider string
	RscAgent    string

	// Operation the rule is evaluated for (op_expression)
	HasOp      bool
	OpName     string
	OpInterval time.Duration
}

// BooleanOp combines the expressions of a rule
type BooleanOp string

const (
	BooleanAnd BooleanOp = "and"
	BooleanOr  BooleanOp = "or"
)

// Expression is one condition inside a rule. Implemented by *Rule,
// *DateExpression, *AttributeExpression, *ResourceExpression,
// *OperationExpression and *MalformedExpression.
type Expression interface {
	ExpressionID() string
}

// Rule is a boolean combination of expressions
type Rule struct {
	ID          string
	BooleanOp   BooleanOp // empty means "and"
	Expressions []Expression
}

func (r *Rule) ExpressionID() string { return r.ID }

// DateOperation selects how a date expression compares the evaluation time
type DateOperation string

const (
	DateGreaterThan DateOperation = "gt"
	DateLessThan    DateOperation = "lt"
	DateInRange     DateOperation = "in_range"
	DateSpecMatch   DateOperation = "date_spec"
)

// DateExpression tests the evaluation time
type DateExpression struct {
	ID        string
	Operation DateOperation
	Start     *time.Time
	End       *time.Time
	Duration  *iso8601.Duration // in_range without End: End = Start + Duration
	Spec      *DateSpec
}

func (d *DateExpression) ExpressionID() string { return d.ID }

// Range is an inclusive integer range inside a date_spec. A zero Range is unset.
type Range struct {
	Set  bool
	Low  int
	High int
}

// Contains reports whether v is inside the range. Unset ranges contain everything.
func (r Range) Contains(v int) bool {
	return !r.Set || (v >= r.Low && v <= r.High)
}

// DateSpec matches calendar fields of the evaluation time. Every set field
// must match.
type DateSpec struct {
	ID        string
	Seconds   Range
	Minutes   Range
	Hours     Range
	MonthDays Range
	WeekDays  Range // 1 = Monday ... 7 = Sunday
	YearDays  Range
	Months    Range
	Weeks     Range // ISO week number
	Years     Range
}

// AttributeOperation is the comparison performed by an attribute expression
type AttributeOperation string

const (
	AttrLessThan       AttributeOperation = "lt"
	AttrGreaterThan    AttributeOperation = "gt"
	AttrLessOrEqual    AttributeOperation = "lte"
	AttrGreaterOrEqual AttributeOperation = "gte"
	AttrEqual          AttributeOperation = "eq"
	AttrNotEqual       AttributeOperation = "ne"
	AttrDefined        AttributeOperation = "defined"
	AttrNotDefined     AttributeOperation = "not_defined"
)

// ComparisonType selects how attribute values are compared
type ComparisonType string

const (
	CompareDefault ComparisonType = ""
	CompareString  ComparisonType = "string"
	CompareInteger ComparisonType = "integer"
	CompareNumber  ComparisonType = "number"
	CompareVersion ComparisonType = "version"
)

// ValueSource selects where the comparison value of an attribute expression
// comes from
type ValueSource string

const (
	SourceLiteral ValueSource = "literal"
	SourceParam   ValueSource = "param"
	SourceMeta    ValueSource = "meta"
)

// AttributeExpression compares a node attribute against a value
type AttributeExpression struct {
	ID          string
	Attribute   string
	Operation   AttributeOperation
	Value       string
	Type        ComparisonType
	ValueSource ValueSource
}

func (a *AttributeExpression) ExpressionID() string { return a.ID }

// ResourceExpression matches the resource agent. Empty fields match anything.
type ResourceExpression struct {
	ID       string
	Class    string
	Provider string
	Agent    string
}

func (r *ResourceExpression) ExpressionID() string { return r.ID }

// OperationExpression matches the operation. A nil Interval matches any interval.
type OperationExpression struct {
	ID       string
	Name     string
	Interval *time.Duration
}

func (o *OperationExpression) ExpressionID() string { return o.ID }

// MalformedExpression stands in for an expression that could not be
// unpacked. Evaluating it always fails, which makes the guarded block not
// apply.
type MalformedExpression struct {
	ID     string
	Reason string
}

func (m *MalformedExpression) ExpressionID() string { return m.ID }

// NVPair is a single name/value pair. A nil Value means the value is absent.
type NVPair struct {
	ID    string
	Name  string
	Value *string
}

// Pair builds an NVPair with a value
func Pair(name, value string) NVPair {
	return NVPair{Name: name, Value: &value}
}

// IsDefault reports whether the pair carries no usable value: either it is
// absent or it is the "#default" marker.
func (p NVPair) IsDefault() bool {
	return p.Value == nil || strings.EqualFold(*p.Value, DefaultValue)
}

// NVPairBlock is a named set of name/value pairs, optionally gated by a rule
type NVPairBlock struct {
	ID    string
	Score int
	Rule  *Rule
	Pairs []NVPair

	// Overwrite lets this block replace values set by earlier blocks
	Overwrite bool

	// Special blocks are processed before all ordinary blocks
	Special bool
}

// BlockWarning records a block that was skipped because its rule could not
// be evaluated
type BlockWarning struct {
	BlockID string
	Err     error
}

func (w BlockWarning) Error() string {
	return "block " + w.BlockID + ": " + w.Err.Error()
}

func (w BlockWarning) Unwrap() error { return w.Err }

// AttributeTable is the result of merging name/value blocks
type AttributeTable struct {
	Values map[string]string

	// NextChange is the earliest future time at which a contributing rule
	// could change its result; nil if nothing is time-dependent.
	NextChange *time.Time

	Warnings []BlockWarning
}

// Get returns the effective value of name
func (t AttributeTable) Get(name string) (string, bool) {
	v, ok := t.Values[name]
	return v, ok
}
