package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/cibcore/pkg/types"
	"github.com/cuemby/cibcore/pkg/version"
)

// ErrMalformedRule is returned when a rule or one of its expressions cannot
// be evaluated at all (unknown operation, missing bound, bad literal, ...).
var ErrMalformedRule = errors.New("malformed rule")

// defaultSpecScanSteps bounds the forward scan used to find when a
// date_spec changes its result.
const defaultSpecScanSteps = 4096

// Result is the outcome of evaluating a rule at a point in time
type Result struct {
	Applies bool

	// NextChange is the earliest time after RuleInput.Now at which the
	// result could differ, or nil if no reachable condition depends on time.
	NextChange *time.Time
}

// Evaluator evaluates rules. It holds no per-call state and is safe for
// concurrent use.
type Evaluator struct {
	specScanSteps int
}

// NewEvaluator creates a rule evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{specScanSteps: defaultSpecScanSteps}
}

// Evaluate reports whether rule holds at input.Now and when that could change.
// A nil rule always applies.
func (e *Evaluator) Evaluate(rule *types.Rule, input types.RuleInput) (Result, error) {
	if rule == nil {
		return Result{Applies: true}, nil
	}
	now := input.Now.Truncate(time.Second)
	var next *time.Time
	applies, err := e.evalRule(rule, input, now, &next)
	if err != nil {
		return Result{}, err
	}
	return Result{Applies: applies, NextChange: next}, nil
}

func malformed(id, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedRule, id, fmt.Sprintf(format, args...))
}

// noteChange folds a candidate change time into next, ignoring anything not
// strictly in the future.
func noteChange(next **time.Time, now, t time.Time) {
	if !t.After(now) {
		return
	}
	if *next == nil || t.Before(**next) {
		tt := t
		*next = &tt
	}
}

func (e *Evaluator) evalRule(rule *types.Rule, input types.RuleInput, now time.Time, next **time.Time) (bool, error) {
	op := rule.BooleanOp
	if op == "" {
		op = types.BooleanAnd
	}
	if op != types.BooleanAnd && op != types.BooleanOr {
		return false, malformed(rule.ID, "unknown boolean-op %q", rule.BooleanOp)
	}

	// A rule without conditions applies
	if len(rule.Expressions) == 0 {
		return true, nil
	}

	for _, expr := range rule.Expressions {
		ok, err := e.evalExpression(expr, input, now, next)
		if err != nil {
			return false, err
		}
		if op == types.BooleanAnd && !ok {
			return false, nil
		}
		if op == types.BooleanOr && ok {
			return true, nil
		}
	}
	return op == types.BooleanAnd, nil
}

func (e *Evaluator) evalExpression(expr types.Expression, input types.RuleInput, now time.Time, next **time.Time) (bool, error) {
	switch x := expr.(type) {
	case *types.Rule:
		if x == nil {
			break
		}
		return e.evalRule(x, input, now, next)
	case *types.DateExpression:
		if x == nil {
			break
		}
		return e.evalDate(x, now, next)
	case *types.AttributeExpression:
		if x == nil {
			break
		}
		return evalAttribute(x, input)
	case *types.ResourceExpression:
		if x == nil {
			break
		}
		return evalResource(x, input), nil
	case *types.OperationExpression:
		if x == nil {
			break
		}
		return evalOperation(x, input), nil
	case *types.MalformedExpression:
		if x == nil {
			break
		}
		return false, malformed(x.ID, "%s", x.Reason)
	default:
		if expr != nil {
			return false, malformed(expr.ExpressionID(), "unsupported expression type %T", expr)
		}
	}
	return false, malformed("", "nil expression")
}

func (e *Evaluator) evalDate(d *types.DateExpression, now time.Time, next **time.Time) (bool, error) {
	switch d.Operation {
	case types.DateGreaterThan:
		if d.Start == nil {
			return false, malformed(d.ID, "gt requires start")
		}
		start := d.Start.Truncate(time.Second)
		if now.After(start) {
			return true, nil
		}
		noteChange(next, now, start.Add(time.Second))
		return false, nil

	case types.DateLessThan:
		if d.End == nil {
			return false, malformed(d.ID, "lt requires end")
		}
		end := d.End.Truncate(time.Second)
		if now.Before(end) {
			noteChange(next, now, end)
			return true, nil
		}
		return false, nil

	case types.DateInRange, "":
		start, end, err := dateRange(d)
		if err != nil {
			return false, err
		}
		if start != nil && now.Before(*start) {
			noteChange(next, now, *start)
			return false, nil
		}
		if end != nil && now.After(*end) {
			return false, nil
		}
		if end != nil {
			noteChange(next, now, end.Add(time.Second))
		}
		return true, nil

	case types.DateSpecMatch:
		if d.Spec == nil {
			return false, malformed(d.ID, "date_spec requires a date_spec element")
		}
		if err := checkSpec(d.Spec); err != nil {
			return false, malformed(d.ID, "%v", err)
		}
		matched := specMatches(d.Spec, now)
		if t, ok := e.specChange(d.Spec, now, matched); ok {
			noteChange(next, now, t)
		}
		return matched, nil
	}
	return false, malformed(d.ID, "unknown date operation %q", d.Operation)
}

func dateRange(d *types.DateExpression) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if d.Start != nil {
		s := d.Start.Truncate(time.Second)
		start = &s
	}
	switch {
	case d.End != nil:
		en := d.End.Truncate(time.Second)
		end = &en
	case d.Duration != nil:
		if start == nil {
			return nil, nil, malformed(d.ID, "in_range duration requires start")
		}
		en := d.Duration.AddTo(*start)
		end = &en
	}
	if start == nil && end == nil {
		return nil, nil, malformed(d.ID, "in_range requires start or end")
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, malformed(d.ID, "in_range end is before start")
	}
	return start, end, nil
}

func evalAttribute(a *types.AttributeExpression, input types.RuleInput) (bool, error) {
	if a.Attribute == "" {
		return false, malformed(a.ID, "attribute expression without attribute")
	}
	actual, present := input.NodeAttrs[a.Attribute]

	switch a.Operation {
	case types.AttrDefined:
		return present, nil
	case types.AttrNotDefined:
		return !present, nil
	case types.AttrLessThan, types.AttrGreaterThan, types.AttrLessOrEqual,
		types.AttrGreaterOrEqual, types.AttrEqual, types.AttrNotEqual:
	default:
		return false, malformed(a.ID, "unknown attribute operation %q", a.Operation)
	}

	expected, haveExpected, err := referenceValue(a, input)
	if err != nil {
		return false, err
	}
	if !present || !haveExpected {
		// Only inequality holds against a missing value
		return a.Operation == types.AttrNotEqual && present != haveExpected, nil
	}

	typ := a.Type
	if typ == types.CompareDefault {
		typ = defaultType(a.Operation, actual, expected)
	}

	cmp, ok, err := compareValues(a.ID, typ, actual, expected)
	if err != nil || !ok {
		return false, err
	}

	switch a.Operation {
	case types.AttrLessThan:
		return cmp < 0, nil
	case types.AttrGreaterThan:
		return cmp > 0, nil
	case types.AttrLessOrEqual:
		return cmp <= 0, nil
	case types.AttrGreaterOrEqual:
		return cmp >= 0, nil
	case types.AttrEqual:
		return cmp == 0, nil
	default:
		return cmp != 0, nil
	}
}

func referenceValue(a *types.AttributeExpression, input types.RuleInput) (string, bool, error) {
	switch a.ValueSource {
	case "", types.SourceLiteral:
		return a.Value, true, nil
	case types.SourceParam:
		v, ok := input.Params[a.Value]
		return v, ok, nil
	case types.SourceMeta:
		v, ok := input.Meta[a.Value]
		return v, ok, nil
	}
	return "", false, malformed(a.ID, "unknown value-source %q", a.ValueSource)
}

func defaultType(op types.AttributeOperation, actual, expected string) types.ComparisonType {
	switch op {
	case types.AttrEqual, types.AttrNotEqual:
		return types.CompareString
	}
	if strings.Contains(actual, ".") || strings.Contains(expected, ".") {
		return types.CompareNumber
	}
	return types.CompareInteger
}

// compareValues returns the ordering of actual against expected. ok is false
// when the runtime value cannot be interpreted as typ; err is set when the
// expression itself is unusable.
func compareValues(id string, typ types.ComparisonType, actual, expected string) (int, bool, error) {
	switch typ {
	case types.CompareString:
		return strings.Compare(strings.ToLower(actual), strings.ToLower(expected)), true, nil

	case types.CompareInteger:
		want, ok := parseInteger(expected)
		if !ok {
			return 0, false, malformed(id, "value %q is not an integer", expected)
		}
		have, ok := parseInteger(actual)
		if !ok {
			return 0, false, nil
		}
		return cmpOrdered(have, want), true, nil

	case types.CompareNumber:
		want, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
		if err != nil {
			return 0, false, malformed(id, "value %q is not a number", expected)
		}
		have, err := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		if err != nil {
			return 0, false, nil
		}
		return cmpOrdered(have, want), true, nil

	case types.CompareVersion:
		want, err := version.ParseDotted(expected)
		if err != nil {
			return 0, false, malformed(id, "value %q is not a version", expected)
		}
		have, err := version.ParseDotted(actual)
		if err != nil {
			return 0, false, nil
		}
		return have.Compare(want), true, nil
	}
	return 0, false, malformed(id, "unknown comparison type %q", typ)
}

func parseInteger(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func evalResource(r *types.ResourceExpression, input types.RuleInput) bool {
	if r.Class != "" && r.Class != input.RscClass {
		return false
	}
	if r.Provider != "" && r.Provider != input.RscProvider {
		return false
	}
	if r.Agent != "" && r.Agent != input.RscAgent {
		return false
	}
	return true
}

func evalOperation(o *types.OperationExpression, input types.RuleInput) bool {
	if !input.HasOp {
		return false
	}
	if o.Name != "" && o.Name != input.OpName {
		return false
	}
	if o.Interval != nil && *o.Interval != input.OpInterval {
		return false
	}
	return true
}
