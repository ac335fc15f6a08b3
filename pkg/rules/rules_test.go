package rules

import (
	"testing"
	"time"

	"github.com/cuemby/cibcore/pkg/iso8601"
	"github.com/cuemby/cibcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) time.Time {
	t, err := iso8601.ParseDateTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func dateRule(id string, exprs ...types.Expression) *types.Rule {
	return &types.Rule{ID: id, Expressions: exprs}
}

func TestEvaluateNilAndEmptyRule(t *testing.T) {
	e := NewEvaluator()

	res, err := e.Evaluate(nil, types.RuleInput{Now: at("2024-01-01 00:00:00")})
	require.NoError(t, err)
	assert.True(t, res.Applies)
	assert.Nil(t, res.NextChange)

	res, err = e.Evaluate(&types.Rule{ID: "empty"}, types.RuleInput{Now: at("2024-01-01 00:00:00")})
	require.NoError(t, err)
	assert.True(t, res.Applies)
	assert.Nil(t, res.NextChange)
}

func TestDateExpressions(t *testing.T) {
	start := at("2024-06-01 00:00:00")
	end := at("2024-06-30 23:59:59")
	week := iso8601.Duration{Weeks: 1}

	tests := []struct {
		name    string
		expr    *types.DateExpression
		now     string
		applies bool
		next    *time.Time
	}{
		{
			name:    "gt before start",
			expr:    &types.DateExpression{ID: "gt", Operation: types.DateGreaterThan, Start: &start},
			now:     "2024-05-31 12:00:00",
			applies: false,
			next:    ptr(start.Add(time.Second)),
		},
		{
			name:    "gt exactly at start is not yet true",
			expr:    &types.DateExpression{ID: "gt", Operation: types.DateGreaterThan, Start: &start},
			now:     "2024-06-01 00:00:00",
			applies: false,
			next:    ptr(start.Add(time.Second)),
		},
		{
			name:    "gt after start never changes",
			expr:    &types.DateExpression{ID: "gt", Operation: types.DateGreaterThan, Start: &start},
			now:     "2024-07-01 00:00:00",
			applies: true,
		},
		{
			name:    "lt before end",
			expr:    &types.DateExpression{ID: "lt", Operation: types.DateLessThan, End: &end},
			now:     "2024-06-10 00:00:00",
			applies: true,
			next:    ptr(end),
		},
		{
			name:    "lt after end",
			expr:    &types.DateExpression{ID: "lt", Operation: types.DateLessThan, End: &end},
			now:     "2024-07-10 00:00:00",
			applies: false,
		},
		{
			name:    "in_range before",
			expr:    &types.DateExpression{ID: "r", Operation: types.DateInRange, Start: &start, End: &end},
			now:     "2024-05-01 00:00:00",
			applies: false,
			next:    ptr(start),
		},
		{
			name:    "in_range inside",
			expr:    &types.DateExpression{ID: "r", Operation: types.DateInRange, Start: &start, End: &end},
			now:     "2024-06-15 00:00:00",
			applies: true,
			next:    ptr(end.Add(time.Second)),
		},
		{
			name:    "in_range after",
			expr:    &types.DateExpression{ID: "r", Operation: types.DateInRange, Start: &start, End: &end},
			now:     "2024-08-01 00:00:00",
			applies: false,
		},
		{
			name:    "in_range with duration",
			expr:    &types.DateExpression{ID: "d", Operation: types.DateInRange, Start: &start, Duration: &week},
			now:     "2024-06-03 00:00:00",
			applies: true,
			next:    ptr(at("2024-06-08 00:00:01")),
		},
		{
			name:    "in_range open start",
			expr:    &types.DateExpression{ID: "o", Operation: types.DateInRange, End: &end},
			now:     "2020-01-01 00:00:00",
			applies: true,
			next:    ptr(end.Add(time.Second)),
		},
	}

	e := NewEvaluator()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Evaluate(dateRule("rule", tt.expr), types.RuleInput{Now: at(tt.now)})
			require.NoError(t, err)
			assert.Equal(t, tt.applies, res.Applies)
			if tt.next == nil {
				assert.Nil(t, res.NextChange)
			} else {
				require.NotNil(t, res.NextChange)
				assert.True(t, tt.next.Equal(*res.NextChange), "next change %v, want %v", *res.NextChange, *tt.next)
			}
		})
	}
}

func TestShortCircuitLimitsNextChange(t *testing.T) {
	soon := at("2024-01-02 00:00:00")
	later := at("2024-03-01 00:00:00")
	e := NewEvaluator()
	now := types.RuleInput{Now: at("2024-01-01 00:00:00")}

	// and: the first false expression stops evaluation, so the lt on the
	// second expression never contributes
	and := &types.Rule{ID: "and", BooleanOp: types.BooleanAnd, Expressions: []types.Expression{
		&types.DateExpression{ID: "gt", Operation: types.DateGreaterThan, Start: &later},
		&types.DateExpression{ID: "lt", Operation: types.DateLessThan, End: &soon},
	}}
	res, err := e.Evaluate(and, now)
	require.NoError(t, err)
	assert.False(t, res.Applies)
	require.NotNil(t, res.NextChange)
	assert.True(t, later.Add(time.Second).Equal(*res.NextChange))

	// or: the first true expression stops evaluation
	or := &types.Rule{ID: "or", BooleanOp: types.BooleanOr, Expressions: []types.Expression{
		&types.DateExpression{ID: "lt", Operation: types.DateLessThan, End: &later},
		&types.DateExpression{ID: "lt2", Operation: types.DateLessThan, End: &soon},
	}}
	res, err = e.Evaluate(or, now)
	require.NoError(t, err)
	assert.True(t, res.Applies)
	require.NotNil(t, res.NextChange)
	assert.True(t, later.Equal(*res.NextChange))

	// and with everything true: minimum over all
	all := &types.Rule{ID: "all", Expressions: []types.Expression{
		&types.DateExpression{ID: "lt", Operation: types.DateLessThan, End: &later},
		&types.DateExpression{ID: "lt2", Operation: types.DateLessThan, End: &soon},
	}}
	res, err = e.Evaluate(all, now)
	require.NoError(t, err)
	assert.True(t, res.Applies)
	require.NotNil(t, res.NextChange)
	assert.True(t, soon.Equal(*res.NextChange))
}

func TestNestedRules(t *testing.T) {
	e := NewEvaluator()
	input := types.RuleInput{
		Now:       at("2024-01-01 00:00:00"),
		NodeAttrs: map[string]string{"site": "east", "cpus": "8"},
	}
	rule := &types.Rule{ID: "outer", BooleanOp: types.BooleanOr, Expressions: []types.Expression{
		&types.Rule{ID: "inner1", Expressions: []types.Expression{
			&types.AttributeExpression{ID: "a1", Attribute: "site", Operation: types.AttrEqual, Value: "west"},
		}},
		&types.Rule{ID: "inner2", Expressions: []types.Expression{
			&types.AttributeExpression{ID: "a2", Attribute: "cpus", Operation: types.AttrGreaterOrEqual, Value: "4"},
		}},
	}}

	res, err := e.Evaluate(rule, input)
	require.NoError(t, err)
	assert.True(t, res.Applies)
	assert.Nil(t, res.NextChange)
}

func TestAttributeExpressions(t *testing.T) {
	input := types.RuleInput{
		Now: at("2024-01-01 00:00:00"),
		NodeAttrs: map[string]string{
			"cpus":    "8",
			"load":    "0.75",
			"site":    "East",
			"version": "2.1.7",
			"bogus":   "lots",
		},
		Params: map[string]string{"min_cpus": "4"},
		Meta:   map[string]string{"site": "east"},
	}

	tests := []struct {
		name string
		expr *types.AttributeExpression
		want bool
	}{
		{"integer gt", &types.AttributeExpression{Attribute: "cpus", Operation: types.AttrGreaterThan, Value: "4"}, true},
		{"integer compares numerically", &types.AttributeExpression{Attribute: "cpus", Operation: types.AttrLessThan, Value: "10"}, true},
		{"number by decimal point", &types.AttributeExpression{Attribute: "load", Operation: types.AttrLessOrEqual, Value: "0.8"}, true},
		{"string eq is case-insensitive", &types.AttributeExpression{Attribute: "site", Operation: types.AttrEqual, Value: "east"}, true},
		{"string ne", &types.AttributeExpression{Attribute: "site", Operation: types.AttrNotEqual, Value: "west"}, true},
		{"version gte", &types.AttributeExpression{Attribute: "version", Operation: types.AttrGreaterOrEqual, Value: "2.1.10", Type: types.CompareVersion}, false},
		{"version lt", &types.AttributeExpression{Attribute: "version", Operation: types.AttrLessThan, Value: "2.1.10", Type: types.CompareVersion}, true},
		{"version pads missing components", &types.AttributeExpression{Attribute: "version", Operation: types.AttrGreaterThan, Value: "2.1", Type: types.CompareVersion}, true},
		{"unparseable runtime version", &types.AttributeExpression{Attribute: "bogus", Operation: types.AttrLessThan, Value: "2.0", Type: types.CompareVersion}, false},
		{"defined", &types.AttributeExpression{Attribute: "cpus", Operation: types.AttrDefined}, true},
		{"not_defined", &types.AttributeExpression{Attribute: "gpus", Operation: types.AttrNotDefined}, true},
		{"missing attribute fails eq", &types.AttributeExpression{Attribute: "gpus", Operation: types.AttrEqual, Value: "1"}, false},
		{"missing attribute satisfies ne", &types.AttributeExpression{Attribute: "gpus", Operation: types.AttrNotEqual, Value: "1"}, true},
		{"param source", &types.AttributeExpression{Attribute: "cpus", Operation: types.AttrGreaterOrEqual, Value: "min_cpus", ValueSource: types.SourceParam}, true},
		{"meta source", &types.AttributeExpression{Attribute: "site", Operation: types.AttrEqual, Value: "site", ValueSource: types.SourceMeta}, true},
		{"missing param", &types.AttributeExpression{Attribute: "cpus", Operation: types.AttrEqual, Value: "nope", ValueSource: types.SourceParam}, false},
		{"unparseable runtime value", &types.AttributeExpression{Attribute: "bogus", Operation: types.AttrGreaterThan, Value: "1"}, false},
	}

	e := NewEvaluator()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tt.expr.ID = "expr"
			res, err := e.Evaluate(dateRule("rule", tt.expr), input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Applies)
			assert.Nil(t, res.NextChange)
		})
	}
}

func TestResourceAndOperationExpressions(t *testing.T) {
	e := NewEvaluator()
	interval := 10 * time.Second
	input := types.RuleInput{
		Now:         at("2024-01-01 00:00:00"),
		RscClass:    "ocf",
		RscProvider: "heartbeat",
		RscAgent:    "IPaddr2",
		HasOp:       true,
		OpName:      "monitor",
		OpInterval:  interval,
	}

	res, err := e.Evaluate(dateRule("r", &types.ResourceExpression{ID: "rsc", Class: "ocf", Agent: "IPaddr2"}), input)
	require.NoError(t, err)
	assert.True(t, res.Applies)

	res, err = e.Evaluate(dateRule("r", &types.ResourceExpression{ID: "rsc", Provider: "pacemaker"}), input)
	require.NoError(t, err)
	assert.False(t, res.Applies)

	res, err = e.Evaluate(dateRule("r", &types.OperationExpression{ID: "op", Name: "monitor", Interval: &interval}), input)
	require.NoError(t, err)
	assert.True(t, res.Applies)

	input.HasOp = false
	res, err = e.Evaluate(dateRule("r", &types.OperationExpression{ID: "op", Name: "monitor"}), input)
	require.NoError(t, err)
	assert.False(t, res.Applies)
}

func TestMalformedRules(t *testing.T) {
	e := NewEvaluator()
	input := types.RuleInput{Now: at("2024-01-01 00:00:00"), NodeAttrs: map[string]string{"cpus": "4"}}
	end := at("2023-01-01 00:00:00")
	start := at("2024-01-01 00:00:00")

	bad := []*types.Rule{
		{ID: "op", BooleanOp: "xor", Expressions: []types.Expression{&types.ResourceExpression{ID: "r"}}},
		dateRule("gt", &types.DateExpression{ID: "gt", Operation: types.DateGreaterThan}),
		dateRule("lt", &types.DateExpression{ID: "lt", Operation: types.DateLessThan}),
		dateRule("range", &types.DateExpression{ID: "range", Operation: types.DateInRange}),
		dateRule("inverted", &types.DateExpression{ID: "inv", Operation: types.DateInRange, Start: &start, End: &end}),
		dateRule("unknown", &types.DateExpression{ID: "u", Operation: "sometime"}),
		dateRule("spec", &types.DateExpression{ID: "s", Operation: types.DateSpecMatch}),
		dateRule("attr", &types.AttributeExpression{ID: "a", Attribute: "cpus", Operation: "approx", Value: "4"}),
		dateRule("int", &types.AttributeExpression{ID: "a", Attribute: "cpus", Operation: types.AttrGreaterThan, Value: "four"}),
		dateRule("type", &types.AttributeExpression{ID: "a", Attribute: "cpus", Operation: types.AttrEqual, Value: "4", Type: "roman"}),
		dateRule("version", &types.AttributeExpression{ID: "a", Attribute: "cpus", Operation: types.AttrGreaterThan, Value: "2.x", Type: types.CompareVersion}),
		dateRule("source", &types.AttributeExpression{ID: "a", Attribute: "cpus", Operation: types.AttrEqual, Value: "4", ValueSource: "env"}),
		dateRule("nil", nil),
		dateRule("unpacked", &types.MalformedExpression{ID: "m", Reason: "bad start"}),
	}

	for _, rule := range bad {
		_, err := e.Evaluate(rule, input)
		assert.ErrorIs(t, err, ErrMalformedRule, "rule %s", rule.ID)
	}
}
