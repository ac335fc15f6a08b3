package rules

import (
	"testing"
	"time"

	"github.com/cuemby/cibcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specRule(spec *types.DateSpec) *types.Rule {
	return dateRule("spec-rule", &types.DateExpression{ID: "spec", Operation: types.DateSpecMatch, Spec: spec})
}

func TestDateSpecBusinessHours(t *testing.T) {
	e := NewEvaluator()
	spec := &types.DateSpec{
		Hours:    types.Range{Set: true, Low: 9, High: 16},
		WeekDays: types.Range{Set: true, Low: 1, High: 5},
	}

	// Wednesday 10:30: inside, flips when hour 17 starts
	res, err := e.Evaluate(specRule(spec), types.RuleInput{Now: at("2024-01-03 10:30:00")})
	require.NoError(t, err)
	assert.True(t, res.Applies)
	require.NotNil(t, res.NextChange)
	assert.Equal(t, at("2024-01-03 17:00:00"), *res.NextChange)

	// Wednesday 18:00: outside until Thursday 09:00
	res, err = e.Evaluate(specRule(spec), types.RuleInput{Now: at("2024-01-03 18:00:00")})
	require.NoError(t, err)
	assert.False(t, res.Applies)
	require.NotNil(t, res.NextChange)
	assert.Equal(t, at("2024-01-04 09:00:00"), *res.NextChange)

	// Saturday noon: outside until Monday 09:00
	res, err = e.Evaluate(specRule(spec), types.RuleInput{Now: at("2024-01-06 12:00:00")})
	require.NoError(t, err)
	assert.False(t, res.Applies)
	require.NotNil(t, res.NextChange)
	assert.Equal(t, at("2024-01-08 09:00:00"), *res.NextChange)
}

func TestDateSpecMonthsAndYears(t *testing.T) {
	e := NewEvaluator()

	res, err := e.Evaluate(specRule(&types.DateSpec{Months: types.Range{Set: true, Low: 12, High: 12}}),
		types.RuleInput{Now: at("2024-11-15 08:00:00")})
	require.NoError(t, err)
	assert.False(t, res.Applies)
	require.NotNil(t, res.NextChange)
	assert.Equal(t, at("2024-12-01 00:00:00"), *res.NextChange)

	// Past the last matching year: nothing will ever change
	res, err = e.Evaluate(specRule(&types.DateSpec{Years: types.Range{Set: true, Low: 2020, High: 2022}}),
		types.RuleInput{Now: at("2024-11-15 08:00:00")})
	require.NoError(t, err)
	assert.False(t, res.Applies)
	assert.Nil(t, res.NextChange)
}

func TestDateSpecEmptyMatchesAlways(t *testing.T) {
	res, err := NewEvaluator().Evaluate(specRule(&types.DateSpec{}), types.RuleInput{Now: time.Now()})
	require.NoError(t, err)
	assert.True(t, res.Applies)
	assert.Nil(t, res.NextChange)
}

func TestDateSpecScanBound(t *testing.T) {
	e := &Evaluator{specScanSteps: 10}
	// Seconds always match, hours never change within 10 seconds: the scan
	// gives up and asks to be re-evaluated at its last boundary
	spec := &types.DateSpec{
		Seconds: types.Range{Set: true, Low: 0, High: 59},
		Hours:   types.Range{Set: true, Low: 0, High: 12},
	}
	now := at("2024-01-01 06:00:00")
	res, err := e.Evaluate(specRule(spec), types.RuleInput{Now: now})
	require.NoError(t, err)
	assert.True(t, res.Applies)
	require.NotNil(t, res.NextChange)
	assert.Equal(t, now.Add(10*time.Second), *res.NextChange)
}

func TestDateSpecInvalidRange(t *testing.T) {
	_, err := NewEvaluator().Evaluate(specRule(&types.DateSpec{Hours: types.Range{Set: true, Low: 20, High: 3}}),
		types.RuleInput{Now: at("2024-01-01 00:00:00")})
	assert.ErrorIs(t, err, ErrMalformedRule)

	_, err = NewEvaluator().Evaluate(specRule(&types.DateSpec{Months: types.Range{Set: true, Low: 0, High: 13}}),
		types.RuleInput{Now: at("2024-01-01 00:00:00")})
	assert.ErrorIs(t, err, ErrMalformedRule)
}
