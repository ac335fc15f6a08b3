package cib

import (
	"testing"
	"time"

	"github.com/cuemby/cibcore/pkg/rules"
	"github.com/cuemby/cibcore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rscDefaults = `<cib validate-with="pacemaker-3.0">
  <configuration>
    <rsc_defaults>
      <meta_attributes id="low" score="1">
        <nvpair id="low-stickiness" name="resource-stickiness" value="1"/>
      </meta_attributes>
      <meta_attributes id="business-hours" score="INFINITY">
        <rule id="bh-rule" boolean-op="and">
          <date_expression id="bh-date" operation="date_spec">
            <date_spec id="bh-spec" hours="9-16" weekdays="1-5"/>
          </date_expression>
        </rule>
        <nvpair id="bh-stickiness" name="resource-stickiness" value="100"/>
        <nvpair id="bh-role" name="target-role"/>
      </meta_attributes>
      <meta_attributes id="same" score="1">
        <nvpair id="same-priority" name="priority" value="#default"/>
      </meta_attributes>
      <meta_attributes id-ref="low"/>
      <meta_attributes id-ref="nowhere"/>
    </rsc_defaults>
  </configuration>
</cib>`

func rscDefaultsSection(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseString(rscDefaults)
	require.NoError(t, err)
	return doc
}

func TestUnpackBlocks(t *testing.T) {
	doc := rscDefaultsSection(t)
	blocks := UnpackBlocks(doc.Section("configuration/rsc_defaults"), TagMetaAttributes, BlockOptions{
		SpecialID: "same",
	})

	// The unresolvable id-ref is skipped
	require.Len(t, blocks, 4)

	ids := []string{blocks[0].ID, blocks[1].ID, blocks[2].ID, blocks[3].ID}
	assert.Equal(t, []string{"low", "business-hours", "same", "low"}, ids)

	assert.Equal(t, 1, blocks[0].Score)
	assert.Equal(t, Infinity, blocks[1].Score)
	assert.True(t, blocks[2].Special)
	assert.False(t, blocks[0].Special)

	require.Len(t, blocks[1].Pairs, 2)
	assert.Equal(t, "100", *blocks[1].Pairs[0].Value)
	assert.Nil(t, blocks[1].Pairs[1].Value)
	assert.True(t, blocks[2].Pairs[0].IsDefault())

	require.NotNil(t, blocks[1].Rule)
	assert.Equal(t, "bh-rule", blocks[1].Rule.ID)
	require.Len(t, blocks[1].Rule.Expressions, 1)
	date, ok := blocks[1].Rule.Expressions[0].(*types.DateExpression)
	require.True(t, ok)
	assert.Equal(t, types.DateSpecMatch, date.Operation)
	assert.Equal(t, types.Range{Set: true, Low: 9, High: 16}, date.Spec.Hours)
	assert.Equal(t, types.Range{Set: true, Low: 1, High: 5}, date.Spec.WeekDays)

	// The referring set reuses the pairs of the referenced one
	assert.Equal(t, blocks[0].Pairs, blocks[3].Pairs)
}

func TestUnpackBlocksSortByScore(t *testing.T) {
	doc := rscDefaultsSection(t)
	blocks := UnpackBlocks(doc.Section("configuration/rsc_defaults"), TagMetaAttributes, BlockOptions{
		SortByScore: true,
		Overwrite:   true,
	})
	require.Len(t, blocks, 4)

	assert.Equal(t, "business-hours", blocks[0].ID)
	// Equal scores keep document order
	assert.Equal(t, []string{"low", "same", "low"}, []string{blocks[1].ID, blocks[2].ID, blocks[3].ID})
	for _, b := range blocks {
		assert.True(t, b.Overwrite)
	}
}

func TestUnpackBlocksNilParent(t *testing.T) {
	assert.Nil(t, UnpackBlocks(nil, TagMetaAttributes, BlockOptions{}))
}

func TestUnpackRuleExpressions(t *testing.T) {
	doc, err := ParseString(`<cib><rule id="r" boolean-op="or">
  <expression id="e1" attribute="#uname" operation="eq" value="node1"/>
  <expression id="e2" attribute="cpus" operation="gte" value="4" type="integer"/>
  <expression id="e3" attribute="ver" operation="lt" value="param-ver" value-source="param"/>
  <date_expression id="d1" operation="gt" start="2024-01-01"/>
  <date_expression id="d2" start="2024-01-01 00:00:00">
    <duration id="d2-dur" days="2" hours="12"/>
  </date_expression>
  <rsc_expression id="x1" class="ocf" provider="heartbeat" type="IPaddr2"/>
  <op_expression id="o1" name="monitor" interval="10s"/>
  <op_expression id="o2" name="start"/>
  <rule id="nested" boolean-op="and"/>
</rule></cib>`)
	require.NoError(t, err)

	rule := UnpackRule(doc.Root().SelectElement(TagRule))
	assert.Equal(t, "r", rule.ID)
	assert.Equal(t, types.BooleanOr, rule.BooleanOp)
	require.Len(t, rule.Expressions, 9)

	assert.Equal(t, &types.AttributeExpression{
		ID: "e1", Attribute: "#uname", Operation: types.AttrEqual, Value: "node1",
	}, rule.Expressions[0])
	assert.Equal(t, types.CompareInteger, rule.Expressions[1].(*types.AttributeExpression).Type)
	assert.Equal(t, types.SourceParam, rule.Expressions[2].(*types.AttributeExpression).ValueSource)

	gt := rule.Expressions[3].(*types.DateExpression)
	assert.Equal(t, types.DateGreaterThan, gt.Operation)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *gt.Start)

	inRange := rule.Expressions[4].(*types.DateExpression)
	assert.Equal(t, types.DateInRange, inRange.Operation)
	require.NotNil(t, inRange.Duration)
	assert.Equal(t, 2, inRange.Duration.Days)
	assert.Equal(t, 12, inRange.Duration.Hours)

	assert.Equal(t, &types.ResourceExpression{
		ID: "x1", Class: "ocf", Provider: "heartbeat", Agent: "IPaddr2",
	}, rule.Expressions[5])

	monitor := rule.Expressions[6].(*types.OperationExpression)
	require.NotNil(t, monitor.Interval)
	assert.Equal(t, 10*time.Second, *monitor.Interval)
	assert.Nil(t, rule.Expressions[7].(*types.OperationExpression).Interval)

	nested := rule.Expressions[8].(*types.Rule)
	assert.Equal(t, "nested", nested.ID)
	assert.Empty(t, nested.Expressions)
}

func TestUnpackRuleMalformed(t *testing.T) {
	doc, err := ParseString(`<cib><rule id="r">
  <date_expression id="bad-start" operation="gt" start="yesterday"/>
  <date_expression id="bad-spec" operation="date_spec"><date_spec id="s" hours="nine"/></date_expression>
  <date_expression id="bad-dur" start="2024-01-01"><duration id="dd" days="two"/></date_expression>
  <op_expression id="bad-interval" name="monitor" interval="often"/>
  <unknown id="what"/>
</rule></cib>`)
	require.NoError(t, err)

	rule := UnpackRule(doc.Root().SelectElement(TagRule))
	require.Len(t, rule.Expressions, 5)
	for _, expr := range rule.Expressions {
		_, ok := expr.(*types.MalformedExpression)
		assert.True(t, ok, "expression %s should be malformed", expr.ExpressionID())
	}

	_, err = rules.NewEvaluator().Evaluate(rule, types.RuleInput{Now: time.Now()})
	assert.ErrorIs(t, err, rules.ErrMalformedRule)
}

func TestUnpackRuleIDRef(t *testing.T) {
	doc, err := ParseString(`<cib>
  <rule id="shared"><expression id="e" attribute="a" operation="defined"/></rule>
  <meta_attributes id="m1"><rule id-ref="shared"/></meta_attributes>
  <meta_attributes id="m2"><rule id-ref="missing"/></meta_attributes>
</cib>`)
	require.NoError(t, err)

	blocks := UnpackBlocks(doc.Root(), TagMetaAttributes, BlockOptions{})
	require.Len(t, blocks, 2)

	require.NotNil(t, blocks[0].Rule)
	assert.Len(t, blocks[0].Rule.Expressions, 1)

	_, err = rules.NewEvaluator().Evaluate(blocks[1].Rule, types.RuleInput{})
	assert.ErrorIs(t, err, rules.ErrMalformedRule)
}

func TestUnpackRuleIDRefCycles(t *testing.T) {
	doc, err := ParseString(`<cib>
  <rule id="shared"><expression id="e" attribute="a" operation="defined"/></rule>
  <rule id="b"><rule id-ref="a"/></rule>
  <meta_attributes id="self"><rule id="r1"><rule id-ref="r1"/></rule></meta_attributes>
  <meta_attributes id="mutual"><rule id="a"><rule id-ref="b"/></rule></meta_attributes>
  <meta_attributes id="reuse"><rule id="twice" boolean-op="or"><rule id-ref="shared"/><rule id-ref="shared"/></rule></meta_attributes>
</cib>`)
	require.NoError(t, err)

	blocks := UnpackBlocks(doc.Root(), TagMetaAttributes, BlockOptions{})
	require.Len(t, blocks, 3)

	eval := rules.NewEvaluator()
	input := types.RuleInput{NodeAttrs: map[string]string{"a": "1"}}

	for _, block := range blocks[:2] {
		_, err := eval.Evaluate(block.Rule, input)
		assert.ErrorIs(t, err, rules.ErrMalformedRule, "block %s", block.ID)
	}

	inner := blocks[0].Rule.Expressions[0].(*types.Rule)
	bad, ok := inner.Expressions[0].(*types.MalformedExpression)
	require.True(t, ok)
	assert.Contains(t, bad.Reason, "r1")

	// Referencing the same rule from sibling branches is not a cycle
	reuse := blocks[2].Rule
	require.Len(t, reuse.Expressions, 2)
	res, err := eval.Evaluate(reuse, input)
	require.NoError(t, err)
	assert.True(t, res.Applies)
}

func TestUnpackMultipleRulesCombine(t *testing.T) {
	doc, err := ParseString(`<cib><instance_attributes id="ia">
  <rule id="r1"><expression id="e1" attribute="a" operation="defined"/></rule>
  <rule id="r2"><expression id="e2" attribute="b" operation="defined"/></rule>
  <nvpair id="p" name="x" value="1"/>
</instance_attributes></cib>`)
	require.NoError(t, err)

	blocks := UnpackBlocks(doc.Root(), TagInstanceAttributes, BlockOptions{})
	require.Len(t, blocks, 1)
	rule := blocks[0].Rule
	require.NotNil(t, rule)
	assert.Equal(t, types.BooleanAnd, rule.BooleanOp)
	assert.Len(t, rule.Expressions, 2)

	eval := rules.NewEvaluator()
	res, err := eval.Evaluate(rule, types.RuleInput{NodeAttrs: map[string]string{"a": "1"}})
	require.NoError(t, err)
	assert.False(t, res.Applies)

	res, err = eval.Evaluate(rule, types.RuleInput{NodeAttrs: map[string]string{"a": "1", "b": "2"}})
	require.NoError(t, err)
	assert.True(t, res.Applies)
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("9-16")
	require.NoError(t, err)
	assert.Equal(t, types.Range{Set: true, Low: 9, High: 16}, r)

	r, err = ParseRange(" 3 ")
	require.NoError(t, err)
	assert.Equal(t, types.Range{Set: true, Low: 3, High: 3}, r)

	for _, bad := range []string{"", "a-b", "1-", "-4"} {
		_, err := ParseRange(bad)
		assert.Error(t, err, bad)
	}
}
