/*
Package types defines the data structures shared by the rule evaluator, the
name/value resolver and the CIB unpacking code.

# Rules

A Rule combines Expressions with a boolean operator. Expressions are a small
closed set of pointer types:

	*Rule                 nested rule
	*DateExpression       gt, lt, in_range, date_spec on RuleInput.Now
	*AttributeExpression  node attribute comparisons
	*ResourceExpression   resource agent class/provider/type
	*OperationExpression  operation name and interval

RuleInput carries everything a rule may look at, including the evaluation
time. Nothing in this module reads the wall clock while evaluating rules.

# Name/value blocks

NVPairBlock is one instance_attributes, meta_attributes or
cluster_property_set style block. NVPair.Value is a pointer so an absent
value can be told apart from an empty one; both an absent value and the
"#default" marker mean "leave whatever value is already there".

AttributeTable is produced fresh by every resolution and owned by the caller.
*/
package types
