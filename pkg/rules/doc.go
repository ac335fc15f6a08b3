/*
Package rules evaluates CIB rules against a RuleInput.

Evaluate returns whether a rule holds at RuleInput.Now together with the
earliest later instant at which that answer could change:

	res, err := rules.NewEvaluator().Evaluate(rule, types.RuleInput{Now: now})
	if errors.Is(err, rules.ErrMalformedRule) {
		// treat the guarded block as not applying
	}

Only sub-conditions that are actually evaluated contribute to NextChange:
"and" stops at the first false expression and "or" at the first true one.
Date comparisons work at one-second resolution, like the CIB date format.

For date_spec expressions the change time is found by stepping forward
over the boundaries of the finest constrained field (second, minute, hour,
day, month or year). The scan is bounded; when it runs out the last boundary
examined is reported, which is early but never late.
*/
package rules
