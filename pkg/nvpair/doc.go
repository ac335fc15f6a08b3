// Package nvpair merges rule-gated name/value blocks into one effective
// attribute table.
//
// Special blocks (for example the cluster's "cib-bootstrap-options" set) are
// processed before ordinary ones regardless of source order. A value of
// "#default" in any letter case, or an absent value, never creates or
// replaces an entry. Blocks with Overwrite set replace existing values; other
// blocks only fill names nobody has set yet.
//
// A block whose rule cannot be evaluated is skipped, reported in
// AttributeTable.Warnings and counted in cib_rule_evaluation_errors_total;
// the rest of the resolution continues.
package nvpair
