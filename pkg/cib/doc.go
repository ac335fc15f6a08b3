/*
Package cib is the boundary between XML configuration documents and the
rest of cibcore.

A Document wraps a github.com/beevik/etree tree. The schema catalog reads
the declared version from the validate-with attribute of the root element,
validates the tree, and produces upgraded copies; a Document is never
modified in place by those operations.

# Rules and name/value sets

UnpackBlocks and UnpackRule turn the XML form of rules and name/value sets
into the types the rule evaluator and resolver work on:

	<meta_attributes id="web-meta" score="10">
	  <rule id="business-hours" boolean-op="and">
	    <date_expression id="bh-date" operation="date_spec">
	      <date_spec id="bh-spec" hours="9-16" weekdays="1-5"/>
	    </date_expression>
	  </rule>
	  <nvpair id="web-meta-role" name="target-role" value="Started"/>
	</meta_attributes>

Unpacking never fails on a bad rule. An expression that cannot be
unpacked is kept as a types.MalformedExpression; evaluating it reports
rules.ErrMalformedRule and the resolver skips only the block that carries
it. id-ref attributes on sets, pairs and rules are followed to the element
of the same kind with that id.

Scores use ParseScore: integers clamped to +/-1000000, with INFINITY
standing for the bound.
*/
package cib
