/*
Package metrics exposes Prometheus metrics and component health for cibcore.

All collectors are registered with the default registry in init and are
served by Handler. They cover the three areas the configuration layer is
responsible for:

	cib_schema_catalog_builds_total{result}        catalog (re)builds
	cib_schema_catalog_versions{source}            entries in the active catalog
	cib_schema_catalog_build_duration_seconds      discovery + compile time
	cib_schema_validations_total{schema,result}    document validations
	cib_schema_upgrade_steps_total{from}           one-step upgrades applied
	cib_documents_total{result}                    documents submitted for acceptance
	cib_rule_evaluation_errors_total               blocks skipped because of bad rules
	cib_nvpair_resolve_duration_seconds            attribute resolution time

Rule evaluation errors never abort a resolution, so the counter above is the
place they become visible to operators.

HealthChecker aggregates the health of named components (the schema catalog
and the revision store) and serves /health and /ready style JSON handlers.
Timer is a small helper for observing operation durations:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ResolveDuration)
*/
package metrics
