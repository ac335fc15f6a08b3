package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Schema catalog metrics
	CatalogBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cib_schema_catalog_builds_total",
			Help: "Total number of schema catalog builds by result",
		},
		[]string{"result"},
	)

	CatalogVersions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cib_schema_catalog_versions",
			Help: "Number of schema versions in the active catalog by source",
		},
		[]string{"source"},
	)

	CatalogBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cib_schema_catalog_build_duration_seconds",
			Help:    "Time taken to discover and compile the schema catalog",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Document metrics
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cib_schema_validations_total",
			Help: "Total number of document validations by schema and result",
		},
		[]string{"schema", "result"},
	)

	UpgradeStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cib_schema_upgrade_steps_total",
			Help: "Total number of one-step schema upgrades by source schema",
		},
		[]string{"from"},
	)

	UpgradeStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cib_schema_upgrade_step_duration_seconds",
			Help:    "Time taken to apply one schema transform by source schema",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"from"},
	)

	DocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cib_documents_total",
			Help: "Total number of documents submitted for acceptance by result",
		},
		[]string{"result"},
	)

	RevisionsStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cib_revisions_stored",
			Help: "Number of accepted revisions in the revision store",
		},
	)

	// Resolution metrics
	RuleEvaluationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cib_rule_evaluation_errors_total",
			Help: "Total number of name/value blocks skipped because their rule could not be evaluated",
		},
	)

	ResolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cib_nvpair_resolve_duration_seconds",
			Help:    "Time taken to resolve name/value blocks into an attribute table",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
	)
)

func init() {
	prometheus.MustRegister(CatalogBuildsTotal)
	prometheus.MustRegister(CatalogVersions)
	prometheus.MustRegister(CatalogBuildDuration)
	prometheus.MustRegister(ValidationsTotal)
	prometheus.MustRegister(UpgradeStepsTotal)
	prometheus.MustRegister(UpgradeStepDuration)
	prometheus.MustRegister(DocumentsTotal)
	prometheus.MustRegister(RevisionsStored)
	prometheus.MustRegister(RuleEvaluationErrors)
	prometheus.MustRegister(ResolveDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
