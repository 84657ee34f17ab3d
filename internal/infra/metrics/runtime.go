package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(buildInfo, dbConnections) }

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "career_advisor_build_info",
			Help: "Always 1; labels carry the running version and commit.",
		},
		[]string{"version", "commit"},
	)

	dbConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Postgres pool connections by state (total, idle, in_use).",
		},
		[]string{"state"},
	)
)

func SetBuildInfo(version, commit string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit).Set(1)
}

func SetDBPoolStats(total, idle, inUse int32) {
	for state, v := range map[string]int32{"total": total, "idle": idle, "in_use": inUse} {
		dbConnections.WithLabelValues(state).Set(float64(v))
	}
}
