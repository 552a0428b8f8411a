package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func registerDBMetrics(db *sql.DB, logger *logrus.Logger) {
	for _, table := range []struct{ name, help string }{
		{"stations", "Stations in the catalog"},
		{"platforms", "Platforms in the catalog"},
		{"instruments", "Instruments in the catalog"},
		{"instrument_rois", "Regions of interest in the catalog"},
	} {
		query := "SELECT COUNT(*) FROM " + table.name
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + table.name + "_count",
				Help: table.help,
			},
			func() float64 {
				return queryCount(db, logger, query)
			},
		))
	}

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "admin_audit_entries_last_hour",
			Help: "Admin audit entries written during the last hour",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM admin_audit_log WHERE timestamp > NOW() - INTERVAL '1 hour'")
		},
	))
}

func queryCount(db *sql.DB, logger *logrus.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.WithError(err).Warn("metrics query failed")
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
