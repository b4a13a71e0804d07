package metrics

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// tableAggregates folds tables into the aggregate they belong to so dashboards
// read per concern (room workflow, templates, room instances) rather than per join table.
var tableAggregates = map[string]string{
	"rooms":                 "room",
	"stages":                "stage",
	"design_sections":       "stage",
	"ffe_templates":         "ffe_template",
	"ffe_template_sections": "ffe_template",
	"ffe_template_items":    "ffe_template",
	"room_ffe_instances":    "ffe_instance",
	"room_ffe_sections":     "ffe_instance",
	"room_ffe_items":        "ffe_item",
}

// UpdateDBStats updates connection pool metrics from a sql.DBStats snapshot.
// WaitCount and WaitDuration are cumulative in sql.DBStats; only the growth since
// the previous snapshot is added to the counters.
func (m *Metrics) UpdateDBStats(statsInterface interface{}) {
	m.safeExecute("UpdateDBStats", func() {
		stats, ok := statsInterface.(sql.DBStats)
		if !ok {
			return
		}
		m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
		m.DBConnectionsInUse.Set(float64(stats.InUse))
		m.DBConnectionsIdle.Set(float64(stats.Idle))
		m.DBConnectionsMax.Set(float64(stats.MaxOpenConnections))

		m.dbStatsMu.Lock()
		defer m.dbStatsMu.Unlock()
		if stats.WaitCount > m.lastWaitCount {
			m.DBConnectionWaitTotal.Add(float64(stats.WaitCount - m.lastWaitCount))
		}
		if stats.WaitDuration > m.lastWaitDuration {
			m.DBConnectionWaitDuration.Add((stats.WaitDuration - m.lastWaitDuration).Seconds())
		}
		m.lastWaitCount = stats.WaitCount
		m.lastWaitDuration = stats.WaitDuration
	})
}

// RecordDBQuery records query latency per operation and aggregate.
// A lookup that finds nothing is an answer, not a failure, and is not counted as an error.
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	m.safeExecute("RecordDBQuery", func() {
		operation = normalizeOperation(operation)
		aggregate := tableAggregate(table)
		m.DBQueryDuration.WithLabelValues(operation, aggregate).Observe(duration.Seconds())

		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			m.DBQueryErrors.WithLabelValues(operation, aggregate).Inc()
		}
	})
}

func normalizeOperation(op string) string {
	return strings.ToLower(op)
}

func tableAggregate(table string) string {
	if aggregate, ok := tableAggregates[strings.Trim(table, `"`)]; ok {
		return aggregate
	}
	return "other"
}
