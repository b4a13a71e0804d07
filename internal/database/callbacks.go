package database

import (
	"time"

	"gorm.io/gorm"
)

const queryStartKey = "metrics:query_start"

// MetricsRecorder is an interface for recording database metrics
type MetricsRecorder interface {
	RecordDBQuery(operation, table string, duration time.Duration, err error)
	UpdateDBStats(stats interface{})
}

type registrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// RegisterMetricsCallbacks hooks query timing into the CRUD and raw callback
// chains of db. Soft deletes are reported as "delete".
func RegisterMetricsCallbacks(db *gorm.DB, recorder MetricsRecorder) error {
	cb := db.Callback()
	chains := []struct {
		operation     string
		before, after registrar
	}{
		{"select", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query")},
		{"insert", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create")},
		{"update", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update")},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete")},
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw")},
	}

	for _, chain := range chains {
		operation := chain.operation
		if err := chain.before.Register("metrics:"+operation+"_before", startTimer); err != nil {
			return err
		}
		err := chain.after.Register("metrics:"+operation+"_after", func(tx *gorm.DB) {
			recordQuery(tx, recorder, operation)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func startTimer(tx *gorm.DB) {
	tx.InstanceSet(queryStartKey, time.Now())
}

func recordQuery(tx *gorm.DB, recorder MetricsRecorder, operation string) {
	startTime, ok := tx.InstanceGet(queryStartKey)
	if !ok {
		return
	}
	started, ok := startTime.(time.Time)
	if !ok {
		return
	}
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}
	recorder.RecordDBQuery(operation, table, time.Since(started), tx.Error)
}

// StartDBStatsCollector publishes connection pool stats every interval until
// the returned channel is closed.
func StartDBStatsCollector(db *gorm.DB, recorder MetricsRecorder, interval time.Duration) chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		interval = 15 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					continue
				}
				recorder.UpdateDBStats(sqlDB.Stats())
			case <-done:
				return
			}
		}
	}()

	return done
}
