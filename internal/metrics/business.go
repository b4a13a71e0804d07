package metrics

import "time"

// IncrementInstanceMaterialized counts a new FFE instance by template source
func (m *Metrics) IncrementInstanceMaterialized(source string) {
	m.safeExecute("IncrementInstanceMaterialized", func() {
		m.FFEInstancesMaterialized.WithLabelValues(source).Inc()
	})
}

// IncrementItemUpdate counts an FFE item write per changed field
func (m *Metrics) IncrementItemUpdate(fields ...string) {
	m.safeExecute("IncrementItemUpdate", func() {
		for _, field := range fields {
			m.FFEItemUpdatesTotal.WithLabelValues(field).Inc()
		}
	})
}

// IncrementItemWriteConflict counts a rejected item write ("stale" or "race")
func (m *Metrics) IncrementItemWriteConflict(kind string) {
	m.safeExecute("IncrementItemWriteConflict", func() {
		m.FFEItemWriteConflictsTotal.WithLabelValues(kind).Inc()
	})
}

// RecordStageCleanup records the outcome of one duplicate stage cleanup run
func (m *Metrics) RecordStageCleanup(merges, stagesRemoved, conflicts int, duration time.Duration) {
	m.safeExecute("RecordStageCleanup", func() {
		m.StageMergesTotal.Add(float64(merges))
		m.StagesRemovedTotal.Add(float64(stagesRemoved))
		m.StageMergeConflictsTotal.Add(float64(conflicts))
		m.StageCleanupDuration.Observe(duration.Seconds())
	})
}

// SetRoomsTotal sets total rooms gauge
func (m *Metrics) SetRoomsTotal(count int64) {
	m.safeExecute("SetRoomsTotal", func() {
		m.RoomsTotal.Set(float64(count))
	})
}

// SetFFEInstancesTotal sets total FFE instances gauge
func (m *Metrics) SetFFEInstancesTotal(count int64) {
	m.safeExecute("SetFFEInstancesTotal", func() {
		m.FFEInstancesTotal.Set(float64(count))
	})
}
