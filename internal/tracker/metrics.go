package tracker

// MetricsRecorder receives domain events from the tracker for metric
// collection. The interface is satisfied by observability.Metrics; a nil
// recorder disables recording.
type MetricsRecorder interface {
	RecordInitialization(templateID string)
	RecordFieldUpdate(templateID string)
	RecordStageCompletion(templateID, stage string, actualMinutes int)
	RecordStageAdvance(templateID string, forced bool)
	RecordStatusChange(templateID, newStatus string, final bool)
	RecordNoteAdded()
	RecordBlockerAdded(severity string)
	RecordBlockerResolved()
}
