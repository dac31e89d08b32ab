package domain

import "time"

// RecordStatus is the outcome of a single container's backup attempt.
type RecordStatus string

const (
	RecordSuccess RecordStatus = "success"
	RecordFailed  RecordStatus = "failed"
)

// BackupRecord is one entry in the Monitor's append-only ring of outcomes.
type BackupRecord struct {
	ContainerName   string       `json:"container_name"`
	Engine          string       `json:"engine,omitempty"`
	Priority        Priority     `json:"priority,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
	DurationSeconds float64      `json:"duration_seconds"`
	FileSizeBytes   int64        `json:"file_size_bytes"`
	FilePath        *string      `json:"file_path"`
	Status          RecordStatus `json:"status"`
	Error           *string      `json:"error"`
}

// AlertType names one of the three alerting rules the Monitor evaluates.
type AlertType string

const (
	AlertSlowBackup       AlertType = "slow_backup"
	AlertSmallBackup      AlertType = "small_backup"
	AlertRepeatedFailures AlertType = "repeated_failures"
)

// Alert is a derived, human-readable notice produced by the Monitor's
// alerting rules.
type Alert struct {
	ID        string    `json:"id"`
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is the Monitor's derived, point-in-time aggregate.
type Summary struct {
	Total        int       `json:"total"`
	Successful   int       `json:"successful"`
	Failed       int       `json:"failed"`
	SuccessRate  float64   `json:"success_rate"`
	AvgDuration  float64   `json:"avg_duration"`
	AvgSize      float64   `json:"avg_size"`
	TotalData    int64     `json:"total_data"`
	ActiveAlerts int       `json:"active_alerts"`
	LastUpdated  time.Time `json:"last_updated"`
}
