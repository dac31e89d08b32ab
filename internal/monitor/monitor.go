// Package monitor tracks backup outcomes in bounded, thread-safe rings
// and derives summary metrics and alerts from them.
package monitor

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baktainer/baktainer/internal/domain"
)

const (
	recordsCap        = 1000
	alertsCap         = 100
	slowBackupSeconds = 600
	smallBackupBytes  = 1024
	recentWindow      = 10
	repeatedFailures  = 3
	successRateWindow = 100
)

// Notifier is the minimal surface Monitor needs to emit events; satisfied
// by internal/notifier.Notifier.
type Notifier interface {
	NotifyComplete(record domain.BackupRecord)
	NotifyFailure(record domain.BackupRecord)
	NotifyAlert(alert domain.Alert)
}

// Monitor is the thread-safe recorder of backup outcomes. A single mutex
// guards the rings; the in-flight map is its own small lock since starts
// and completions interleave independently of record reads.
type Monitor struct {
	mu       sync.Mutex
	records  []domain.BackupRecord
	alerts   []domain.Alert
	inFlight sync.Map // container name -> time.Time

	notifier Notifier
	nowFn    func() time.Time
}

// New returns an empty Monitor, optionally wired to a Notifier.
func New(notifier Notifier) *Monitor {
	return &Monitor{notifier: notifier, nowFn: time.Now}
}

// Start records that a backup attempt began for name.
func (m *Monitor) Start(name, engine string) {
	m.inFlight.Store(name, m.nowFn())
}

// Complete records a successful backup and emits alerts/notifications.
func (m *Monitor) Complete(name, engine string, path string, size int64) domain.BackupRecord {
	duration := m.elapsed(name)
	p := path
	record := domain.BackupRecord{
		ContainerName:   name,
		Engine:          engine,
		Timestamp:       m.nowFn().UTC(),
		DurationSeconds: duration,
		FileSizeBytes:   size,
		FilePath:        &p,
		Status:          domain.RecordSuccess,
	}
	m.push(record)
	if m.notifier != nil {
		m.notifier.NotifyComplete(record)
	}
	return record
}

// Fail records a failed backup and emits alerts/notifications.
func (m *Monitor) Fail(name, engine string, cause error) domain.BackupRecord {
	duration := m.elapsed(name)
	msg := cause.Error()
	record := domain.BackupRecord{
		ContainerName:   name,
		Engine:          engine,
		Timestamp:       m.nowFn().UTC(),
		DurationSeconds: duration,
		Status:          domain.RecordFailed,
		Error:           &msg,
	}
	m.push(record)
	if m.notifier != nil {
		m.notifier.NotifyFailure(record)
	}
	return record
}

func (m *Monitor) elapsed(name string) float64 {
	started, ok := m.inFlight.LoadAndDelete(name)
	if !ok {
		return 0
	}
	return m.nowFn().Sub(started.(time.Time)).Seconds()
}

func (m *Monitor) push(record domain.BackupRecord) {
	m.mu.Lock()
	m.records = appendRing(m.records, record, recordsCap)
	alerts := m.evaluateAlertsLocked(record)
	m.mu.Unlock()

	for _, a := range alerts {
		if m.notifier != nil {
			m.notifier.NotifyAlert(a)
		}
	}
}

func (m *Monitor) evaluateAlertsLocked(record domain.BackupRecord) []domain.Alert {
	var raised []domain.Alert

	if record.Status == domain.RecordSuccess && record.DurationSeconds > slowBackupSeconds {
		raised = append(raised, m.addAlertLocked(domain.AlertSlowBackup,
			fmt.Sprintf("backup for %q took %.0fs", record.ContainerName, record.DurationSeconds)))
	}
	if record.Status == domain.RecordSuccess && record.FileSizeBytes < smallBackupBytes {
		raised = append(raised, m.addAlertLocked(domain.AlertSmallBackup,
			fmt.Sprintf("backup for %q is only %d bytes", record.ContainerName, record.FileSizeBytes)))
	}

	if record.Status == domain.RecordFailed {
		failures := 0
		recent := lastN(m.records, recentWindow)
		for _, r := range recent {
			if r.ContainerName == record.ContainerName && r.Status == domain.RecordFailed {
				failures++
			}
		}
		if failures >= repeatedFailures {
			raised = append(raised, m.addAlertLocked(domain.AlertRepeatedFailures,
				fmt.Sprintf("%q has failed %d times in the last %d attempts", record.ContainerName, failures, recentWindow)))
		}
	}

	return raised
}

func (m *Monitor) addAlertLocked(t domain.AlertType, msg string) domain.Alert {
	a := domain.Alert{ID: uuid.NewString(), Type: t, Message: msg, Timestamp: m.nowFn().UTC()}
	m.alerts = appendRing(m.alerts, a, alertsCap)
	return a
}

func appendRing[T any](ring []T, item T, cap int) []T {
	ring = append(ring, item)
	if len(ring) > cap {
		ring = ring[len(ring)-cap:]
	}
	return ring
}

func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Summary computes the derived aggregate over the most recent
// successRateWindow records of the ring.
func (m *Monitor) Summary() domain.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := lastN(m.records, successRateWindow)
	var successful, failed int
	var totalDuration, totalSize float64
	var totalData int64
	for _, r := range window {
		if r.Status == domain.RecordSuccess {
			successful++
			totalDuration += r.DurationSeconds
			totalSize += float64(r.FileSizeBytes)
			totalData += r.FileSizeBytes
		} else {
			failed++
		}
	}

	var successRate, avgDuration, avgSize float64
	if len(window) > 0 {
		successRate = 100 * float64(successful) / float64(len(window))
	}
	if successful > 0 {
		avgDuration = totalDuration / float64(successful)
		avgSize = totalSize / float64(successful)
	}

	return domain.Summary{
		Total:        len(window),
		Successful:   successful,
		Failed:       failed,
		SuccessRate:  successRate,
		AvgDuration:  avgDuration,
		AvgSize:      avgSize,
		TotalData:    totalData,
		ActiveAlerts: len(m.alerts),
		LastUpdated:  m.nowFn().UTC(),
	}
}

// PerContainer returns the most recent records for name.
func (m *Monitor) PerContainer(name string) []domain.BackupRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.BackupRecord
	for _, r := range m.records {
		if r.ContainerName == name {
			out = append(out, r)
		}
	}
	return out
}

// Recent returns up to the n most recent records, newest last.
func (m *Monitor) Recent(n int) []domain.BackupRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BackupRecord{}, lastN(m.records, n)...)
}

// Failures returns up to the n most recent failed records, newest last.
func (m *Monitor) Failures(n int) []domain.BackupRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	var failures []domain.BackupRecord
	for _, r := range m.records {
		if r.Status == domain.RecordFailed {
			failures = append(failures, r)
		}
	}
	return lastN(failures, n)
}

// Alerts returns a snapshot of the alert ring.
func (m *Monitor) Alerts() []domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Alert{}, m.alerts...)
}

// ExportFormat selects Export's output encoding.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// Export serializes the full record ring as format.
func (m *Monitor) Export(format ExportFormat) ([]byte, error) {
	m.mu.Lock()
	records := append([]domain.BackupRecord{}, m.records...)
	m.mu.Unlock()

	switch format {
	case ExportJSON:
		return json.Marshal(records)
	case ExportCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write([]string{"container_name", "engine", "timestamp", "duration_seconds", "file_size_bytes", "file_path", "status", "error"})
		for _, r := range records {
			path := ""
			if r.FilePath != nil {
				path = *r.FilePath
			}
			errStr := ""
			if r.Error != nil {
				errStr = *r.Error
			}
			_ = w.Write([]string{
				r.ContainerName, r.Engine, r.Timestamp.Format(time.RFC3339),
				fmt.Sprintf("%.3f", r.DurationSeconds), fmt.Sprintf("%d", r.FileSizeBytes),
				path, string(r.Status), errStr,
			})
		}
		w.Flush()
		return buf.Bytes(), w.Error()
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
}
