package monitor

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baktainer/baktainer/internal/domain"
)

type fakeNotifier struct {
	completes []domain.BackupRecord
	failures  []domain.BackupRecord
	alerts    []domain.Alert
}

func (f *fakeNotifier) NotifyComplete(r domain.BackupRecord) { f.completes = append(f.completes, r) }
func (f *fakeNotifier) NotifyFailure(r domain.BackupRecord)  { f.failures = append(f.failures, r) }
func (f *fakeNotifier) NotifyAlert(a domain.Alert)           { f.alerts = append(f.alerts, a) }

func TestCompleteRecordsSuccessAndComputesDuration(t *testing.T) {
	notif := &fakeNotifier{}
	m := New(notif)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.nowFn = func() time.Time { return start }

	m.Start("pg-app", "postgres")
	m.nowFn = func() time.Time { return start.Add(5 * time.Second) }
	record := m.Complete("pg-app", "postgres", "/backups/pg-app.sql", 4096)

	assert.Equal(t, domain.RecordSuccess, record.Status)
	assert.Equal(t, 5.0, record.DurationSeconds)
	assert.Equal(t, int64(4096), record.FileSizeBytes)
	require.Len(t, notif.completes, 1)
}

func TestFailRecordsFailureWithErrorMessage(t *testing.T) {
	notif := &fakeNotifier{}
	m := New(notif)
	m.Start("mysql-app", "mysql")

	record := m.Fail("mysql-app", "mysql", errors.New("connection refused"))
	assert.Equal(t, domain.RecordFailed, record.Status)
	require.NotNil(t, record.Error)
	assert.Equal(t, "connection refused", *record.Error)
	require.Len(t, notif.failures, 1)
}

func TestRepeatedFailuresRaiseAlertOnThirdFailureWithinWindow(t *testing.T) {
	notif := &fakeNotifier{}
	m := New(notif)

	for i := 0; i < 3; i++ {
		m.Start("flaky-app", "mysql")
		m.Fail("flaky-app", "mysql", errors.New("timeout"))
	}

	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertRepeatedFailures, alerts[0].Type)
	require.Len(t, notif.alerts, 1)
}

func TestSlowBackupRaisesAlert(t *testing.T) {
	m := New(nil)
	start := time.Now()
	m.nowFn = func() time.Time { return start }
	m.Start("slow-app", "postgres")
	m.nowFn = func() time.Time { return start.Add(601 * time.Second) }
	m.Complete("slow-app", "postgres", "/backups/slow-app.sql", 10_000_000)

	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertSlowBackup, alerts[0].Type)
}

func TestSmallBackupRaisesAlert(t *testing.T) {
	m := New(nil)
	m.Start("tiny-app", "sqlite")
	m.Complete("tiny-app", "sqlite", "/backups/tiny-app.sql", 100)

	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertSmallBackup, alerts[0].Type)
}

func TestSummaryComputesSuccessRateAndAverages(t *testing.T) {
	m := New(nil)

	m.Start("a", "mysql")
	m.Complete("a", "mysql", "/backups/a.sql", 2000)
	m.Start("b", "mysql")
	m.Fail("b", "mysql", errors.New("boom"))

	summary := m.Summary()
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 50.0, summary.SuccessRate)
	assert.Equal(t, 2000.0, summary.AvgSize)
	assert.Equal(t, int64(2000), summary.TotalData)
}

func TestRecordsRingIsBoundedAndKeepsNewest(t *testing.T) {
	m := New(nil)
	for i := 0; i < recordsCap+10; i++ {
		m.Start("app", "mysql")
		m.Complete("app", "mysql", "/backups/app.sql", int64(i))
	}

	recent := m.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(recordsCap+9), recent[0].FileSizeBytes)
}

func TestFailuresReturnsOnlyFailedRecords(t *testing.T) {
	m := New(nil)
	m.Start("ok-app", "mysql")
	m.Complete("ok-app", "mysql", "/backups/ok-app.sql", 10)
	m.Start("bad-app", "mysql")
	m.Fail("bad-app", "mysql", errors.New("boom"))

	failures := m.Failures(10)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad-app", failures[0].ContainerName)
}

func TestExportJSONRoundTrips(t *testing.T) {
	m := New(nil)
	m.Start("app", "postgres")
	m.Complete("app", "postgres", "/backups/app.sql", 512)

	data, err := m.Export(ExportJSON)
	require.NoError(t, err)

	var records []domain.BackupRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "app", records[0].ContainerName)
}

func TestExportCSVIncludesHeaderAndRows(t *testing.T) {
	m := New(nil)
	m.Start("app", "postgres")
	m.Complete("app", "postgres", "/backups/app.sql", 512)

	data, err := m.Export(ExportCSV)
	require.NoError(t, err)
	assert.Contains(t, string(data), "container_name")
	assert.Contains(t, string(data), "app")
}

func TestExportRejectsUnsupportedFormat(t *testing.T) {
	m := New(nil)
	_, err := m.Export("xml")
	require.Error(t, err)
}
