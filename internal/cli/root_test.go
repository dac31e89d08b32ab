package cli

import (
	"context"
	"testing"

	"github.com/bnema/zerowrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baktainer/baktainer/internal/app"
	"github.com/baktainer/baktainer/internal/orchestrator"
	"github.com/baktainer/baktainer/internal/scheduler"
)

type stubRunner struct {
	result orchestrator.CycleResult
	err    error
}

func (s stubRunner) RunOnce(ctx context.Context) (orchestrator.CycleResult, error) {
	return s.result, s.err
}

func newTestApp(t *testing.T, result orchestrator.CycleResult) *app.App {
	sched, err := scheduler.New("0 0 * * *", stubRunner{result: result}, zerowrap.Default())
	require.NoError(t, err)
	return &app.App{Scheduler: sched, Log: zerowrap.Default()}
}

func TestRunOnceReportsSuccessCounts(t *testing.T) {
	a := newTestApp(t, orchestrator.CycleResult{Succeeded: 3, Failed: 1})
	err := runOnce(a)
	require.NoError(t, err)
}

func TestRunOnceReturnsErrorWhenCycleAborted(t *testing.T) {
	a := newTestApp(t, orchestrator.CycleResult{Aborted: true, Reason: "runtime ping failed"})
	err := runOnce(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime ping failed")
}

func TestRootCommandRegistersNowFlag(t *testing.T) {
	a := newTestApp(t, orchestrator.CycleResult{})
	cmd := NewRootCommand(a)
	flag := cmd.PersistentFlags().Lookup("now")
	require.NotNil(t, flag)
	assert.Equal(t, "N", flag.Shorthand)
}
