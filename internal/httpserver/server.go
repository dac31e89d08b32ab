// Package httpserver exposes a thin, read-only echo surface over the
// Monitor/Scheduler/Rotation state: health, status, metrics, and a
// dashboard projection. It never triggers a backup itself.
package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"github.com/bnema/zerowrap"

	"github.com/baktainer/baktainer/internal/boundaries/out"
	"github.com/baktainer/baktainer/internal/domain"
	"github.com/baktainer/baktainer/internal/monitor"
	"github.com/baktainer/baktainer/internal/rotation"
	"github.com/baktainer/baktainer/internal/scheduler"
)

// dashboardTmpl renders the minimal server-rendered dashboard page; parsed
// once at package init the way the teacher's render.GetHTMLRenderer parses
// once per template file.
var dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardHTML))

const dashboardHTML = `<!DOCTYPE html>
<html>
<head><title>baktainer</title></head>
<body>
<h1>baktainer</h1>
<section>
<p>next run: {{.NextRun}}</p>
<p>last run: {{.LastRun}}</p>
<p>running: {{.Running}}</p>
</section>
<section>
<h2>summary</h2>
<p>{{.Summary.Successful}}/{{.Summary.Total}} succeeded, {{.Summary.ActiveAlerts}} active alerts</p>
</section>
<section>
<h2>recent</h2>
<table>
<tr><th>container</th><th>engine</th><th>status</th><th>size</th><th>duration</th></tr>
{{range .Recent}}<tr><td>{{.Container}}</td><td>{{.Engine}}</td><td>{{.Status}}</td><td>{{.Size}}</td><td>{{.Duration}}</td></tr>
{{end}}
</table>
</section>
<section>
<h2>disk usage per container</h2>
<table>
<tr><th>container</th><th>bytes</th></tr>
{{range $name, $bytes := .PerContainerDisk}}<tr><td>{{$name}}</td><td>{{$bytes}}</td></tr>
{{end}}
</table>
</section>
</body>
</html>
`

// Server wraps an echo instance registered with the read-only dashboard
// routes.
type Server struct {
	echo *echo.Echo
	bind string
	port int
}

// Deps carries the read-only collaborators the dashboard projects.
type Deps struct {
	Monitor   *monitor.Monitor
	Scheduler *scheduler.Scheduler
	Runtime   out.ContainerRuntime
	BackupDir string
	Log       zerowrap.Logger
}

// New builds a Server bound to bind:port with routes registered against
// deps.
func New(bind string, port int, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	h := &handlers{deps: deps}
	e.GET("/healthz", h.healthz)
	e.GET("/status", h.status)
	e.GET("/metrics", h.metrics)
	e.GET("/dashboard", h.dashboard)

	return &Server{echo: e, bind: bind, port: port}
}

// Start blocks serving HTTP until the process is stopped or Start fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.bind, s.port)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the echo server, waiting for in-flight
// requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type handlers struct {
	deps Deps
}

func (h *handlers) healthz(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.deps.Runtime.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "healthy"})
}

func (h *handlers) status(c echo.Context) error {
	entry := h.deps.Scheduler.Status()
	return c.JSON(http.StatusOK, map[string]any{
		"cron_schedule": entry.Schedule.Expression,
		"last_run":      entry.LastRun,
		"next_run":      entry.NextRun,
		"running":       entry.Running,
	})
}

func (h *handlers) metrics(c echo.Context) error {
	summary := h.deps.Monitor.Summary()
	alerts := h.deps.Monitor.Alerts()
	return c.JSON(http.StatusOK, map[string]any{
		"total":          summary.Total,
		"successful":     summary.Successful,
		"failed":         summary.Failed,
		"success_rate":   summary.SuccessRate,
		"avg_duration_s": summary.AvgDuration,
		"avg_size":       humanize.Bytes(uint64(summary.AvgSize)),
		"total_data":     humanize.Bytes(uint64(summary.TotalData)),
		"active_alerts":  summary.ActiveAlerts,
		"last_updated":   summary.LastUpdated,
		"alerts":         alerts,
	})
}

func (h *handlers) dashboard(c echo.Context) error {
	summary := h.deps.Monitor.Summary()
	recent := h.deps.Monitor.Recent(20)
	entry := h.deps.Scheduler.Status()

	stats, err := rotation.StatisticsFor(h.deps.BackupDir)
	if err != nil {
		h.deps.Log.Warn().Err(err).Msg("dashboard: failed to compute rotation statistics")
	}

	type recentView struct {
		Container string
		Engine    string
		Status    string
		Size      string
		Duration  string
	}
	views := make([]recentView, 0, len(recent))
	for _, r := range recent {
		views = append(views, recentView{
			Container: r.ContainerName,
			Engine:    r.Engine,
			Status:    string(r.Status),
			Size:      humanize.Bytes(uint64(r.FileSizeBytes)),
			Duration:  fmt.Sprintf("%.1fs", r.DurationSeconds),
		})
	}

	perContainerDisk := make(map[string]int64, len(stats.PerContainer))
	for name, cs := range stats.PerContainer {
		perContainerDisk[name] = cs.SizeSum
	}

	data := struct {
		Summary          domain.Summary
		Recent           []recentView
		NextRun          string
		LastRun          string
		Running          bool
		PerContainerDisk map[string]int64
	}{
		Summary:          summary,
		Recent:           views,
		NextRun:          formatTime(entry.NextRun),
		LastRun:          formatTime(entry.LastRun),
		Running:          entry.Running,
		PerContainerDisk: perContainerDisk,
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, data); err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
