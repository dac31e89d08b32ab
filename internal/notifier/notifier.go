// Package notifier fans outcome and alert events out to a configurable
// set of channels: log, webhook, Slack, Discord, Teams.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/zerowrap"

	"github.com/baktainer/baktainer/internal/domain"
)

// EventKind names the category of event being dispatched.
type EventKind string

const (
	EventSuccess EventKind = "success"
	EventFailure EventKind = "failure"
	EventWarning EventKind = "warning"
	EventHealth  EventKind = "health"
	EventSummary EventKind = "summary"
)

// Gates controls which event kinds are dispatched.
type Gates struct {
	Success bool
	Failure bool
	Warning bool
	Health  bool
	Summary bool
}

func (g Gates) allows(kind EventKind) bool {
	switch kind {
	case EventSuccess:
		return g.Success
	case EventFailure:
		return g.Failure
	case EventWarning:
		return g.Warning
	case EventHealth:
		return g.Health
	case EventSummary:
		return g.Summary
	default:
		return false
	}
}

// Event is the payload handed to every channel.
type Event struct {
	Kind      EventKind
	Container string
	Timestamp time.Time
	Status    string
	Message   string

	SizeBytes       int64
	DurationSeconds float64
	Path            string
	Err             string
	AvailableSpace  int64
	Directory       string
}

// Channel sends one Event; a channel's own failure is logged by the
// caller and never propagated to the others.
type Channel interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

// Notifier fans Events out to every enabled Channel, gated per event kind.
type Notifier struct {
	channels []Channel
	gates    Gates
	log      zerowrap.Logger
}

// New builds a Notifier from the configured channel names. Unknown names
// are skipped with a warning so a typo in BT_NOTIFICATION_CHANNELS never
// blocks startup.
func New(names []string, gates Gates, log zerowrap.Logger, urls ChannelURLs) *Notifier {
	n := &Notifier{gates: gates, log: log}
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "log":
			n.channels = append(n.channels, &logChannel{log: log})
		case "webhook":
			if urls.Webhook != "" {
				n.channels = append(n.channels, newHTTPChannel("webhook", urls.Webhook, genericPayload))
			}
		case "slack":
			if urls.Slack != "" {
				n.channels = append(n.channels, newHTTPChannel("slack", urls.Slack, slackPayload))
			}
		case "discord":
			if urls.Discord != "" {
				n.channels = append(n.channels, newHTTPChannel("discord", urls.Discord, discordPayload))
			}
		case "teams":
			if urls.Teams != "" {
				n.channels = append(n.channels, newHTTPChannel("teams", urls.Teams, teamsPayload))
			}
		case "email":
			// Email delivery is an external collaborator with no
			// configured transport in this system; log a warning and
			// skip rather than silently dropping the configuration.
			log.Warn().Msg("notification channel \"email\" is configured but not implemented; skipping")
		default:
			log.Warn().Str("channel", name).Msg("unknown notification channel, skipping")
		}
	}
	return n
}

// ChannelURLs carries the webhook endpoints for the HTTP-backed channels.
type ChannelURLs struct {
	Webhook string
	Slack   string
	Discord string
	Teams   string
}

func (n *Notifier) dispatch(kind EventKind, event Event) {
	if !n.gates.allows(kind) {
		return
	}
	event.Kind = kind
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, ch := range n.channels {
		if err := ch.Send(ctx, event); err != nil {
			n.log.Error().Err(err).Str("channel", ch.Name()).Msg("notifier channel dispatch failed")
		}
	}
}

// NotifyComplete emits a success event for record.
func (n *Notifier) NotifyComplete(record domain.BackupRecord) {
	path := ""
	if record.FilePath != nil {
		path = *record.FilePath
	}
	n.dispatch(EventSuccess, Event{
		Container:       record.ContainerName,
		Status:          string(record.Status),
		Message:         fmt.Sprintf("backup for %q completed", record.ContainerName),
		SizeBytes:       record.FileSizeBytes,
		DurationSeconds: record.DurationSeconds,
		Path:            path,
	})
}

// NotifyFailure emits a failure event for record.
func (n *Notifier) NotifyFailure(record domain.BackupRecord) {
	errStr := ""
	if record.Error != nil {
		errStr = *record.Error
	}
	n.dispatch(EventFailure, Event{
		Container:       record.ContainerName,
		Status:          string(record.Status),
		Message:         fmt.Sprintf("backup for %q failed", record.ContainerName),
		DurationSeconds: record.DurationSeconds,
		Err:             errStr,
	})
}

// NotifyAlert emits a warning event for alert.
func (n *Notifier) NotifyAlert(alert domain.Alert) {
	n.dispatch(EventWarning, Event{
		Status:  "warning",
		Message: alert.Message,
	})
}

// NotifyHealth emits a health event, e.g. from the scheduler's pre-flight
// probe.
func (n *Notifier) NotifyHealth(ok bool, message string) {
	status := "success"
	if !ok {
		status = "failure"
	}
	n.dispatch(EventHealth, Event{Status: status, Message: message})
}

// NotifySummary emits a cycle summary event.
func (n *Notifier) NotifySummary(message string) {
	n.dispatch(EventSummary, Event{Status: "success", Message: message})
}

// NotifyDiskSpace emits a warning event carrying free-space context, used
// by Rotation's free-space pass.
func (n *Notifier) NotifyDiskSpace(availableBytes int64, directory, message string) {
	n.dispatch(EventWarning, Event{
		Status:         "warning",
		Message:        message,
		AvailableSpace: availableBytes,
		Directory:      directory,
	})
}

type logChannel struct {
	log zerowrap.Logger
}

func (c *logChannel) Name() string { return "log" }

func (c *logChannel) Send(_ context.Context, event Event) error {
	entry := c.log.Info()
	if event.Status == "failure" || event.Status == "error" {
		entry = c.log.Error()
	} else if event.Status == "warning" {
		entry = c.log.Warn()
	}
	entry.Str("kind", string(event.Kind)).Str("container", event.Container).Msg(event.Message)
	return nil
}

type payloadFunc func(event Event) any

type httpChannel struct {
	name    string
	url     string
	client  *http.Client
	payload payloadFunc
}

func newHTTPChannel(name, url string, payload payloadFunc) *httpChannel {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	return &httpChannel{
		name: name,
		url:  url,
		client: &http.Client{
			Transport: &http.Transport{DialContext: dialer.DialContext},
			Timeout:   10 * time.Second,
		},
		payload: payload,
	}
}

func (c *httpChannel) Name() string { return c.name }

func (c *httpChannel) Send(ctx context.Context, event Event) error {
	body, err := json.Marshal(c.payload(event))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d", c.name, resp.StatusCode)
	}
	return nil
}

func statusColor(status string) string {
	switch status {
	case "success":
		return "good"
	case "failure", "error":
		return "danger"
	case "warning":
		return "warning"
	default:
		return "#439FE0"
	}
}

func genericPayload(event Event) any {
	return map[string]any{
		"kind":             event.Kind,
		"container":        event.Container,
		"timestamp":        event.Timestamp.Format(time.RFC3339),
		"status":           event.Status,
		"message":          event.Message,
		"size_bytes":       event.SizeBytes,
		"duration_seconds": event.DurationSeconds,
		"path":             event.Path,
		"error":            event.Err,
		"available_space":  event.AvailableSpace,
		"directory":        event.Directory,
	}
}

func slackPayload(event Event) any {
	return map[string]any{
		"attachments": []map[string]any{
			{
				"color": statusColor(event.Status),
				"title": fmt.Sprintf("baktainer: %s", event.Kind),
				"text":  event.Message,
				"fields": []map[string]any{
					{"title": "container", "value": event.Container, "short": true},
					{"title": "status", "value": event.Status, "short": true},
				},
				"ts": event.Timestamp.Unix(),
			},
		},
	}
}

func discordPayload(event Event) any {
	colorInt := 0x439FE0
	switch event.Status {
	case "success":
		colorInt = 0x2ECC71
	case "failure", "error":
		colorInt = 0xE74C3C
	case "warning":
		colorInt = 0xE67E22
	}
	return map[string]any{
		"embeds": []map[string]any{
			{
				"title":       fmt.Sprintf("baktainer: %s", event.Kind),
				"description": event.Message,
				"color":       colorInt,
				"timestamp":   event.Timestamp.Format(time.RFC3339),
				"fields": []map[string]any{
					{"name": "container", "value": orNA(event.Container), "inline": true},
					{"name": "status", "value": event.Status, "inline": true},
				},
			},
		},
	}
}

func teamsPayload(event Event) any {
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": teamsColor(event.Status),
		"summary":    event.Message,
		"sections": []map[string]any{
			{
				"activityTitle": fmt.Sprintf("baktainer: %s", event.Kind),
				"text":          event.Message,
				"facts": []map[string]any{
					{"name": "container", "value": orNA(event.Container)},
					{"name": "status", "value": event.Status},
				},
			},
		},
	}
}

func teamsColor(status string) string {
	switch status {
	case "success":
		return "2ECC71"
	case "failure", "error":
		return "E74C3C"
	case "warning":
		return "E67E22"
	default:
		return "439FE0"
	}
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
