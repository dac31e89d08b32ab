// Package strategy implements the per-engine dump-command generation and
// content-sniff heuristics, behind a small registry that is extensible at
// startup.
package strategy

import (
	"fmt"
	"strings"

	"github.com/baktainer/baktainer/internal/domain"
)

// Options carries the per-container values a Strategy needs to build a
// command.
type Options struct {
	User         string
	Password     string
	Database     string
	AllDatabases bool
}

// Strategy generates a dump command for one engine and sniffs its output
// for a sanity check.
type Strategy interface {
	// Command builds the BackupCommand for opts.
	Command(opts Options) (*domain.BackupCommand, error)
	// Sniff inspects up to the first 5 lowercased lines of dump output and
	// reports whether any recognized token was found. A false result is a
	// warning, never a failure.
	Sniff(firstLines []string) bool
}

// UnsupportedEngine is raised by the Factory for an engine with no
// registered strategy.
type UnsupportedEngine struct {
	Engine string
}

func (e *UnsupportedEngine) Error() string {
	return fmt.Sprintf("unsupported engine: %q", e.Engine)
}

// Registry maps engine name to Strategy. Registration is idempotent:
// registering the same name twice replaces the prior entry rather than
// erroring, so startup code can call Register unconditionally.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds or replaces the strategy for engine.
func (r *Registry) Register(engine string, s Strategy) {
	r.strategies[engine] = s
}

// Get returns the strategy for engine, or UnsupportedEngine.
func (r *Registry) Get(engine string) (Strategy, error) {
	s, ok := r.strategies[strings.ToLower(engine)]
	if !ok {
		return nil, &UnsupportedEngine{Engine: engine}
	}
	return s, nil
}

// DefaultRegistry returns a Registry with the built-in strategies
// registered: mysql, mariadb, postgres, sqlite, mongodb. The `custom`
// engine is intentionally excluded — see DESIGN.md's Open Question
// decisions. postgres-all is reached by setting Options.AllDatabases,
// not by a separate registry key.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(string(domain.EngineMySQL), &mysqlStrategy{})
	r.Register(string(domain.EngineMariaDB), &mariadbStrategy{})
	r.Register(string(domain.EnginePostgres), &postgresStrategy{})
	r.Register(string(domain.EnginePostgreSQL), &postgresStrategy{})
	r.Register(string(domain.EngineSQLite), &sqliteStrategy{})
	r.Register(string(domain.EngineMongoDB), &mongodbStrategy{})
	return r
}

func sniffAny(firstLines []string, tokens ...string) bool {
	joined := strings.ToLower(strings.Join(firstLines, "\n"))
	for _, tok := range tokens {
		if strings.Contains(joined, tok) {
			return true
		}
	}
	return false
}

// FirstNLines truncates lines to at most n entries, for callers staging
// the bytes Sniff will inspect.
func FirstNLines(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[:n]
}
