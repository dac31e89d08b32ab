// Package out defines output ports (interfaces) the core depends on but
// does not implement itself — the container runtime client is the sole
// concrete external collaborator this system's core consumes.
package out

import "context"

// ContainerInfo is the runtime's view of one container, as returned by
// ListContainers.
type ContainerInfo struct {
	ID     string
	Names  []string
	Labels map[string]string
	Status string
}

// StreamKind identifies which exec stream a chunk of bytes came from.
type StreamKind int

const (
	StreamStdout StreamKind = iota
	StreamStderr
)

// OnStream is invoked for every chunk of output Exec produces.
type OnStream func(kind StreamKind, chunk []byte)

// VersionInfo is the runtime's self-reported version, used by the
// Scheduler's pre-flight health probe.
type VersionInfo struct {
	Version    string
	APIVersion string
}

// ContainerRuntime is the contract the core consumes to enumerate
// containers and run commands inside them. TLS material (if configured)
// is applied by the concrete adapter when it is constructed, not through
// this interface.
type ContainerRuntime interface {
	// ListContainers returns every container the runtime knows about,
	// running or not; Discovery filters by state and label itself.
	ListContainers(ctx context.Context) ([]ContainerInfo, error)

	// Exec runs argv with env inside containerID, blocking until the
	// process exits. Output is streamed chunk-by-chunk to onStream.
	// Timeout and transport failures are mapped to *domain.RuntimeTimeout
	// and *domain.RuntimeError respectively by the adapter.
	Exec(ctx context.Context, containerID string, argv, env []string, onStream OnStream) (exitCode int, err error)

	// Version reports the runtime's version for the health probe.
	Version(ctx context.Context) (VersionInfo, error)

	// Ping is a trivial reachability check, used alongside Version in the
	// Scheduler's pre-flight probe.
	Ping(ctx context.Context) error
}
