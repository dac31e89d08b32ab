// Package docker implements the container runtime adapter against the
// real Docker Engine API.
package docker

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bnema/zerowrap"
	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/baktainer/baktainer/internal/boundaries/out"
	"github.com/baktainer/baktainer/internal/domain"
)

// Runtime implements out.ContainerRuntime against the Docker Engine API.
type Runtime struct {
	client *client.Client
	log    zerowrap.Logger
}

// TLSConfig carries optional client TLS material.
type TLSConfig struct {
	CA   string
	Cert string
	Key  string
}

// New creates a Runtime pointed at hostURL. If tlsCfg is non-nil the
// client verifies the peer using the supplied CA and authenticates with
// the client cert/key pair.
func New(hostURL string, tlsCfg *TLSConfig, log zerowrap.Logger) (*Runtime, error) {
	opts := []client.Opt{
		client.WithHost(hostURL),
		client.WithAPIVersionNegotiation(),
	}

	if tlsCfg != nil {
		httpClient, err := httpClientWithTLS(*tlsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS client: %w", err)
		}
		opts = append(opts, client.WithHTTPClient(httpClient), client.WithScheme("https"))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return &Runtime{client: cli, log: log}, nil
}

// httpClientWithTLS builds an *http.Client that verifies the daemon's
// peer certificate against cfg.CA and authenticates with cfg.Cert/cfg.Key.
// Cert/key validity (not-before/not-after, key match) was already checked
// by internal/config at startup; this only wires the material into the
// transport.
func httpClientWithTLS(cfg TLSConfig) (*http.Client, error) {
	pair, err := tls.X509KeyPair([]byte(cfg.Cert), []byte(cfg.Key))
	if err != nil {
		return nil, fmt.Errorf("loading client cert/key: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(cfg.CA)) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:      pool,
				Certificates: []tls.Certificate{pair},
				MinVersion:   tls.VersionTLS12,
			},
		},
	}, nil
}

// ListContainers returns every container the daemon knows about.
func (r *Runtime) ListContainers(ctx context.Context) ([]out.ContainerInfo, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "adapter",
		zerowrap.FieldAdapter: "docker",
		zerowrap.FieldAction:  "ListContainers",
	})
	log := zerowrap.FromCtx(ctx)

	containers, err := r.client.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, mapRuntimeErr("", log.WrapErr(err, "failed to list containers"))
	}

	infos := make([]out.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		infos = append(infos, out.ContainerInfo{
			ID:     c.ID,
			Names:  c.Names,
			Labels: c.Labels,
			Status: c.State,
		})
	}

	log.Debug().Int(zerowrap.FieldCount, len(infos)).Msg("listed containers")
	return infos, nil
}

// Exec runs argv with env inside containerID, streaming output to
// onStream and blocking until the process exits.
func (r *Runtime) Exec(ctx context.Context, containerID string, argv, env []string, onStream out.OnStream) (int, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:    "adapter",
		zerowrap.FieldAdapter:  "docker",
		zerowrap.FieldAction:   "Exec",
		zerowrap.FieldEntityID: containerID,
	})
	log := zerowrap.FromCtx(ctx)

	execConfig := container.ExecOptions{
		Cmd:          argv,
		Env:          env,
		AttachStdout: true,
		AttachStderr: true,
	}

	created, err := r.client.ContainerExecCreate(ctx, containerID, execConfig)
	if err != nil {
		return 0, mapRuntimeErr(containerID, log.WrapErr(err, "failed to create exec"))
	}

	attach, err := r.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return 0, mapRuntimeErr(containerID, log.WrapErr(err, "failed to attach to exec"))
	}
	defer attach.Close()

	if err := demux(ctx, attach.Reader, onStream); err != nil {
		return 0, mapRuntimeErr(containerID, log.WrapErr(err, "failed while streaming exec output"))
	}

	inspect, err := r.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return 0, mapRuntimeErr(containerID, log.WrapErr(err, "failed to inspect exec result"))
	}

	return inspect.ExitCode, nil
}

// demux splits the multiplexed stdout/stderr stream Docker's exec attach
// returns and forwards each chunk to onStream. If ctx is done when the copy
// ends, ctx's error is returned, since a stream cut short by cancellation
// can still end in a clean EOF.
func demux(ctx context.Context, r io.Reader, onStream out.OnStream) error {
	stdoutW := &streamWriter{kind: out.StreamStdout, onStream: onStream}
	stderrW := &streamWriter{kind: out.StreamStderr, onStream: onStream}

	_, err := stdcopy.StdCopy(stdoutW, stderrW, bufio.NewReader(r))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

type streamWriter struct {
	kind     out.StreamKind
	onStream out.OnStream
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.onStream(w.kind, p)
	return len(p), nil
}

// Version reports the daemon's version for the health probe.
func (r *Runtime) Version(ctx context.Context) (out.VersionInfo, error) {
	v, err := r.client.ServerVersion(ctx)
	if err != nil {
		return out.VersionInfo{}, mapRuntimeErr("", err)
	}
	return out.VersionInfo{Version: v.Version, APIVersion: v.APIVersion}, nil
}

// Ping is a trivial reachability check.
func (r *Runtime) Ping(ctx context.Context) error {
	_, err := r.client.Ping(ctx)
	if err != nil {
		return mapRuntimeErr("", err)
	}
	return nil
}

func mapRuntimeErr(containerID string, err error) error {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return domain.NewRuntimeTimeout(containerID, err)
	}
	if cerrdefs.IsNotFound(err) {
		return domain.NewRuntimeError(containerID, "container not found", err)
	}
	return domain.NewRuntimeError(containerID, "runtime call failed", err)
}

func isTimeout(err error) bool {
	type timeoutErr interface{ Timeout() bool }
	var t timeoutErr
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
