// Package discovery enumerates the container runtime and filters
// candidates down to backup-eligible containers.
package discovery

import (
	"context"
	"strings"

	"github.com/bnema/zerowrap"

	"github.com/baktainer/baktainer/internal/boundaries/out"
	"github.com/baktainer/baktainer/internal/domain"
)

// Discover lists every container the runtime knows about, keeps only
// running ones whose baktainer.backup label is true, 1, yes or on (any
// case), and wraps each as a Container descriptor. Labels come with the
// list result, so there is no separate per-container read; a failure of
// the listing itself propagates as *domain.RuntimeTimeout or
// *domain.RuntimeError.
func Discover(ctx context.Context, runtime out.ContainerRuntime, log zerowrap.Logger) ([]domain.Container, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:  "usecase",
		zerowrap.FieldAction: "Discover",
	})

	infos, err := runtime.ListContainers(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []domain.Container
	for _, info := range infos {
		if info.Status != string(domain.ContainerRunning) {
			continue
		}

		enabled, ok := info.Labels[domain.LabelBackup]
		if !ok {
			continue
		}
		if strings.ToLower(strings.TrimSpace(enabled)) != "true" &&
			strings.ToLower(strings.TrimSpace(enabled)) != "1" &&
			strings.ToLower(strings.TrimSpace(enabled)) != "yes" &&
			strings.ToLower(strings.TrimSpace(enabled)) != "on" {
			continue
		}

		candidates = append(candidates, domain.Container{
			ID:     info.ID,
			Name:   canonicalName(info.Names),
			Labels: info.Labels,
			State:  domain.ContainerRunning,
		})
	}

	log.Info().Int(zerowrap.FieldCount, len(candidates)).Msg("discovered backup-eligible containers")
	return candidates, nil
}

// canonicalName strips Docker's leading "/" separator from the first
// reported name.
func canonicalName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}
