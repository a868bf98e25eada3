// Package inject registers the services request handlers resolve through
// ectoinject. Each container gets its own id so several apps can share a process.
package inject

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/detection"
	"github.com/Ramsey-B/clover/pkg/merging"
)

type Services struct {
	Logger       ectologger.Logger
	Detector     *detection.Detector
	Orchestrator *merging.Orchestrator
}

// NewContainer registers s as singletons and returns the container id to
// activate on request contexts.
func NewContainer(s Services) (string, error) {
	container, err := ectoinject.NewDIContainer(ectocontainer.DIContainerConfig{
		ID:                       "clover-" + uuid.NewString(),
		AllowCaptiveDependencies: true,
		LoggerConfig: &ectocontainer.DIContainerLoggerConfig{
			Prefix:   "ectoinject",
			LogLevel: loglevel.WARN,
			Enabled:  true,
			LogFunc: func(ctx context.Context, _ string, msg string) {
				s.Logger.WithContext(ctx).Warn(msg)
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, s.Logger); err != nil {
		return "", err
	}
	if err := ectoinject.RegisterInstance[*detection.Detector](container, s.Detector); err != nil {
		return "", err
	}
	if err := ectoinject.RegisterInstance[*merging.Orchestrator](container, s.Orchestrator); err != nil {
		return "", err
	}

	return container.GetContainerID(), nil
}
