package inject

import (
	"context"
	"testing"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/detection"
	"github.com/Ramsey-B/clover/pkg/manifest"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/store/memstore"
)

func services() Services {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	s := memstore.New()
	detector := detection.NewDetector(s, matching.NewScorer(matching.AlgorithmLevenshtein), nil, detection.DefaultConfig(), logger)
	return Services{
		Logger:       logger,
		Detector:     detector,
		Orchestrator: merging.NewOrchestrator(s, manifest.Default(), logger),
	}
}

func TestNewContainer(t *testing.T) {
	first, second := services(), services()

	firstID, err := NewContainer(first)
	require.NoError(t, err)
	secondID, err := NewContainer(second)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	ctx, err := ectoinject.SetActiveContainer(context.Background(), secondID)
	require.NoError(t, err)

	ctx, orch, err := ectoinject.GetContext[*merging.Orchestrator](ctx)
	require.NoError(t, err)
	assert.Same(t, second.Orchestrator, orch)

	ctx, detector, err := ectoinject.GetContext[*detection.Detector](ctx)
	require.NoError(t, err)
	assert.Same(t, second.Detector, detector)

	_, logger, err := ectoinject.GetContext[ectologger.Logger](ctx)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestSetActiveContainer_Unknown(t *testing.T) {
	_, err := ectoinject.SetActiveContainer(context.Background(), "clover-missing")
	assert.Error(t, err)
}
