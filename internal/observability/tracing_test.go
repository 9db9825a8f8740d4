package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTracingReturnsShutdown(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), Config{
		AgentHost:   "localhost:4318",
		ServiceName: "creatorlens-test",
		Environment: "test",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// No agent is listening in tests; shutdown must still return rather
	// than hang on the flush.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestSetupTracingDefaultsAgentHost(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), Config{}, nil)
	assert.NoError(t, err)
	assert.NotNil(t, shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
