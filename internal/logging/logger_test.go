package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestNewLoggers confirms both logger flavors build.
func TestNewLoggers(t *testing.T) {
	t.Parallel()

	for _, dev := range []bool{true, false} {
		logger, err := New(dev)
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Info("logger ready")
		_ = logger.Sync()
	}
}

// TestForService verifies the service fields are attached.
func TestForService(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	ForService(zap.New(core), "catalogsite", "1.2.0").Info("hello")

	fields := logs.All()[0].ContextMap()
	require.Equal(t, "catalogsite", fields["service"])
	require.Equal(t, "1.2.0", fields["version"])

	require.NotNil(t, ForService(nil, "x", ""))
}
