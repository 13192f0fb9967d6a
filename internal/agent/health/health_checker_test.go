package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func passing(ctx context.Context) error { return nil }

func TestCheckerUnknownBeforeFirstPass(t *testing.T) {
	checker := New(Config{}, testLogger())
	checker.Register("knowledge_base", true, passing)

	assert.Equal(t, StateUnknown, checker.Status().Overall)
	assert.False(t, checker.Ready(), "never-checked server must not report ready")
}

func TestCheckerAllHealthy(t *testing.T) {
	checker := New(Config{}, testLogger())
	checker.Register("knowledge_base", true, passing)
	checker.Register("result_cache", false, passing)

	status := checker.RunChecks(context.Background())

	assert.Equal(t, StateHealthy, status.Overall)
	assert.True(t, checker.Ready())
	require.Len(t, status.Components, 2)
	assert.Equal(t, StateHealthy, status.Components["knowledge_base"].Status)
	assert.Equal(t, StateHealthy, status.Components["result_cache"].Status)
	assert.Equal(t, int64(1), status.CheckCount)
}

func TestCheckerCriticalFailureIsUnhealthy(t *testing.T) {
	checker := New(Config{}, testLogger())
	checker.Register("knowledge_base", true, func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	checker.Register("result_cache", false, passing)

	status := checker.RunChecks(context.Background())

	assert.Equal(t, StateUnhealthy, status.Overall)
	assert.False(t, checker.Ready())
	assert.Equal(t, StateUnhealthy, status.Components["knowledge_base"].Status)
	assert.Equal(t, "connection refused", status.Components["knowledge_base"].Error)
	assert.True(t, status.Components["knowledge_base"].Critical)
}

func TestCheckerOptionalFailureIsDegraded(t *testing.T) {
	checker := New(Config{}, testLogger())
	checker.Register("knowledge_base", true, passing)
	checker.Register("drug_directory", false, func(ctx context.Context) error {
		return errors.New("upstream timeout")
	})

	status := checker.RunChecks(context.Background())

	assert.Equal(t, StateDegraded, status.Overall)
	assert.True(t, checker.Ready(), "degraded server still serves analyses")
	assert.Equal(t, StateDegraded, status.Components["drug_directory"].Status)
	assert.Equal(t, StateHealthy, status.Components["knowledge_base"].Status)
}

func TestCheckerUnhealthyOutranksDegraded(t *testing.T) {
	checker := New(Config{}, testLogger())
	checker.Register("knowledge_base", true, func(ctx context.Context) error {
		return errors.New("down")
	})
	checker.Register("drug_directory", false, func(ctx context.Context) error {
		return errors.New("down")
	})

	status := checker.RunChecks(context.Background())
	assert.Equal(t, StateUnhealthy, status.Overall)
}

func TestCheckerProbeTimeout(t *testing.T) {
	checker := New(Config{Timeout: 20 * time.Millisecond}, testLogger())
	checker.Register("slow_component", false, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := checker.RunChecks(context.Background())

	assert.Equal(t, StateDegraded, status.Overall)
	assert.NotEmpty(t, status.Components["slow_component"].Error)
}

func TestCheckerNoChecksIsHealthy(t *testing.T) {
	checker := New(Config{}, testLogger())
	status := checker.RunChecks(context.Background())
	assert.Equal(t, StateHealthy, status.Overall)
}

func TestCheckerStartStop(t *testing.T) {
	checker := New(Config{Interval: 10 * time.Millisecond}, testLogger())
	checker.Register("knowledge_base", true, passing)

	checker.Start()
	defer checker.Stop()

	// The initial pass runs synchronously.
	assert.GreaterOrEqual(t, checker.Status().CheckCount, int64(1))
	assert.True(t, checker.Ready())

	checker.Stop()
	checker.Stop() // idempotent
}

func TestCheckerStatusIsACopy(t *testing.T) {
	checker := New(Config{}, testLogger())
	checker.Register("knowledge_base", true, passing)
	checker.RunChecks(context.Background())

	status := checker.Status()
	status.Components["knowledge_base"] = ComponentHealth{Status: StateUnhealthy}

	assert.Equal(t, StateHealthy, checker.Status().Components["knowledge_base"].Status)
}
