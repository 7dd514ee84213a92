package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStartup(maxAttempts int) *Startup {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	s.unit = time.Millisecond
	return s
}

func TestStartup_StartsInDependencyOrder(t *testing.T) {
	s := newTestStartup(1)
	var started []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			started = append(started, name)
			return nil
		}
	}

	s.AddDependency(&Func{Name: "server", Requires: []string{"database", "redis"}, StartFunc: record("server")})
	s.AddDependency(&Func{Name: "database", StartFunc: record("database")})
	s.AddDependency(&Func{Name: "redis", StartFunc: record("redis")})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"database", "redis", "server"}, started)
	assert.Equal(t, StartupStatusStarted, s.Status("server"))
}

func TestStartup_RetriesUntilSuccess(t *testing.T) {
	s := newTestStartup(3)
	calls := 0
	s.AddDependency(&Func{Name: "database", StartFunc: func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestStartup_GivesUp(t *testing.T) {
	s := newTestStartup(2)
	s.AddDependency(&Func{Name: "database", StartFunc: func(context.Context) error {
		return errors.New("connection refused")
	}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, StartupStatusFailed, s.Status("database"))
}

func TestStartup_UnknownDependency(t *testing.T) {
	s := newTestStartup(1)
	s.AddDependency(&Func{Name: "server", Requires: []string{"kafka"}})

	assert.Error(t, s.Start(context.Background()))
}

func TestStartup_StopReverseOrder(t *testing.T) {
	s := newTestStartup(1)
	var stopped []string
	stop := func(name string) func(context.Context) error {
		return func(context.Context) error {
			stopped = append(stopped, name)
			return nil
		}
	}
	s.AddDependency(&Func{Name: "database", StopFunc: stop("database")})
	s.AddDependency(&Func{Name: "server", Requires: []string{"database"}, StopFunc: stop("server")})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"server", "database"}, stopped)
}
