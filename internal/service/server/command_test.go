package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRun_MissingExplicitConfig(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{ConfigPath: "/nonexistent/update-server-settings.yaml"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "load settings")
}

func TestRun_GracefulShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() {
		errCh <- Run(ctx, &Options{
			ListenAddress: "127.0.0.1:0",
			ReleasesDir:   t.TempDir(),
		})
	}()

	// Give the server a moment to bind before asking it to stop.
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}
