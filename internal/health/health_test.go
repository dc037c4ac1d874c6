package health

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfvision/camtuner/internal/logger"
)

func TestRegistryAllHealthy(t *testing.T) {
	r := NewRegistry(logger.NewNopLogger())
	r.Register("a", func(ctx context.Context) error { return nil })
	r.Register("b", func(ctx context.Context) error { return nil })

	report := r.Run(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	require.Len(t, report.Checks, 2)
	// Checks come back in name order
	assert.Equal(t, "a", report.Checks[0].Name)
	assert.Equal(t, "b", report.Checks[1].Name)
}

func TestRegistryDegraded(t *testing.T) {
	r := NewRegistry(logger.NewNopLogger())
	r.Register("ok1", func(ctx context.Context) error { return nil })
	r.Register("ok2", func(ctx context.Context) error { return nil })
	r.Register("bad", func(ctx context.Context) error { return fmt.Errorf("boom") })

	report := r.Run(context.Background())

	assert.Equal(t, StatusDegraded, report.Status)
}

func TestRegistryUnhealthy(t *testing.T) {
	r := NewRegistry(logger.NewNopLogger())
	r.Register("ok", func(ctx context.Context) error { return nil })
	r.Register("bad1", func(ctx context.Context) error { return fmt.Errorf("boom") })
	r.Register("bad2", func(ctx context.Context) error { return fmt.Errorf("boom") })

	report := r.Run(context.Background())

	assert.Equal(t, StatusUnhealthy, report.Status)
	for _, check := range report.Checks {
		if check.Status == StatusUnhealthy {
			assert.NotEmpty(t, check.Error)
		}
	}
}

func TestDirectoryCheck(t *testing.T) {
	ok := DirectoryCheck(t.TempDir())
	assert.NoError(t, ok(context.Background()))

	missing := DirectoryCheck("/nonexistent/camtuner-test")
	assert.Error(t, missing(context.Background()))
}

func TestBackendCheck(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	up := BackendCheck(backend.URL)
	assert.NoError(t, up(context.Background()))

	down := BackendCheck("http://127.0.0.1:1")
	assert.Error(t, down(context.Background()))
}
