package instrumentation

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(t.Context(), Config{
		Enabled:        true,
		ServiceName:    "gmailward-test",
		ServiceVersion: "0.0.0",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func TestNewMetricsServer(t *testing.T) {
	tests := []struct {
		name        string
		config      MetricsServerConfig
		errContains string
	}{
		{
			name:   "valid config",
			config: MetricsServerConfig{Addr: ":9090", Provider: enabledProvider(t)},
		},
		{
			name:   "default addr",
			config: MetricsServerConfig{Provider: enabledProvider(t)},
		},
		{
			name:        "nil provider",
			config:      MetricsServerConfig{Addr: ":9090"},
			errContains: "provider is required",
		},
		{
			name: "disabled provider",
			config: MetricsServerConfig{
				Addr:     ":9090",
				Provider: mustProvider(t, Config{Enabled: false}),
			},
			errContains: "not enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewMetricsServer(tt.config)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, srv.Addr())
		})
	}
}

func mustProvider(t *testing.T, cfg Config) *Provider {
	t.Helper()
	p, err := NewProvider(t.Context(), cfg)
	require.NoError(t, err)
	return p
}

func TestMetricsEndpointServesRecordings(t *testing.T) {
	provider := enabledProvider(t)
	provider.Metrics().RecordAPICall(t.Context(), "list_messages", 15*time.Millisecond, true)

	srv, err := NewMetricsServer(MetricsServerConfig{Provider: provider})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.mux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "gmail_api_calls_total")
}

func TestMetricsServerHealthz(t *testing.T) {
	srv, err := NewMetricsServer(MetricsServerConfig{Provider: enabledProvider(t)})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.mux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
