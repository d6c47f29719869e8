package offersapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTransport_RequiresClient(t *testing.T) {
	_, err := BuildTransport(TransportOptions{})
	assert.Error(t, err)
}

func TestBuildTransport_Layers(t *testing.T) {
	plain, err := BuildTransport(TransportOptions{HTTPClient: http.DefaultClient})
	require.NoError(t, err)
	assert.IsType(t, &HTTPTransport{}, plain)

	limited, err := BuildTransport(TransportOptions{HTTPClient: http.DefaultClient, RequestsPerSecond: 5})
	require.NoError(t, err)
	assert.IsType(t, &RateLimitTransport{}, limited)
}

func TestRateLimitTransport_HonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)

	doer, err := BuildTransport(TransportOptions{HTTPClient: srv.Client(), RequestsPerSecond: 0.01, Burst: 1})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := doer.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	// the bucket is empty now; the next call must give up with its context
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = doer.Do(req)
	assert.Error(t, err)
}
