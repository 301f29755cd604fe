package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storefront-auth"
	"github.com/goliatone/go-storefront-auth/metrics"
)

func TestCollectorCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventLoginSuccess}))
	require.NoError(t, c.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventLoginSuccess}))
	require.NoError(t, c.Record(ctx, auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
		Metadata:  map[string]any{"error_code": auth.TextCodeInvalidCredentials},
	}))
	require.NoError(t, c.Record(ctx, auth.ActivityEvent{
		EventType: auth.ActivityEventRoleChanged,
		FromRole:  auth.RoleUser,
		ToRole:    auth.RolePremium,
	}))

	count, err := testutil.GatherAndCount(reg, "storefront_auth_events_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per event type")

	count, err = testutil.GatherAndCount(reg, "storefront_auth_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "successes never produce failure series")

	count, err = testutil.GatherAndCount(reg, "storefront_auth_role_changes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollectorFailureLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	_ = c.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventAccessDenied,
		Metadata:  map[string]any{"error_code": auth.TextCodeForbidden},
	})

	srv := httptest.NewServer(metrics.NewMux(reg))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	body, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(body), `storefront_auth_failures_total{code="FORBIDDEN",event="auth.access.denied"} 1`)
	assert.Contains(t, string(body), `storefront_auth_events_total{event="auth.access.denied"} 1`)
}
