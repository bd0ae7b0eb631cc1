package auth_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-app-auth"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := auth.NewCollector(reg)

	c.RecordGuardDecision(auth.TransportHTTP, "allow", 5*time.Millisecond)
	c.RecordGuardDecision(auth.TransportGraphQL, "deny", time.Millisecond)
	c.RecordGuardDecision("", "deny", time.Millisecond)
	c.RecordRevocationError()
	c.RecordRoleDecision(auth.OpUsersList, false)
	c.RecordPush("expo", 3, 1)

	count, err := testutil.GatherAndCount(reg, "auth_guard_decisions_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = testutil.GatherAndCount(reg, "auth_revocation_errors_total", "auth_role_decisions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Equal(t, 3.0, pushTotal(t, reg, "success"))
	assert.Equal(t, 1.0, pushTotal(t, reg, "failure"))
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	auth.NewCollector(reg).RecordRevocationError()

	srv := httptest.NewServer(auth.MetricsHandler(reg))
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "auth_revocation_errors_total 1")
}
