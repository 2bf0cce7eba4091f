package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOperation("login", accounts.KindNone, 20*time.Millisecond)
	c.RecordOperation("login", accounts.KindUnauthorized, 5*time.Millisecond)
	c.RecordOperation("login", accounts.KindUnauthorized, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("login", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("login", "unauthorized")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.latency))
}

func TestRecordCompensationAndDangling(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCompensation("create_identity", true)
	c.RecordCompensation("create_identity", false)
	c.RecordDanglingIdentity()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.compensations.WithLabelValues("create_identity", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.compensations.WithLabelValues("create_identity", "failed")))

	expected := `
# HELP accounts_dangling_identities_total Identities left without a profile after a failed compensation.
# TYPE accounts_dangling_identities_total counter
accounts_dangling_identities_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "accounts_dangling_identities_total"))
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordOperation("register", accounts.KindConflict, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `accounts_operations_total{operation="register",outcome="conflict"} 1`)
}
