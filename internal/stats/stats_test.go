package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsUpdater(t *testing.T) {
	// expvar maps register globally, so the updater is built once for
	// the whole test
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")

	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")

	t.Run("counts gateway metrics", func(t *testing.T) {
		su.RegisterMetric("NumConnections")
		su.RegisterMetric("NumEventsSent")
		su.Run()

		su.Incr("NumConnections")
		su.Incr("NumConnections")
		su.Decr("NumConnections")
		su.Incr("NumEventsSent")

		value := func(name string) int64 {
			return su.vars.Get(name).(*expvar.Int).Value()
		}
		assert.Eventually(t, func() bool {
			return value("NumConnections") == 1 && value("NumEventsSent") == 1
		}, time.Second, 10*time.Millisecond, "expected the update actor to apply queued deltas")
	})

	t.Run("serves the metric map", func(t *testing.T) {
		rr := httptest.NewRecorder()
		su.expvarHandler(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))

		assert.Equal(t, http.StatusOK, rr.Code)

		var payload map[string]any
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
		assert.Contains(t, payload, "Uptime")
		assert.Contains(t, payload, "NumConnections")
	})
}
