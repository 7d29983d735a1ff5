package stats

import (
	"expvar"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")
}

func TestStatsUpdater_IncrDecr(t *testing.T) {
	su := &StatsUpdater{
		vars:       new(expvar.Map).Init(),
		updateChan: make(chan *metricsUpdateReq, 512),
	}
	su.Run()
	defer su.Stop()

	su.RegisterMetric("MessagesBroadcast")
	su.Incr("MessagesBroadcast")
	su.Incr("MessagesBroadcast")
	su.Decr("MessagesBroadcast")

	assert.Eventually(t, func() bool {
		metric, ok := su.vars.Get("MessagesBroadcast").(*expvar.Int)
		return ok && metric.Value() == 1
	}, time.Second, 10*time.Millisecond, "expected metric to settle at 1")
}
