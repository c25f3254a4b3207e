package middleware

import (
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/felixge/httpsnoop"

	"github.com/faciam-dev/geosurvey/pkg/metrics"
)

// Metrics records request counts and latency. Requests are labelled with
// the operation's path template so path parameters do not add series.
func Metrics(ctx huma.Context, next func(huma.Context)) {
	r, w := humachi.Unwrap(ctx)
	m := httpsnoop.CaptureMetricsFn(w, func(w http.ResponseWriter) {
		next(humachi.NewContext(ctx.Operation(), r, w))
	})
	path := ctx.Operation().Path
	metrics.APIRequests.WithLabelValues(r.Method, path, strconv.Itoa(m.Code)).Inc()
	metrics.APILatency.WithLabelValues(r.Method, path).Observe(m.Duration.Seconds())
}
