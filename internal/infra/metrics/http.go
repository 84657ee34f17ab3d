package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(httpRequestsTotal) }

var httpRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route pattern, method and status.",
	},
	[]string{"route", "method", "status"},
)

func IncHTTPRequest(route, method string, status int) {
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
