package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(pushDispatchTotal) }

var pushDispatchTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_dispatch_total",
		Help: "Push dispatch attempts by outcome.",
	},
	[]string{"outcome"}, // 'sent', 'failed', 'removed'
)

func IncPushDispatch(outcome string) {
	pushDispatchTotal.WithLabelValues(norm(outcome)).Inc()
}
