package redis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tokenCacheLookups counts token cache reads.
// Label:
//   - result: "hit" or "miss"
var tokenCacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "todo",
		Name:      "token_cache_total",
		Help:      "Total number of bearer token cache lookups, labelled by result (hit/miss).",
	},
	[]string{"result"},
)
