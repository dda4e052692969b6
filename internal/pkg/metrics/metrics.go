package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal 按方法、路由、状态码统计请求数。
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todolist_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration 请求耗时分布。
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "todolist_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthFailuresTotal 认证失败次数（reason: missing_token / invalid_token / expired_token / unknown_user / bad_credentials）。
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todolist_auth_failures_total",
			Help: "Authentication failures by reason.",
		},
		[]string{"reason"},
	)

	// UsersRegisteredTotal 成功注册的用户数。
	UsersRegisteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "todolist_users_registered_total",
		Help: "Successfully registered users.",
	})

	// TodoOperationsTotal 待办事项写操作次数（op: create / update / delete）。
	TodoOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todolist_todo_operations_total",
			Help: "Todo write operations by kind.",
		},
		[]string{"op"},
	)

	// IdempotentReplaysTotal 被幂等键拦截的重复创建请求数。
	IdempotentReplaysTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "todolist_idempotent_replays_total",
		Help: "Create requests rejected because the idempotency key was already used.",
	})
)

var initOnce sync.Once

// InitMetrics 将指标注册到默认 Registry，可重复调用。
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AuthFailuresTotal,
			UsersRegisteredTotal,
			TodoOperationsTotal,
			IdempotentReplaysTotal,
		)
	})
}
