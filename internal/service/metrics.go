package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики административных действий.
var (
	// actionsTotal — выполненные действия по результату.
	actionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ag_actions_total",
			Help: "Общее количество административных действий Admin Gateway",
		},
		[]string{"action", "outcome"},
	)

	// batchLookupsTotal — поиски пользователей внутри get-users-auth-info.
	batchLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ag_batch_lookups_total",
			Help: "Поиски пользователей в пакетных запросах (ok — найден, omitted — пропущен)",
		},
		[]string{"outcome"},
	)
)
