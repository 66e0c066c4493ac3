package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики брокерного слоя. Экспортируются через /metrics
// (promhttp.Handler в main каждого сервиса).
var (
	// TasksPublished — опубликованные task-сообщения по routing key.
	TasksPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_tasks_published_total",
		Help: "Total task messages published to the task exchange",
	}, []string{"routing_key"})

	// TasksConsumed — обработанные доставки по очереди и исходу
	// (ack, retry, dlq).
	TasksConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_tasks_consumed_total",
		Help: "Total task deliveries processed, by queue and outcome",
	}, []string{"queue", "outcome"})
)
