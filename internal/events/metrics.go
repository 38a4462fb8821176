package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docpolish_lifecycle_events_published_total",
		Help: "Lifecycle events published to the bus",
	})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docpolish_lifecycle_events_dropped_total",
		Help: "Envelopes dropped because a subscriber buffer was full",
	})
	eventsRedelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docpolish_lifecycle_events_redelivered_total",
		Help: "Envelopes observed with attempt > 0 (at-least-once redelivery)",
	})
)
