package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntitiesSynced counts layouts and pages written by the sync engine,
	// labeled by entity kind and operation (upsert/delete).
	EntitiesSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_entities_synced_total",
		Help: "Total number of entities written or removed by the sync engine",
	}, []string{"kind", "operation"})

	// SyncFailures counts aborted full resyncs and dropped single-entity updates.
	SyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_sync_failures_total",
		Help: "Total number of failed sync operations",
	}, []string{"operation"})

	// PushMessages counts routed push messages by topic suffix and outcome
	// (handled/dropped/skipped).
	PushMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_push_messages_total",
		Help: "Total number of push messages received by the event router",
	}, []string{"kind", "outcome"})

	// OutboxDepth is the number of pending mutations awaiting drain.
	OutboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kiosk_outbox_depth",
		Help: "Current number of pending mutations in the outbox",
	})

	// OutboxDrained counts mutations delivered to the remote API.
	OutboxDrained = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_outbox_drained_total",
		Help: "Total number of mutations successfully drained from the outbox",
	})

	// OutboxFailures counts drain cycles ended early by a remote failure.
	OutboxFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_outbox_failures_total",
		Help: "Total number of outbox drain cycles that ended on a failure",
	})

	// SessionsEvicted counts visitor sessions removed by the expiry sweep.
	SessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_sessions_evicted_total",
		Help: "Total number of expired visitor sessions evicted from the cache",
	})

	// VisibleTags is the number of RFID tags currently in range.
	VisibleTags = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kiosk_visible_tags",
		Help: "Current number of visible RFID tags",
	})
)
