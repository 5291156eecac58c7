package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ai_consultant"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// ContentUpdates counts ApplyUpdate outcomes. status is "ok" or an error kind.
	ContentUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "content_updates_total", Help: "Content update attempts by operation and outcome."},
		[]string{"operation", "status"},
	)
	// ContentRestores counts Restore outcomes.
	ContentRestores = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "content_restores_total", Help: "Content restore attempts by outcome."},
		[]string{"status"},
	)
	BackupsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "backups_created_total", Help: "Number of backup snapshots written to disk."},
	)
	GitPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "git_publish_total", Help: "Git stage/commit/push attempts by outcome."},
		[]string{"status"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(ContentUpdates)
	reg.MustRegister(ContentRestores)
	reg.MustRegister(BackupsCreated)
	reg.MustRegister(GitPublishes)
}
