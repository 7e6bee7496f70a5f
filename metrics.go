package authcore

import internalmetrics "github.com/MrEthical07/authcore/internal/metrics"

// MetricID identifies one engine counter.
type MetricID = internalmetrics.MetricID

const (
	MetricRegisterSuccess   = internalmetrics.MetricRegisterSuccess
	MetricRegisterDuplicate = internalmetrics.MetricRegisterDuplicate
	MetricLoginSuccess      = internalmetrics.MetricLoginSuccess
	MetricLoginFailure      = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited  = internalmetrics.MetricLoginRateLimited
	MetricRefreshSuccess    = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure    = internalmetrics.MetricRefreshFailure
	// MetricRefreshRejected counts unknown, revoked or already-rotated tokens.
	MetricRefreshRejected  = internalmetrics.MetricRefreshRejected
	MetricRefreshExpired   = internalmetrics.MetricRefreshExpired
	MetricValidateSuccess  = internalmetrics.MetricValidateSuccess
	MetricValidateFailure  = internalmetrics.MetricValidateFailure
	MetricPasswordRehash   = internalmetrics.MetricPasswordRehash
	MetricLogout           = internalmetrics.MetricLogout
	MetricLogoutAll        = internalmetrics.MetricLogoutAll
	MetricStoreUnavailable = internalmetrics.MetricStoreUnavailable
	MetricRefreshPurged    = internalmetrics.MetricRefreshPurged
	MetricAuditDropped     = internalmetrics.MetricAuditDropped
	MetricValidateLatency  = internalmetrics.MetricValidateLatency
)

// Metrics holds lock-free engine counters.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of the engine counters.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics builds a metrics set from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
