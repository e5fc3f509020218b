package eduAuth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLoginRoleMismatch
	MetricTwoFactorRequired
	MetricTwoFactorCodeIssued
	MetricTwoFactorResendThrottled
	MetricTwoFactorDeliveryFailed
	MetricTwoFactorSuccess
	MetricTwoFactorFailure
	MetricTwoFactorExpired
	MetricTwoFactorExhausted
	MetricSessionCreated
	MetricSessionEvicted
	MetricSessionPruned
	MetricSessionRevoked
	MetricLogoutAll
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricPasswordResetRequest
	MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure
	MetricAccountDeleted
	MetricValidateSuccess
	MetricValidateFailure
	MetricChallengesSwept
	MetricValidateLatency
	metricIDCount
)

// MetricDef names a metric for exporters.
type MetricDef struct {
	ID   MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []MetricDef{
	{MetricRegisterSuccess, "eduauth_register_success_total", "Successful registrations."},
	{MetricRegisterDuplicate, "eduauth_register_duplicate_total", "Registrations rejected for a duplicate email."},
	{MetricLoginSuccess, "eduauth_login_success_total", "Logins that issued a session."},
	{MetricLoginFailure, "eduauth_login_failure_total", "Logins rejected for bad credentials."},
	{MetricLoginRateLimited, "eduauth_login_rate_limited_total", "Logins refused by the failed-login throttle."},
	{MetricLoginRoleMismatch, "eduauth_login_role_mismatch_total", "Role-restricted logins by the wrong role."},
	{MetricTwoFactorRequired, "eduauth_two_factor_required_total", "Logins that stopped at the two-factor step."},
	{MetricTwoFactorCodeIssued, "eduauth_two_factor_code_issued_total", "Verification codes delivered."},
	{MetricTwoFactorResendThrottled, "eduauth_two_factor_resend_throttled_total", "Code requests refused by the resend interval."},
	{MetricTwoFactorDeliveryFailed, "eduauth_two_factor_delivery_failed_total", "Codes rolled back after a delivery failure."},
	{MetricTwoFactorSuccess, "eduauth_two_factor_success_total", "Correct verification codes."},
	{MetricTwoFactorFailure, "eduauth_two_factor_failure_total", "Wrong verification codes."},
	{MetricTwoFactorExpired, "eduauth_two_factor_expired_total", "Verification attempts against an expired code."},
	{MetricTwoFactorExhausted, "eduauth_two_factor_exhausted_total", "Verification attempts after the attempt budget ran out."},
	{MetricSessionCreated, "eduauth_session_created_total", "Sessions created."},
	{MetricSessionEvicted, "eduauth_session_evicted_total", "Sessions evicted by the per-user cap."},
	{MetricSessionPruned, "eduauth_session_pruned_total", "Stale sessions pruned on insert."},
	{MetricSessionRevoked, "eduauth_session_revoked_total", "Sessions removed by logout-all or password reset."},
	{MetricLogoutAll, "eduauth_logout_all_total", "Logout-all operations."},
	{MetricPasswordChangeSuccess, "eduauth_password_change_success_total", "Successful password changes."},
	{MetricPasswordChangeInvalidOld, "eduauth_password_change_invalid_old_total", "Password changes with a wrong current password."},
	{MetricPasswordResetRequest, "eduauth_password_reset_request_total", "Password reset requests."},
	{MetricPasswordResetConfirmSuccess, "eduauth_password_reset_confirm_success_total", "Successful password reset confirmations."},
	{MetricPasswordResetConfirmFailure, "eduauth_password_reset_confirm_failure_total", "Rejected password reset confirmations."},
	{MetricAccountDeleted, "eduauth_account_deleted_total", "Deleted accounts."},
	{MetricValidateSuccess, "eduauth_validate_success_total", "Tokens accepted."},
	{MetricValidateFailure, "eduauth_validate_failure_total", "Tokens rejected."},
	{MetricChallengesSwept, "eduauth_challenges_swept_total", "Expired codes and reset tokens removed by the sweeper."},
}

// HistogramDefs lists every latency histogram.
var HistogramDefs = []MetricDef{
	{MetricValidateLatency, "eduauth_validate_latency_seconds", "Token validation latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the eight buckets.
var HistogramBounds = [histBucketCount]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and latency histograms. A nil or disabled
// Metrics ignores every write.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy. Histogram buckets are not
// cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics does not mutate shared global state and can be used concurrently.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to id.
func (m *Metrics) Add(id MetricID, n int) {
	if m == nil || !m.enabled || id >= metricIDCount || n <= 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, uint64(n))
}

// Observe records d in the histogram for id. Only histogram metrics accept
// observations.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricValidateLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and enabled histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, len(HistogramDefs)),
	}
	for _, def := range CounterDefs {
		s.Counters[def.ID] = atomic.LoadUint64(&m.counters[def.ID].value)
	}

	if m.enableLatency {
		for _, def := range HistogramDefs {
			buckets := make([]uint64, histBucketCount)
			for i := range buckets {
				buckets[i] = atomic.LoadUint64(&m.histograms[def.ID].buckets[i])
			}
			s.Histograms[def.ID] = buckets
		}
	}
	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
