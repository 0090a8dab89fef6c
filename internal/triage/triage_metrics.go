package triage

import "github.com/prometheus/client_golang/prometheus"

// ServiceHooks are optional callbacks the Service fires after each committed
// operation. Nil fields are skipped.
type ServiceHooks struct {
	OnCreate          func(origin Origin, category Category, score int)
	OnStatusChange    func(from, to Status)
	OnPriorityLowered func(from, to int)
	OnAuthFailure     func(reason string)
	OnBulk            func(op string, affected int)
	OnNotify          func(err error)
}

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	CreatedTotal       *prometheus.CounterVec
	PriorityScore      *prometheus.HistogramVec
	StatusChangesTotal *prometheus.CounterVec
	LoweredTotal       prometheus.Counter
	LoweredDelta       prometheus.Histogram
	AuthFailuresTotal  *prometheus.CounterVec
	BulkRowsTotal      *prometheus.CounterVec
	NotifyTotal        *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_feedback_created_total",
			Help: "Feedback items created by origin and category.",
		}, []string{"origin", "category"}),
		PriorityScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sift_feedback_priority_score",
			Help:    "Priority score assigned at creation.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 .. 100
		}, []string{"category"}),
		StatusChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_status_changes_total",
			Help: "Status changes by previous and new status.",
		}, []string{"from", "to"}),
		LoweredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_priority_lowered_total",
			Help: "Manual lower-priority operations.",
		}),
		LoweredDelta: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_priority_lowered_delta",
			Help:    "Actual score reduction per lower-priority operation.",
			Buckets: prometheus.LinearBuckets(0, 5, 4), // 0 .. 15
		}),
		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_auth_failures_total",
			Help: "Rejected authenticated ingestions by reason.",
		}, []string{"reason"}),
		BulkRowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_bulk_rows_total",
			Help: "Rows imported or deleted by bulk operations.",
		}, []string{"op"}),
		NotifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_notify_total",
			Help: "Urgent feedback notifications by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.CreatedTotal,
		m.PriorityScore,
		m.StatusChangesTotal,
		m.LoweredTotal,
		m.LoweredDelta,
		m.AuthFailuresTotal,
		m.BulkRowsTotal,
		m.NotifyTotal,
	)

	return m
}

// Hooks returns ServiceHooks that update the corresponding metrics.
func (m *Metrics) Hooks() ServiceHooks {
	return ServiceHooks{
		OnCreate: func(origin Origin, category Category, score int) {
			m.CreatedTotal.WithLabelValues(string(origin), category.String()).Inc()
			m.PriorityScore.WithLabelValues(category.String()).Observe(float64(score))
		},
		OnStatusChange: func(from, to Status) {
			m.StatusChangesTotal.WithLabelValues(string(from), string(to)).Inc()
		},
		OnPriorityLowered: func(from, to int) {
			m.LoweredTotal.Inc()
			m.LoweredDelta.Observe(float64(from - to))
		},
		OnAuthFailure: func(reason string) {
			m.AuthFailuresTotal.WithLabelValues(reason).Inc()
		},
		OnBulk: func(op string, affected int) {
			m.BulkRowsTotal.WithLabelValues(op).Add(float64(affected))
		},
		OnNotify: func(err error) {
			result := "success"
			if err != nil {
				result = "error"
			}
			m.NotifyTotal.WithLabelValues(result).Inc()
		},
	}
}
