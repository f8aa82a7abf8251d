package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session lifecycle and attendance counters, exported on /metrics.
var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_sessions_started_total",
		Help: "Sessions begun by successful logins.",
	})

	SessionsRenewed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_sessions_renewed_total",
		Help: "Sessions extended through the renewal prompt.",
	})

	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_sessions_ended_total",
		Help: "Sessions ended, by reason.",
	}, []string{"reason"})

	RenewalPrompts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_session_renewal_prompts_total",
		Help: "Renewal prompts shown after long-running sessions.",
	})

	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_checkins_total",
		Help: "Self check-ins accepted, by status.",
	}, []string{"status"})

	CheckInsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_checkins_rejected_total",
		Help: "Self check-ins rejected because the window was closed.",
	})

	StaffMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_staff_marks_total",
		Help: "Attendance statuses recorded by staff, by status.",
	}, []string{"status"})
)

// Session end reasons.
const (
	ReasonInactivity = "inactivity"
	ReasonLogout     = "logout"
)
