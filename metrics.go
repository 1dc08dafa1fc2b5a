package identity

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	flowPreRegistration   = "pre_registration"
	flowRegistration      = "registration_verify"
	flowProfileCompletion = "profile_completion"
	flowEmailChange       = "email_change_request"
	flowEmailChangeResend = "email_change_resend"
	flowEmailChangeVerify = "email_change_verify"
	flowResetRequest      = "password_reset_request"
	flowResetConfirm      = "password_reset_confirm"
	flowResetVerify       = "password_reset_verify"
	flowResetByID         = "password_reset_by_id"
	flowPasswordChange    = "password_change"
	flowLogin             = "login"
	flowLogout            = "logout"
	flowPurge             = "purge_stale"
)

const outcomeOK = "ok"

// flowMetrics counts flow outcomes. A nil *flowMetrics records nothing.
type flowMetrics struct {
	outcomes *prometheus.CounterVec
}

func newFlowMetrics(reg prometheus.Registerer) (*flowMetrics, error) {
	if reg == nil {
		return nil, nil
	}

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_flow_total",
		Help: "Identity flow executions partitioned by flow and outcome.",
	}, []string{"flow", "outcome"})

	if err := reg.Register(outcomes); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
			if ok {
				return &flowMetrics{outcomes: existing}, nil
			}
		}
		return nil, err
	}

	return &flowMetrics{outcomes: outcomes}, nil
}

func (m *flowMetrics) observe(flow string, err error) {
	if m == nil || m.outcomes == nil {
		return
	}

	outcome := outcomeOK
	if err != nil {
		outcome = ErrorKind(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	m.outcomes.WithLabelValues(flow, outcome).Inc()
}
