package notify

import (
	"context"
	"net/url"
	"strings"

	"github.com/CliniqAI/voicecore/pkg/config"
	"github.com/CliniqAI/voicecore/pkg/constants"
	"github.com/CliniqAI/voicecore/pkg/logger"
	"github.com/carlmjohnson/requests"
	"go.uber.org/zap"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// SMSSender pushes text alerts to the on-call numbers through Twilio's
// Messages API. Numbers are grouped by role; emergencies go to everyone.
type SMSSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string

	staffNumbers  []string
	doctorNumbers []string
}

// NewSMSSender builds a sender from SMS config; returns nil when Twilio
// credentials are absent so callers can treat SMS as optional.
func NewSMSSender(cfg config.SMSConfig) *SMSSender {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil
	}
	return &SMSSender{
		accountSID:    cfg.AccountSID,
		authToken:     cfg.AuthToken,
		from:          cfg.FromNumber,
		baseURL:       twilioAPIBase,
		staffNumbers:  splitNumbers(cfg.StaffNumbers),
		doctorNumbers: splitNumbers(cfg.DoctorNumbers),
	}
}

func splitNumbers(raw string) []string {
	var numbers []string
	for _, n := range strings.Split(raw, ",") {
		n = strings.TrimSpace(n)
		if n != "" {
			numbers = append(numbers, n)
		}
	}
	return numbers
}

// Send delivers one message to one number.
func (s *SMSSender) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	return requests.
		URL(s.baseURL + "/Accounts/" + s.accountSID + "/Messages.json").
		BasicAuth(s.accountSID, s.authToken).
		BodyForm(form).
		Fetch(ctx)
}

// NotifyRole fans one message out to every number registered for a role.
// Delivery problems are logged per number; alerting must not fail the
// outcome that triggered it.
func (s *SMSSender) NotifyRole(ctx context.Context, role, body string) {
	numbers := s.staffNumbers
	if role == constants.ROLE_DOCTOR {
		numbers = s.doctorNumbers
	}
	for _, to := range numbers {
		if err := s.Send(ctx, to, body); err != nil {
			logger.Warn("sms delivery failed",
				zap.String("role", role), zap.String("to", to), zap.Error(err))
		}
	}
}

// NotifyEveryone alerts both groups, for emergencies.
func (s *SMSSender) NotifyEveryone(ctx context.Context, body string) {
	s.NotifyRole(ctx, constants.ROLE_STAFF, body)
	s.NotifyRole(ctx, constants.ROLE_DOCTOR, body)
}
