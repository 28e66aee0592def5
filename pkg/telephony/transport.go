package telephony

import (
	"context"
	"net/url"

	"github.com/CliniqAI/voicecore/pkg/config"
	"github.com/CliniqAI/voicecore/pkg/logger"
	"github.com/carlmjohnson/requests"
	"go.uber.org/zap"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// CallControl drives live calls through Twilio's REST API, outside the
// webhook request cycle. The session manager uses it to hang up calls
// that went idle.
type CallControl struct {
	accountSID string
	authToken  string
	baseURL    string
}

// NewCallControl builds call control from SMS config (same Twilio
// account); returns nil without credentials so it stays optional.
func NewCallControl(cfg config.SMSConfig) *CallControl {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil
	}
	return &CallControl{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		baseURL:    twilioAPIBase,
	}
}

// EndCall completes a live call.
func (c *CallControl) EndCall(ctx context.Context, callRef string) error {
	form := url.Values{}
	form.Set("Status", "completed")

	err := requests.
		URL(c.baseURL + "/Accounts/" + c.accountSID + "/Calls/" + callRef + ".json").
		BasicAuth(c.accountSID, c.authToken).
		BodyForm(form).
		Fetch(ctx)
	if err != nil {
		return err
	}
	logger.Info("call ended via api", zap.String("callSid", callRef))
	return nil
}
