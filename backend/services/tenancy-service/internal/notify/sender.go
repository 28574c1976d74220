package notify

import (
	"context"
	"fmt"

	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	twilio "github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers one message to one address.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

/* ---------- SendGrid ---------- */

type SendGridSender struct {
	client      *sendgrid.Client
	orgName     string
	fromEmail   string
	sandboxMode bool
}

func NewSendGridSender(apiKey, orgName, fromEmail string, sandboxMode bool) *SendGridSender {
	return &SendGridSender{
		client:      sendgrid.NewSendClient(apiKey),
		orgName:     orgName,
		fromEmail:   fromEmail,
		sandboxMode: sandboxMode,
	}
}

func (s *SendGridSender) Send(_ context.Context, to, subject, body string) error {
	from := mail.NewEmail(s.orgName, s.fromEmail)
	msg := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), body, "<p>"+body+"</p>")
	msg.TrackingSettings = &mail.TrackingSettings{
		ClickTracking: &mail.ClickTrackingSetting{Enable: utils.Ptr(false)},
	}
	if s.sandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}
	resp, err := s.client.Send(msg)
	if err != nil {
		return fmt.Errorf("%w: sendgrid: %v", utils.ErrExternalServiceFailure, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: sendgrid status %d", utils.ErrExternalServiceFailure, resp.StatusCode)
	}
	return nil
}

/* ---------- Twilio ---------- */

type TwilioSender struct {
	client    *twilio.RestClient
	fromPhone string
}

func NewTwilioSender(accountSID, authToken, fromPhone string) *TwilioSender {
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		fromPhone: fromPhone,
	}
}

// Client exposes the REST client for phone lookups.
func (s *TwilioSender) Client() *twilio.RestClient { return s.client }

func (s *TwilioSender) Send(_ context.Context, to, subject, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.fromPhone)
	params.SetBody(subject + " :: " + body)
	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("%w: twilio: %v", utils.ErrExternalServiceFailure, err)
	}
	return nil
}

/* ---------- fallback + routing ---------- */

// LogSender only logs. Used when no provider is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, subject, _ string) error {
	utils.Logger.Infof("Notification (not delivered, no provider configured) to=%s subject=%q", to, subject)
	return nil
}

// Router sends E.164 addresses over SMS and everything else over email.
type Router struct {
	Email Sender
	SMS   Sender
}

func (r *Router) Send(ctx context.Context, to, subject, body string) error {
	if utils.IsE164(to) {
		if r.SMS == nil {
			return fmt.Errorf("no sms sender configured for %s", to)
		}
		return r.SMS.Send(ctx, to, subject, body)
	}
	if r.Email == nil {
		return fmt.Errorf("no email sender configured for %s", to)
	}
	return r.Email.Send(ctx, to, subject, body)
}

// Channel names the transport the router would pick for an address.
func Channel(to string) string {
	if utils.IsE164(to) {
		return "sms"
	}
	return "email"
}
