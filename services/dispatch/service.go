package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/usafe/sosd/alert"
	"github.com/usafe/sosd/keyvalue"
)

// SMSService is the capability the dispatcher needs from the SMS gateway
// adapter. The concrete implementation is the quicksend service.
type SMSService interface {
	Enabled() bool
	BulkEnabled() bool
	SendSingle(ctx context.Context, to, msg, senderID string) (alert.DeliveryReceipt, error)
	SendBulk(ctx context.Context, numbers []string, msg, senderID string) (alert.BulkReceipt, error)
}

// VoiceService is the capability the dispatcher needs from the voice
// adapter. The concrete implementation is the vonage service.
type VoiceService interface {
	Enabled() bool
	PlaceCall(ctx context.Context, to, text string) (alert.CallReceipt, error)
}

type Diagnostic interface {
	WithContext(ctx ...keyvalue.T) Diagnostic

	DispatchingAlert(id string, channel string, recipients int)
	ChannelDisabled(id string, channel string)
	AlertCompleted(id string, channel string, success bool)
	Error(msg string, err error)
}

// Service is the alert dispatch engine. One call to Dispatch performs one
// synchronous delivery attempt: it validates the request, resolves
// configured defaults, selects a channel, consults the feature gate and
// invokes at most one adapter. There is no retry, no cross-channel
// fallback and no queueing; every expected failure class is folded into
// the returned outcome.
type Service struct {
	configValue atomic.Value
	diag        Diagnostic

	SMSService   SMSService
	VoiceService VoiceService
}

func NewService(c Config, d Diagnostic) *Service {
	s := &Service{
		diag: d,
	}
	s.configValue.Store(c)
	return s
}

func (s *Service) Open() error {
	return nil
}

func (s *Service) Close() error {
	return nil
}

func (s *Service) config() Config {
	return s.configValue.Load().(Config)
}

// BulkRequest returns the configured bulk alert. The bulk endpoint always
// sends the configured recipient list and message, never caller input.
func (s *Service) BulkRequest() alert.Request {
	return alert.Request{
		Recipients: s.config().BulkRecipients,
		Hint:       alert.ChannelBulkSMS,
	}
}

// Dispatch delivers one alert and reports its consolidated outcome.
// The returned error is non-nil only for programming-contract violations;
// provider failures, disabled channels and invalid input are all reported
// through the outcome itself.
func (s *Service) Dispatch(ctx context.Context, req alert.Request) (alert.Outcome, error) {
	c := s.config()
	o := alert.Outcome{ID: uuid.New()}

	msg := req.Message
	if msg == "" {
		msg = c.DefaultMessage
	}
	senderID := req.SenderID
	if senderID == "" {
		senderID = c.SenderID
	}

	recipients := alert.NormalizeRecipients(req.Recipients)
	if len(recipients) == 0 {
		recipients = alert.NormalizeRecipients(s.defaultRecipients(c, req.Hint))
	}

	body := msg
	if req.Hint == alert.ChannelCall {
		body = c.CallText
	}
	if len(recipients) == 0 || body == "" {
		o.Status = alert.StatusInvalidRequest
		o.ErrorKind = alert.KindInvalidRequest
		o.Error = invalidReason(recipients, body)
		return o, nil
	}

	plan, err := selectChannel(recipients, req.Hint)
	if err != nil {
		// Unreachable after validation, fail loudly.
		return o, err
	}
	o.Channel = plan.Channel
	s.diag.DispatchingAlert(o.ID.String(), string(plan.Channel), len(plan.Recipients))

	if !s.channelEnabled(plan.Channel) {
		s.diag.ChannelDisabled(o.ID.String(), string(plan.Channel))
		o.Status = alert.StatusChannelDisabled
		return o, nil
	}

	switch plan.Channel {
	case alert.ChannelSMS:
		s.sendSingle(ctx, &o, plan.Recipients[0], msg, senderID)
	case alert.ChannelBulkSMS:
		s.sendBulk(ctx, &o, plan.Recipients, msg, senderID)
	case alert.ChannelCall:
		s.placeCall(ctx, &o, plan.Recipients[0], c.CallText)
	}

	s.diag.AlertCompleted(o.ID.String(), string(o.Channel), o.Success)
	return o, nil
}

func (s *Service) defaultRecipients(c Config, hint alert.Channel) []string {
	switch hint {
	case alert.ChannelCall:
		if c.DefaultCallTo == "" {
			return nil
		}
		return []string{c.DefaultCallTo}
	case alert.ChannelBulkSMS:
		return c.BulkRecipients
	}
	return c.DefaultRecipients
}

func (s *Service) channelEnabled(channel alert.Channel) bool {
	switch channel {
	case alert.ChannelSMS:
		return s.SMSService.Enabled()
	case alert.ChannelBulkSMS:
		return s.SMSService.BulkEnabled()
	case alert.ChannelCall:
		return s.VoiceService.Enabled()
	}
	return false
}

func (s *Service) sendSingle(ctx context.Context, o *alert.Outcome, to, msg, senderID string) {
	receipt, err := s.SMSService.SendSingle(ctx, to, msg, senderID)
	if err != nil {
		s.fail(o, err)
		o.Recipients = []alert.RecipientStatus{{To: to, Status: alert.StatusFailed, Reason: o.Error}}
		return
	}
	o.Status = alert.StatusSent
	o.Success = true
	o.ProviderID = receipt.MessageID
	o.Recipients = []alert.RecipientStatus{{To: to, Status: alert.StatusSent}}
}

func (s *Service) sendBulk(ctx context.Context, o *alert.Outcome, numbers []string, msg, senderID string) {
	receipt, err := s.SMSService.SendBulk(ctx, numbers, msg, senderID)
	if err != nil {
		s.fail(o, err)
		o.Recipients = make([]alert.RecipientStatus, len(numbers))
		for i, n := range numbers {
			o.Recipients[i] = alert.RecipientStatus{To: n, Status: alert.StatusFailed, Reason: o.Error}
		}
		return
	}

	o.ProviderID = receipt.MessageID
	o.Recipients = receipt.Recipients
	failed := 0
	for _, r := range receipt.Recipients {
		if r.Status != alert.StatusSent {
			failed++
		}
	}
	if failed == 0 {
		o.Status = alert.StatusSent
		o.Success = true
		return
	}
	// Partial failure: the outcome still attributes every recipient.
	o.Status = alert.StatusFailed
	o.ErrorKind = alert.KindProvider
	o.Error = fmt.Sprintf("%d of %d recipients failed", failed, len(receipt.Recipients))
}

func (s *Service) placeCall(ctx context.Context, o *alert.Outcome, to, text string) {
	receipt, err := s.VoiceService.PlaceCall(ctx, to, text)
	if err != nil {
		s.fail(o, err)
		o.Recipients = []alert.RecipientStatus{{To: to, Status: alert.StatusFailed, Reason: o.Error}}
		return
	}
	// A voice dispatch succeeds once the provider accepts the call.
	o.Status = alert.StatusSent
	o.Success = true
	o.ProviderID = receipt.CallID
	o.Recipients = []alert.RecipientStatus{{To: to, Status: alert.StatusSent}}
}

func (s *Service) fail(o *alert.Outcome, err error) {
	s.diag.Error("adapter call failed", err)
	o.Status = alert.StatusFailed
	o.ErrorKind = alert.Kind(err)
	o.Error = err.Error()
}

func invalidReason(recipients []string, body string) string {
	if len(recipients) == 0 {
		return "no recipients provided and no default configured"
	}
	return "empty message and no default configured"
}
