package dispatch

import (
	"context"
	"testing"

	"github.com/usafe/sosd/alert"
	"github.com/usafe/sosd/keyvalue"
)

type diagnostic struct{}

func (d diagnostic) WithContext(ctx ...keyvalue.T) Diagnostic                 { return d }
func (diagnostic) DispatchingAlert(id string, channel string, recipients int) {}
func (diagnostic) ChannelDisabled(id string, channel string)                  {}
func (diagnostic) AlertCompleted(id string, channel string, success bool)     {}
func (diagnostic) Error(msg string, err error)                                {}

type singleCall struct {
	to, msg, senderID string
}

type bulkCall struct {
	numbers       []string
	msg, senderID string
}

// smsSpy records adapter invocations so tests can assert the gate kept
// the adapter untouched.
type smsSpy struct {
	enabled     bool
	bulkEnabled bool

	singleCalls []singleCall
	bulkCalls   []bulkCall

	singleErr error
	bulkErr   error

	bulkReceipt *alert.BulkReceipt
}

func (s *smsSpy) Enabled() bool     { return s.enabled }
func (s *smsSpy) BulkEnabled() bool { return s.bulkEnabled }

func (s *smsSpy) SendSingle(ctx context.Context, to, msg, senderID string) (alert.DeliveryReceipt, error) {
	s.singleCalls = append(s.singleCalls, singleCall{to, msg, senderID})
	if s.singleErr != nil {
		return alert.DeliveryReceipt{}, s.singleErr
	}
	return alert.DeliveryReceipt{MessageID: "qs-1"}, nil
}

func (s *smsSpy) SendBulk(ctx context.Context, numbers []string, msg, senderID string) (alert.BulkReceipt, error) {
	s.bulkCalls = append(s.bulkCalls, bulkCall{numbers, msg, senderID})
	if s.bulkErr != nil {
		return alert.BulkReceipt{}, s.bulkErr
	}
	if s.bulkReceipt != nil {
		return *s.bulkReceipt, nil
	}
	recipients := make([]alert.RecipientStatus, len(numbers))
	for i, n := range numbers {
		recipients[i] = alert.RecipientStatus{To: n, Status: alert.StatusSent}
	}
	return alert.BulkReceipt{MessageID: "qs-bulk-1", Recipients: recipients}, nil
}

type voiceSpy struct {
	enabled bool
	calls   []singleCall
	err     error
}

func (v *voiceSpy) Enabled() bool { return v.enabled }

func (v *voiceSpy) PlaceCall(ctx context.Context, to, text string) (alert.CallReceipt, error) {
	v.calls = append(v.calls, singleCall{to: to, msg: text})
	if v.err != nil {
		return alert.CallReceipt{}, v.err
	}
	return alert.CallReceipt{CallID: "call-1", Status: "started"}, nil
}

func newTestService(c Config, sms *smsSpy, voice *voiceSpy) *Service {
	s := NewService(c, diagnostic{})
	s.SMSService = sms
	s.VoiceService = voice
	return s
}

func TestService_Dispatch_SingleSMS(t *testing.T) {
	sms := &smsSpy{enabled: true, bulkEnabled: true}
	s := newTestService(NewConfig(), sms, &voiceSpy{})

	o, err := s.Dispatch(context.Background(), alert.Request{
		Recipients: []string{"+94111111111"},
		Message:    "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !o.Success {
		t.Errorf("unexpected success: got %t exp true", o.Success)
	}
	if exp, got := alert.ChannelSMS, o.Channel; exp != got {
		t.Errorf("unexpected channel: got %s exp %s", got, exp)
	}
	if exp, got := alert.StatusSent, o.Status; exp != got {
		t.Errorf("unexpected status: got %s exp %s", got, exp)
	}
	if exp, got := "qs-1", o.ProviderID; exp != got {
		t.Errorf("unexpected provider id: got %s exp %s", got, exp)
	}
	targets := o.Targets()
	if len(targets) != 1 || targets[0] != "+94111111111" {
		t.Errorf("unexpected targets: got %v exp [+94111111111]", targets)
	}
	if exp, got := 1, len(sms.singleCalls); exp != got {
		t.Fatalf("unexpected single call count: got %d exp %d", got, exp)
	}
	if exp, got := "test", sms.singleCalls[0].msg; exp != got {
		t.Errorf("unexpected msg: got %s exp %s", got, exp)
	}
	if exp, got := DefaultSenderID, sms.singleCalls[0].senderID; exp != got {
		t.Errorf("unexpected sender id: got %s exp %s", got, exp)
	}
	if exp, got := 0, len(sms.bulkCalls); exp != got {
		t.Errorf("unexpected bulk call count: got %d exp %d", got, exp)
	}
}

func TestService_Dispatch_BulkSMS(t *testing.T) {
	sms := &smsSpy{enabled: true, bulkEnabled: true}
	s := newTestService(NewConfig(), sms, &voiceSpy{})

	o, err := s.Dispatch(context.Background(), alert.Request{
		Recipients: []string{"+94111111111", "+94222222222"},
		Message:    "help",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !o.Success {
		t.Errorf("unexpected success: got %t exp true", o.Success)
	}
	if exp, got := alert.ChannelBulkSMS, o.Channel; exp != got {
		t.Errorf("unexpected channel: got %s exp %s", got, exp)
	}
	if exp, got := 0, len(sms.singleCalls); exp != got {
		t.Errorf("unexpected single call count: got %d exp %d", got, exp)
	}
	if exp, got := 1, len(sms.bulkCalls); exp != got {
		t.Fatalf("unexpected bulk call count: got %d exp %d", got, exp)
	}
	numbers := sms.bulkCalls[0].numbers
	if len(numbers) != 2 || numbers[0] != "+94111111111" || numbers[1] != "+94222222222" {
		t.Errorf("unexpected bulk numbers: got %v", numbers)
	}
}

func TestService_Dispatch_ChannelDisabled(t *testing.T) {
	sms := &smsSpy{enabled: false, bulkEnabled: true}
	s := newTestService(NewConfig(), sms, &voiceSpy{})

	o, err := s.Dispatch(context.Background(), alert.Request{
		Recipients: []string{"+94111111111"},
		Message:    "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	if o.Success {
		t.Errorf("unexpected success: got %t exp false", o.Success)
	}
	if exp, got := alert.StatusChannelDisabled, o.Status; exp != got {
		t.Errorf("unexpected status: got %s exp %s", got, exp)
	}
	if exp, got := 0, len(sms.singleCalls)+len(sms.bulkCalls); exp != got {
		t.Errorf("unexpected adapter call count: got %d exp %d", got, exp)
	}
}

func TestService_Dispatch_BulkGateIndependent(t *testing.T) {
	// Single SMS stays enabled while bulk is administratively off.
	sms := &smsSpy{enabled: true, bulkEnabled: false}
	s := newTestService(NewConfig(), sms, &voiceSpy{})

	o, err := s.Dispatch(context.Background(), alert.Request{
		Recipients: []string{"+94111111111", "+94222222222"},
		Message:    "help",
	})
	if err != nil {
		t.Fatal(err)
	}
	if exp, got := alert.StatusChannelDisabled, o.Status; exp != got {
		t.Errorf("unexpected status: got %s exp %s", got, exp)
	}
	if exp, got := alert.ChannelBulkSMS, o.Channel; exp != got {
		t.Errorf("unexpected channel: got %s exp %s", got, exp)
	}
	if exp, got := 0, len(sms.singleCalls)+len(sms.bulkCalls); exp != got {
		t.Errorf("unexpected adapter call count: got %d exp %d", got, exp)
	}
}

func TestService_Dispatch_ProviderFailureNoFallback(t *testing.T) {
	sms := &smsSpy{
		enabled:     true,
		bulkEnabled: true,
		singleErr:   &alert.ProviderError{Provider: "quicksend", Code: "timeout", Message: "context deadline exceeded"},
	}
	voice := &voiceSpy{enabled: true}
	s := newTestService(NewConfig(), sms, voice)

	o, err := s.Dispatch(context.Background(), alert.Request{
		Recipients: []string{"+94111111111"},
		Message:    "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	if o.Success {
		t.Errorf("unexpected success: got %t exp false", o.Success)
	}
	if exp, got := alert.StatusFailed, o.Status; exp != got {
		t.Errorf("unexpected status: got %s exp %s", got, exp)
	}
	if exp, got := alert.KindProvider, o.ErrorKind; exp != got {
		t.Errorf("unexpected error kind: got %s exp %s", got, exp)
	}
	// SMS failure must not escalate to a voice call.
	if exp, got := 0, len(voice.calls); exp != got {
		t.Errorf("unexpected voice call count: got %d exp %d", got, exp)
	}
}

func TestService_Dispatch_PartialBulkFailure(t *testing.T) {
	sms := &smsSpy{
		enabled:     true,
		bulkEnabled: true,
		bulkReceipt: &alert.BulkReceipt{
			MessageID: "qs-bulk-2",
			Recipients: []alert.RecipientStatus{
				{To: "+94111111111", Status: alert.StatusSent},
				{To: "+94222222222", Status: alert.StatusFailed, Reason: "blocked"},
			},
		},
	}
	s := newTestService(NewConfig(), sms, &voiceSpy{})

	o, err := s.Dispatch(context.Background(), alert.Request{
		Recipients: []string{"+94111111111", "+94222222222"},
		Message:    "help",
	})
	if err != nil {
		t.Fatal(err)
	}
	if o.Success {
		t.Errorf("unexpected success: got %t exp false", o.Success)
	}
	if exp, got := alert.StatusFailed, o.Status; exp != got {
		t.Errorf("unexpected status: got %s exp %s", got, exp)
	}
	if exp, got := 2, len(o.Recipients); exp != got {
		t.Fatalf("unexpected recipient count: got %d exp %d", got, exp)
	}
	if exp, got := alert.StatusSent, o.Recipients[0].Status; exp != got {
		t.Errorf("unexpected first status: got %s exp %s", got, exp)
	}
	if exp, got := alert.StatusFailed, o.Recipients[1].Status; exp != got {
		t.Errorf("unexpected second status: got %s exp %s", got, exp)
	}
	if exp, got := "1 of 2 recipients failed", o.Error; exp != got {
		t.Errorf("unexpected error: got %s exp %s", got, exp)
	}
}

func TestService_Dispatch_InvalidRequest(t *testing.T) {
	sms := &smsSpy{enabled: true, bulkEnabled: true}
	c := NewConfig()
	c.DefaultRecipients = nil
	s := newTestService(c, sms, &voiceSpy{})

	o, err := s.Dispatch(context.Background(), alert.Request{
		Recipients: []string{"", "   "},
		Message:    "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	if exp, got := alert.StatusInvalidRequest, o.Status; exp != got {
		t.Errorf("unexpected status: got %s exp %s", got, exp)
	}
	if exp, got := alert.KindInvalidRequest, o.ErrorKind; exp != got {
		t.Errorf("unexpected error kind: got %s exp %s", got, exp)
	}
	// Validation rejects the request before channel selection.
	if o.Channel != "" {
		t.Errorf("unexpected channel: got %s exp none", o.Channel)
	}
	if exp, got := 0, len(sms.singleCalls)+len(sms.bulkCalls); exp != got {
		t.Errorf("unexpected adapter call count: got %d exp %d", got, exp)
	}
}

func TestService_Dispatch_ConfiguredDefaults(t *testing.T) {
	sms := &smsSpy{enabled: true, bulkEnabled: true}
	c := NewConfig()
	c.DefaultRecipients = []string{"+94333333333"}
	s := newTestService(c, sms, &voiceSpy{})

	o, err := s.Dispatch(context.Background(), alert.Request{})
	if err != nil {
		t.Fatal(err)
	}
	if !o.Success {
		t.Fatalf("unexpected success: got %t exp true", o.Success)
	}
	if exp, got := 1, len(sms.singleCalls); exp != got {
		t.Fatalf("unexpected single call count: got %d exp %d", got, exp)
	}
	if exp, got := "+94333333333", sms.singleCalls[0].to; exp != got {
		t.Errorf("unexpected to: got %s exp %s", got, exp)
	}
	if exp, got := DefaultMessage, sms.singleCalls[0].msg; exp != got {
		t.Errorf("unexpected msg: got %s exp %s", got, exp)
	}
}

func TestService_Dispatch_DeduplicatesRecipients(t *testing.T) {
	sms := &smsSpy{enabled: true, bulkEnabled: true}
	s := newTestService(NewConfig(), sms, &voiceSpy{})

	o, err := s.Dispatch(context.Background(), alert.Request{
		Recipients: []string{" +94111111111 ", "+94111111111", ""},
		Message:    "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	// One unique recipient left, so the single path is used.
	if exp, got := alert.ChannelSMS, o.Channel; exp != got {
		t.Errorf("unexpected channel: got %s exp %s", got, exp)
	}
	if exp, got := 1, len(sms.singleCalls); exp != got {
		t.Fatalf("unexpected single call count: got %d exp %d", got, exp)
	}
	if exp, got := "+94111111111", sms.singleCalls[0].to; exp != got {
		t.Errorf("unexpected to: got %s exp %s", got, exp)
	}
}

func TestService_Dispatch_Call(t *testing.T) {
	voice := &voiceSpy{enabled: true}
	s := newTestService(NewConfig(), &smsSpy{}, voice)

	o, err := s.Dispatch(context.Background(), alert.Request{
		Recipients: []string{"+94111111111", "+94222222222"},
		Hint:       alert.ChannelCall,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !o.Success {
		t.Errorf("unexpected success: got %t exp true", o.Success)
	}
	if exp, got := alert.ChannelCall, o.Channel; exp != got {
		t.Errorf("unexpected channel: got %s exp %s", got, exp)
	}
	if exp, got := "call-1", o.ProviderID; exp != got {
		t.Errorf("unexpected provider id: got %s exp %s", got, exp)
	}
	// Voice targets only the first recipient.
	if exp, got := 1, len(voice.calls); exp != got {
		t.Fatalf("unexpected call count: got %d exp %d", got, exp)
	}
	if exp, got := "+94111111111", voice.calls[0].to; exp != got {
		t.Errorf("unexpected to: got %s exp %s", got, exp)
	}
	if exp, got := DefaultCallText, voice.calls[0].msg; exp != got {
		t.Errorf("unexpected call text: got %s exp %s", got, exp)
	}
}

func TestService_Dispatch_CallDisabled(t *testing.T) {
	voice := &voiceSpy{enabled: false}
	s := newTestService(NewConfig(), &smsSpy{enabled: true, bulkEnabled: true}, voice)

	o, err := s.Dispatch(context.Background(), alert.Request{
		Recipients: []string{"+94111111111"},
		Hint:       alert.ChannelCall,
	})
	if err != nil {
		t.Fatal(err)
	}
	if exp, got := alert.StatusChannelDisabled, o.Status; exp != got {
		t.Errorf("unexpected status: got %s exp %s", got, exp)
	}
	if exp, got := 0, len(voice.calls); exp != got {
		t.Errorf("unexpected call count: got %d exp %d", got, exp)
	}
}

func TestService_Dispatch_CallDefaultTarget(t *testing.T) {
	voice := &voiceSpy{enabled: true}
	c := NewConfig()
	c.DefaultCallTo = "+94444444444"
	s := newTestService(c, &smsSpy{}, voice)

	o, err := s.Dispatch(context.Background(), alert.Request{Hint: alert.ChannelCall})
	if err != nil {
		t.Fatal(err)
	}
	if !o.Success {
		t.Fatalf("unexpected success: got %t exp true", o.Success)
	}
	if exp, got := "+94444444444", voice.calls[0].to; exp != got {
		t.Errorf("unexpected to: got %s exp %s", got, exp)
	}
}

func TestService_BulkRequest(t *testing.T) {
	sms := &smsSpy{enabled: false, bulkEnabled: true}
	c := NewConfig()
	c.BulkRecipients = []string{"+94111111111", "+94222222222", "+94333333333"}
	s := newTestService(c, sms, &voiceSpy{})

	o, err := s.Dispatch(context.Background(), s.BulkRequest())
	if err != nil {
		t.Fatal(err)
	}
	if !o.Success {
		t.Fatalf("unexpected success: got %t exp true", o.Success)
	}
	if exp, got := alert.ChannelBulkSMS, o.Channel; exp != got {
		t.Errorf("unexpected channel: got %s exp %s", got, exp)
	}
	if exp, got := 3, len(sms.bulkCalls[0].numbers); exp != got {
		t.Errorf("unexpected bulk numbers count: got %d exp %d", got, exp)
	}
}
