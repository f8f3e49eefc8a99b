package quicksend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/usafe/sosd/alert"
	khttp "github.com/usafe/sosd/http"
	"github.com/usafe/sosd/keyvalue"
)

const providerName = "quicksend"

// QuickSend API functions, passed as the FUN query parameter.
const (
	funSendSingle   = "SEND_SINGLE"
	funSendBulkSame = "SEND_BULK_SAME"
	funCheckBalance = "CHECK_BALANCE"
)

type Diagnostic interface {
	WithContext(ctx ...keyvalue.T) Diagnostic

	SentSMS(to string, messageID string)
	SentBulkSMS(count int, messageID string)
	Error(msg string, err error)
}

// Service is the adapter for the QuickSend SMS gateway. It normalizes
// authentication, request shaping and error translation; callers only ever
// see alert receipts, *alert.ProviderError or *alert.ConfigurationError.
type Service struct {
	configValue atomic.Value
	clientValue atomic.Value
	diag        Diagnostic
}

func NewService(c Config, d Diagnostic) *Service {
	s := &Service{
		diag: d,
	}
	s.configValue.Store(c)
	s.clientValue.Store(&http.Client{
		Transport: khttp.NewDefaultTransportWithTLS(&tls.Config{InsecureSkipVerify: c.InsecureSkipVerify}),
	})
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

func (s *Service) client() *http.Client {
	return s.clientValue.Load().(*http.Client)
}

// Enabled reports whether the single SMS path may be used.
func (s *Service) Enabled() bool {
	return s.config().Enabled
}

// BulkEnabled reports whether the bulk SMS path may be used.
func (s *Service) BulkEnabled() bool {
	return s.config().BulkEnabled
}

// SendSingle submits one SMS to one recipient.
func (s *Service) SendSingle(ctx context.Context, to, msg, senderID string) (alert.DeliveryReceipt, error) {
	if to = strings.TrimSpace(to); to == "" {
		return alert.DeliveryReceipt{}, errors.New("to must not be empty")
	}
	if msg == "" {
		return alert.DeliveryReceipt{}, errors.New("msg must not be empty")
	}

	body := map[string]interface{}{
		"senderID": senderID,
		"to":       to,
		"msg":      msg,
	}
	r, err := s.do(ctx, funSendSingle, body)
	if err != nil {
		s.diag.Error("failed to send SMS", err)
		return alert.DeliveryReceipt{}, err
	}
	s.diag.SentSMS(to, r.MessageID)
	return alert.DeliveryReceipt{
		MessageID: r.MessageID,
		Detail:    r.detail(),
	}, nil
}

// SendBulk submits one message to many recipients in a single provider
// call. The returned receipt preserves the order of numbers: when the
// provider reports per-recipient statuses they are attributed in order,
// otherwise the aggregate result is applied uniformly.
func (s *Service) SendBulk(ctx context.Context, numbers []string, msg, senderID string) (alert.BulkReceipt, error) {
	if len(numbers) == 0 {
		return alert.BulkReceipt{}, errors.New("numbers must not be empty")
	}
	if msg == "" {
		return alert.BulkReceipt{}, errors.New("msg must not be empty")
	}

	body := map[string]interface{}{
		"check_cost": false,
		"senderID":   senderID,
		"to":         numbers,
		"msg":        msg,
	}
	r, err := s.do(ctx, funSendBulkSame, body)
	if err != nil {
		s.diag.Error("failed to send bulk SMS", err)
		return alert.BulkReceipt{}, err
	}
	s.diag.SentBulkSMS(len(numbers), r.MessageID)

	recipients := make([]alert.RecipientStatus, len(numbers))
	for i, n := range numbers {
		recipients[i] = alert.RecipientStatus{To: n, Status: alert.StatusSent}
		if i < len(r.Data) {
			if d := r.Data[i]; recipientFailed(d.Status) {
				recipients[i].Status = alert.StatusFailed
				recipients[i].Reason = firstNonEmpty(d.Reason, d.Status)
			}
		}
	}
	return alert.BulkReceipt{
		MessageID:  r.MessageID,
		Recipients: recipients,
		Detail:     r.detail(),
	}, nil
}

// CheckBalance reads the account balance. The result is advisory and is
// never used to gate sending.
func (s *Service) CheckBalance(ctx context.Context) (alert.BalanceSnapshot, error) {
	r, err := s.do(ctx, funCheckBalance, map[string]interface{}{})
	if err != nil {
		s.diag.Error("failed to check balance", err)
		return alert.BalanceSnapshot{}, err
	}
	return alert.BalanceSnapshot{
		Balance: firstNonEmpty(r.Balance, r.Status),
		Detail:  r.Message,
	}, nil
}

// response is the subset of the QuickSend response body the adapter
// understands. Unknown fields are ignored.
type response struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
	Balance   string `json:"balance"`
	Data      []struct {
		To     string `json:"to"`
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"data"`
}

func (r response) detail() string {
	return firstNonEmpty(r.Message, r.Status)
}

func (s *Service) do(ctx context.Context, fun string, body interface{}) (response, error) {
	c := s.config()
	var r response

	if c.Email == "" || c.APIKey == "" {
		return r, &alert.ConfigurationError{
			Provider: providerName,
			Message:  "missing email or api-key",
		}
	}

	var post bytes.Buffer
	if err := json.NewEncoder(&post).Encode(body); err != nil {
		return r, errors.Wrap(err, "failed to encode request body")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.Timeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.URL+"?FUN="+fun, &post)
	if err != nil {
		return r, errors.Wrap(err, "failed to create request")
	}
	req.SetBasicAuth(c.Email, c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		code := "network"
		if ctx.Err() == context.DeadlineExceeded {
			code = "timeout"
		}
		return r, &alert.ProviderError{
			Provider: providerName,
			Code:     code,
			Message:  shorten(err.Error()),
		}
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return r, &alert.ProviderError{
			Provider: providerName,
			Code:     "read",
			Message:  shorten(err.Error()),
		}
	}
	// Best effort, providers return plain text on some errors.
	json.Unmarshal(raw, &r)

	if resp.StatusCode/100 != 2 {
		return r, &alert.ProviderError{
			Provider: providerName,
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  shorten(firstNonEmpty(r.detail(), string(raw))),
		}
	}
	if recipientFailed(r.Status) {
		return r, &alert.ProviderError{
			Provider: providerName,
			Code:     "rejected",
			Message:  shorten(r.detail()),
		}
	}
	return r, nil
}

func recipientFailed(status string) bool {
	switch strings.ToLower(status) {
	case "failed", "error", "invalid", "rejected":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

const maxDetailLen = 256

func shorten(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxDetailLen {
		return s[:maxDetailLen]
	}
	return s
}
