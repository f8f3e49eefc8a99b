package vonage

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/usafe/sosd/alert"
	khttp "github.com/usafe/sosd/http"
	"github.com/usafe/sosd/keyvalue"
)

const providerName = "vonage"

// tokenTTL is the validity window of one signed API token.
const tokenTTL = time.Minute

type Diagnostic interface {
	WithContext(ctx ...keyvalue.T) Diagnostic

	PlacedCall(to string, callID string)
	Error(msg string, err error)
}

// Service is the adapter for the Vonage voice API. It signs requests with
// the application private key and places one outbound call per request,
// speaking the alert text to the recipient.
type Service struct {
	configValue atomic.Value
	clientValue atomic.Value
	keyValue    atomic.Value
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

// Open loads the application private key. A missing or unparsable key for
// an enabled service fails the server start.
func (s *Service) Open() error {
	c := s.config()
	if !c.Enabled {
		return nil
	}
	pem, err := ioutil.ReadFile(c.PrivateKeyPath)
	if err != nil {
		return &alert.ConfigurationError{
			Provider: providerName,
			Message:  fmt.Sprintf("cannot read private key %s: %v", c.PrivateKeyPath, err),
		}
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return &alert.ConfigurationError{
			Provider: providerName,
			Message:  fmt.Sprintf("cannot parse private key %s: %v", c.PrivateKeyPath, err),
		}
	}
	s.keyValue.Store(key)
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

// Enabled reports whether the voice channel may be used.
func (s *Service) Enabled() bool {
	return s.config().Enabled
}

// PlaceCall places one outbound call that speaks text to the recipient.
func (s *Service) PlaceCall(ctx context.Context, to, text string) (alert.CallReceipt, error) {
	if to = strings.TrimSpace(to); to == "" {
		return alert.CallReceipt{}, errors.New("to must not be empty")
	}
	if text == "" {
		return alert.CallReceipt{}, errors.New("text must not be empty")
	}

	c := s.config()
	key, ok := s.keyValue.Load().(*rsa.PrivateKey)
	if !ok {
		return alert.CallReceipt{}, &alert.ConfigurationError{
			Provider: providerName,
			Message:  "private key not loaded",
		}
	}

	token, err := s.token(c, key)
	if err != nil {
		return alert.CallReceipt{}, errors.Wrap(err, "failed to sign API token")
	}

	body := callRequest{
		To:   []endpoint{{Type: "phone", Number: to}},
		From: endpoint{Type: "phone", Number: c.FromNumber},
		NCCO: []ncco{{
			Action:   "talk",
			Language: c.Language,
			Text:     text,
		}},
	}
	var post bytes.Buffer
	if err := json.NewEncoder(&post).Encode(body); err != nil {
		return alert.CallReceipt{}, errors.Wrap(err, "failed to encode request body")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.Timeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.URL, &post)
	if err != nil {
		return alert.CallReceipt{}, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		code := "network"
		if ctx.Err() == context.DeadlineExceeded {
			code = "timeout"
		}
		perr := &alert.ProviderError{
			Provider: providerName,
			Code:     code,
			Message:  shorten(err.Error()),
		}
		s.diag.Error("failed to place call", perr)
		return alert.CallReceipt{}, perr
	}
	defer resp.Body.Close()

	raw, _ := ioutil.ReadAll(resp.Body)
	var r callResponse
	json.Unmarshal(raw, &r)

	if resp.StatusCode/100 != 2 {
		perr := &alert.ProviderError{
			Provider: providerName,
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  shorten(firstNonEmpty(r.Title, string(raw))),
		}
		s.diag.Error("failed to place call", perr)
		return alert.CallReceipt{}, perr
	}

	s.diag.PlacedCall(to, r.UUID)
	return alert.CallReceipt{
		CallID: r.UUID,
		Status: r.Status,
	}, nil
}

// token builds a short-lived RS256 token in the form the Vonage API
// expects for application auth.
func (s *Service) token(c Config, key *rsa.PrivateKey) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"application_id": c.ApplicationID,
		"iat":            now.Unix(),
		"exp":            now.Add(tokenTTL).Unix(),
		"jti":            uuid.New().String(),
	})
	return t.SignedString(key)
}

type endpoint struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type ncco struct {
	Action   string `json:"action"`
	Language string `json:"language,omitempty"`
	Text     string `json:"text"`
}

type callRequest struct {
	To   []endpoint `json:"to"`
	From endpoint   `json:"from"`
	NCCO []ncco     `json:"ncco"`
}

type callResponse struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
	// Title carries the error summary on API failures.
	Title string `json:"title"`
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
