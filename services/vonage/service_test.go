package vonage

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/usafe/sosd/alert"
	"github.com/usafe/sosd/keyvalue"
	"github.com/usafe/sosd/services/vonage/vonagetest"
)

type diagnostic struct{}

func (d diagnostic) WithContext(ctx ...keyvalue.T) Diagnostic { return d }
func (diagnostic) PlacedCall(to string, callID string)        {}
func (diagnostic) Error(msg string, err error)                {}

func newTestService(t *testing.T, url string) *Service {
	t.Helper()
	keyPath, _, err := vonagetest.WritePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(keyPath) })

	c := NewConfig()
	c.Enabled = true
	c.ApplicationID = "app-id"
	c.PrivateKeyPath = keyPath
	c.FromNumber = "+94000000000"
	c.URL = url
	s := NewService(c, diagnostic{})
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestService_PlaceCall(t *testing.T) {
	ts := vonagetest.NewServer()
	defer ts.Close()

	s := newTestService(t, ts.URL)
	r, err := s.PlaceCall(context.Background(), "+94111111111", "SOS! Immediate help needed.")
	if err != nil {
		t.Fatal(err)
	}
	if exp, got := "63f61863-4a51-4f6b-86e1-46edebcf9356", r.CallID; exp != got {
		t.Errorf("unexpected call id: got %s exp %s", got, exp)
	}
	if exp, got := "started", r.Status; exp != got {
		t.Errorf("unexpected status: got %s exp %s", got, exp)
	}

	reqs := ts.Requests()
	if exp, got := 1, len(reqs); exp != got {
		t.Fatalf("unexpected request count: got %d exp %d", got, exp)
	}
	req := reqs[0]
	if exp, got := 1, len(req.PostData.To); exp != got {
		t.Fatalf("unexpected to count: got %d exp %d", got, exp)
	}
	if exp, got := "+94111111111", req.PostData.To[0].Number; exp != got {
		t.Errorf("unexpected to: got %s exp %s", got, exp)
	}
	if exp, got := "phone", req.PostData.To[0].Type; exp != got {
		t.Errorf("unexpected to type: got %s exp %s", got, exp)
	}
	if exp, got := "+94000000000", req.PostData.From.Number; exp != got {
		t.Errorf("unexpected from: got %s exp %s", got, exp)
	}
	if exp, got := 1, len(req.PostData.NCCO); exp != got {
		t.Fatalf("unexpected ncco count: got %d exp %d", got, exp)
	}
	if exp, got := "talk", req.PostData.NCCO[0].Action; exp != got {
		t.Errorf("unexpected ncco action: got %s exp %s", got, exp)
	}
	if exp, got := "SOS! Immediate help needed.", req.PostData.NCCO[0].Text; exp != got {
		t.Errorf("unexpected ncco text: got %s exp %s", got, exp)
	}
}

func TestService_PlaceCall_SignsToken(t *testing.T) {
	ts := vonagetest.NewServer()
	defer ts.Close()

	keyPath, key, err := vonagetest.WritePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(keyPath)

	c := NewConfig()
	c.Enabled = true
	c.ApplicationID = "app-id"
	c.PrivateKeyPath = keyPath
	c.FromNumber = "+94000000000"
	c.URL = ts.URL
	s := NewService(c, diagnostic{})
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}

	if _, err := s.PlaceCall(context.Background(), "+94111111111", "help"); err != nil {
		t.Fatal(err)
	}

	raw := ts.Requests()[0].BearerToken
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	if err != nil {
		t.Fatalf("token did not verify against the application key: %v", err)
	}
	if exp, got := "app-id", claims["application_id"]; exp != got {
		t.Errorf("unexpected application_id claim: got %v exp %v", got, exp)
	}
	if claims["jti"] == "" {
		t.Error("expected non-empty jti claim")
	}
}

func TestService_PlaceCall_ProviderFailure(t *testing.T) {
	ts := vonagetest.NewServer()
	defer ts.Close()
	ts.SetResponse(vonagetest.Response{
		Code: http.StatusUnauthorized,
		Body: map[string]interface{}{"title": "Unauthorized"},
	})

	s := newTestService(t, ts.URL)
	_, err := s.PlaceCall(context.Background(), "+94111111111", "help")
	pe, ok := err.(*alert.ProviderError)
	if !ok {
		t.Fatalf("unexpected error type: got %T exp *alert.ProviderError", err)
	}
	if exp, got := "http_401", pe.Code; exp != got {
		t.Errorf("unexpected code: got %s exp %s", got, exp)
	}
	if exp, got := "Unauthorized", pe.Message; exp != got {
		t.Errorf("unexpected message: got %s exp %s", got, exp)
	}
}

func TestService_Open_MissingKey(t *testing.T) {
	c := NewConfig()
	c.Enabled = true
	c.ApplicationID = "app-id"
	c.PrivateKeyPath = "/nonexistent/private.key"
	c.FromNumber = "+94000000000"
	s := NewService(c, diagnostic{})

	err := s.Open()
	if _, ok := err.(*alert.ConfigurationError); !ok {
		t.Fatalf("unexpected error type: got %T exp *alert.ConfigurationError", err)
	}
}

func TestService_Open_DisabledSkipsKey(t *testing.T) {
	c := NewConfig()
	s := NewService(c, diagnostic{})
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}
}

func TestConfig_Validate(t *testing.T) {
	c := NewConfig()
	if err := c.Validate(); err != nil {
		t.Errorf("disabled config should validate: %v", err)
	}

	c.Enabled = true
	if err := c.Validate(); err == nil {
		t.Error("expected validation error for missing credentials")
	}

	c.ApplicationID = "app-id"
	c.PrivateKeyPath = "/etc/sosd/private.key"
	c.FromNumber = "+94000000000"
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
