package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"testing"

	"github.com/usafe/sosd/server"
	"github.com/usafe/sosd/services/diagnostic"
	"github.com/usafe/sosd/services/quicksend/quicksendtest"
)

// testServer wires a full server against a spy SMS gateway.
type testServer struct {
	*server.Server
	QuickSend *quicksendtest.Server
}

func openServer(t *testing.T, configure func(c *server.Config)) *testServer {
	t.Helper()

	qs := quicksendtest.NewServer()

	c := server.NewConfig()
	c.HTTP.BindAddress = "localhost:0"
	c.QuickSend.Enabled = true
	c.QuickSend.BulkEnabled = true
	c.QuickSend.Email = "ops@example.com"
	c.QuickSend.APIKey = "secret"
	c.QuickSend.URL = qs.URL
	c.Dispatch.DefaultRecipients = []string{"+94111111111"}
	c.Dispatch.BulkRecipients = []string{"+94111111111", "+94222222222"}
	if configure != nil {
		configure(c)
	}

	diagService := diagnostic.NewService(c.Logging, ioutil.Discard, ioutil.Discard)
	if err := diagService.Open(); err != nil {
		t.Fatal(err)
	}

	s, err := server.New(c, server.BuildInfo{Version: "testing"}, diagService)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}
	ts := &testServer{Server: s, QuickSend: qs}
	t.Cleanup(func() {
		s.Close()
		qs.Close()
		diagService.Close()
	})
	return ts
}

func (s *testServer) URL() string {
	return fmt.Sprintf("http://%s/sos/v1", s.HTTPDService.Addr().String())
}

func TestServer_DispatchSMS(t *testing.T) {
	s := openServer(t, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"numbers": []string{"+94555555555"},
		"message": "house fire",
	})
	resp, err := http.Post(s.URL()+"/sms", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d exp %d", resp.StatusCode, http.StatusOK)
	}

	var sent []quicksendtest.Request
	for _, r := range s.QuickSend.Requests() {
		if r.Fun == "SEND_SINGLE" {
			sent = append(sent, r)
		}
	}
	if len(sent) != 1 {
		t.Fatalf("unexpected send count: got %d exp 1", len(sent))
	}
	if got, exp := sent[0].PostData.ToString(), "+94555555555"; got != exp {
		t.Errorf("unexpected recipient: got %s exp %s", got, exp)
	}
	if got, exp := sent[0].PostData.Msg, "house fire"; got != exp {
		t.Errorf("unexpected message: got %s exp %s", got, exp)
	}
}

func TestServer_DispatchBulkSMS(t *testing.T) {
	s := openServer(t, nil)

	resp, err := http.Post(s.URL()+"/bulk-sms", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: got %d exp %d", resp.StatusCode, http.StatusOK)
	}

	var bulk []quicksendtest.Request
	for _, r := range s.QuickSend.Requests() {
		if r.Fun == "SEND_BULK_SAME" {
			bulk = append(bulk, r)
		}
	}
	if len(bulk) != 1 {
		t.Fatalf("unexpected bulk send count: got %d exp 1", len(bulk))
	}
	if got := bulk[0].PostData.ToList(); len(got) != 2 {
		t.Errorf("unexpected bulk recipients: %v", got)
	}
}

func TestServer_DispatchSMS_Disabled(t *testing.T) {
	s := openServer(t, func(c *server.Config) {
		c.QuickSend.Enabled = false
	})

	body, _ := json.Marshal(map[string]interface{}{
		"numbers": []string{"+94555555555"},
	})
	resp, err := http.Post(s.URL()+"/sms", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: got %d exp %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	for _, r := range s.QuickSend.Requests() {
		if r.Fun == "SEND_SINGLE" || r.Fun == "SEND_BULK_SAME" {
			t.Fatalf("unexpected provider request: %s", r.Fun)
		}
	}
}

func TestServer_BalanceProbeAtStartup(t *testing.T) {
	s := openServer(t, nil)

	var probes int
	for _, r := range s.QuickSend.Requests() {
		if r.Fun == "CHECK_BALANCE" {
			probes++
		}
	}
	if probes != 1 {
		t.Fatalf("unexpected balance probe count: got %d exp 1", probes)
	}
}

func TestServer_Ping(t *testing.T) {
	s := openServer(t, nil)

	resp, err := http.Get(s.URL() + "/ping")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d exp %d", resp.StatusCode, http.StatusNoContent)
	}
	if got, exp := resp.Header.Get("X-Sosd-Version"), "testing"; got != exp {
		t.Errorf("unexpected version header: got %s exp %s", got, exp)
	}
}
