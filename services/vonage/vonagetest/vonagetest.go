package vonagetest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
)

// Server is a spy Vonage voice endpoint. It records every call-placement
// request and replies with a configurable response.
type Server struct {
	mu       sync.Mutex
	ts       *httptest.Server
	URL      string
	requests []Request
	closed   bool

	Response Response
}

func NewServer() *Server {
	s := &Server{
		Response: Response{
			Code: http.StatusCreated,
			Body: map[string]interface{}{
				"uuid":   "63f61863-4a51-4f6b-86e1-46edebcf9356",
				"status": "started",
			},
		},
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vr := Request{
			BearerToken: strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
		}
		json.NewDecoder(r.Body).Decode(&vr.PostData)

		s.mu.Lock()
		s.requests = append(s.requests, vr)
		resp := s.Response
		s.mu.Unlock()

		w.WriteHeader(resp.Code)
		json.NewEncoder(w).Encode(resp.Body)
	}))
	s.ts = ts
	s.URL = ts.URL
	return s
}

func (s *Server) SetResponse(r Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Response = r
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *Server) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.ts.Close()
}

type Request struct {
	BearerToken string
	PostData    PostData
}

type PostData struct {
	To []struct {
		Type   string `json:"type"`
		Number string `json:"number"`
	} `json:"to"`
	From struct {
		Type   string `json:"type"`
		Number string `json:"number"`
	} `json:"from"`
	NCCO []struct {
		Action   string `json:"action"`
		Language string `json:"language"`
		Text     string `json:"text"`
	} `json:"ncco"`
}

type Response struct {
	Code int
	Body map[string]interface{}
}

// WritePrivateKey generates an RSA key, writes it PEM encoded to a
// temporary file and returns the path and the key. The caller removes the
// file when done.
func WritePrivateKey() (string, *rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", nil, err
	}
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	f, err := ioutil.TempFile("", "vonage-key-*.pem")
	if err != nil {
		return "", nil, err
	}
	if err := pem.Encode(f, block); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), key, nil
}
