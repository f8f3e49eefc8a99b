package quicksendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Server is a spy QuickSend endpoint. It records every request it
// receives and replies with a configurable response.
type Server struct {
	mu       sync.Mutex
	ts       *httptest.Server
	URL      string
	requests []Request
	closed   bool

	// Response is returned for every request. Tests may replace it
	// before exercising the adapter.
	Response Response
}

func NewServer() *Server {
	s := &Server{
		Response: Response{
			Code: http.StatusOK,
			Body: map[string]interface{}{
				"status":     "success",
				"message_id": "qs-1",
			},
		},
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		qr := Request{
			Fun: r.URL.Query().Get("FUN"),
		}
		qr.Username, qr.Password, _ = r.BasicAuth()
		json.NewDecoder(r.Body).Decode(&qr.PostData)

		s.mu.Lock()
		s.requests = append(s.requests, qr)
		resp := s.Response
		s.mu.Unlock()

		w.WriteHeader(resp.Code)
		json.NewEncoder(w).Encode(resp.Body)
	}))
	s.ts = ts
	s.URL = ts.URL
	return s
}

// SetResponse changes the canned response for subsequent requests.
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
	Fun      string
	Username string
	Password string
	PostData PostData
}

type PostData struct {
	SenderID  string      `json:"senderID"`
	To        interface{} `json:"to"`
	Msg       string      `json:"msg"`
	CheckCost bool        `json:"check_cost"`
}

// ToList returns the bulk recipient list of the request.
func (p PostData) ToList() []string {
	list, ok := p.To.([]interface{})
	if !ok {
		return nil
	}
	numbers := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			numbers = append(numbers, s)
		}
	}
	return numbers
}

// ToString returns the single recipient of the request.
func (p PostData) ToString() string {
	s, _ := p.To.(string)
	return s
}

type Response struct {
	Code int
	Body map[string]interface{}
}
