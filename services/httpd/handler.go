package httpd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/usafe/sosd/alert"
)

const BasePath = "/sos/v1"

// Dispatcher is the engine behind the alert endpoints.
type Dispatcher interface {
	Dispatch(ctx context.Context, req alert.Request) (alert.Outcome, error)
	BulkRequest() alert.Request
}

// BalanceChecker probes the SMS gateway account balance.
type BalanceChecker interface {
	CheckBalance(ctx context.Context) (alert.BalanceSnapshot, error)
}

type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

// Handler is the HTTP handler for the sosd API server.
type Handler struct {
	routes []Route

	DispatchService Dispatcher
	BalanceService  BalanceChecker

	Version string

	loggingEnabled bool
	diag           Diagnostic
}

// NewHandler returns a new instance of Handler with routes.
func NewHandler(loggingEnabled bool, d Diagnostic) *Handler {
	h := &Handler{
		loggingEnabled: loggingEnabled,
		diag:           d,
	}

	h.routes = []Route{
		{
			Name:        "sms",
			Method:      "POST",
			Pattern:     BasePath + "/sms",
			HandlerFunc: h.serveSMS,
		},
		{
			Name:        "bulk-sms",
			Method:      "POST",
			Pattern:     BasePath + "/bulk-sms",
			HandlerFunc: h.serveBulkSMS,
		},
		{
			Name:        "call",
			Method:      "POST",
			Pattern:     BasePath + "/call",
			HandlerFunc: h.serveCall,
		},
		{
			Name:        "balance",
			Method:      "GET",
			Pattern:     BasePath + "/balance",
			HandlerFunc: h.serveBalance,
		},
		{
			Name:        "ping",
			Method:      "GET",
			Pattern:     BasePath + "/ping",
			HandlerFunc: h.servePing,
		},
		{
			Name:        "ping-head",
			Method:      "HEAD",
			Pattern:     BasePath + "/ping",
			HandlerFunc: h.servePing,
		},
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	defer func() {
		if err := recover(); err != nil {
			h.diag.RecoveryError("panic while serving request", fmt.Sprintf("%v", err), r.Method, r.URL.String())
			httpError(sw, "internal server error", http.StatusInternalServerError)
		}
		if h.loggingEnabled {
			h.diag.HTTP(r.Method, r.URL.String(), sw.status, time.Since(start))
		}
	}()

	patternFound := false
	for _, route := range h.routes {
		if route.Pattern != r.URL.Path {
			continue
		}
		patternFound = true
		if route.Method == r.Method {
			route.HandlerFunc(sw, r)
			return
		}
	}
	if patternFound {
		httpError(sw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	httpError(sw, "not found", http.StatusNotFound)
}

type smsRequest struct {
	Message string   `json:"message"`
	Numbers []string `json:"numbers"`
}

func (h *Handler) serveSMS(w http.ResponseWriter, r *http.Request) {
	var req smsRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.DispatchService.Dispatch(r.Context(), alert.Request{
		Recipients: req.Numbers,
		Message:    req.Message,
	})
	if err != nil {
		h.diag.Error("dispatch failed", err)
		httpError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	h.writeOutcome(w, o, "SOS SMS sent successfully")
}

func (h *Handler) serveBulkSMS(w http.ResponseWriter, r *http.Request) {
	// The bulk endpoint always sends the configured recipient list.
	o, err := h.DispatchService.Dispatch(r.Context(), h.DispatchService.BulkRequest())
	if err != nil {
		h.diag.Error("dispatch failed", err)
		httpError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	h.writeOutcome(w, o, "Bulk SOS SMS sent successfully")
}

type callRequest struct {
	To string `json:"to"`
}

func (h *Handler) serveCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := decodeBody(r, &req); err != nil {
		httpError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var recipients []string
	if req.To != "" {
		recipients = []string{req.To}
	}
	o, err := h.DispatchService.Dispatch(r.Context(), alert.Request{
		Recipients: recipients,
		Hint:       alert.ChannelCall,
	})
	if err != nil {
		h.diag.Error("dispatch failed", err)
		httpError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	h.writeOutcome(w, o, "Call initiated successfully")
}

func (h *Handler) serveBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.BalanceService.CheckBalance(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"message": "Failed to check balance",
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Balance retrieved",
		"data":    b,
	})
}

func (h *Handler) servePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Sosd-Version", h.Version)
	w.WriteHeader(http.StatusNoContent)
}

// writeOutcome maps a dispatch outcome onto the API response contract:
// 200 on success, 400 for invalid requests, 503 for a disabled channel
// and 500 for provider failures.
func (h *Handler) writeOutcome(w http.ResponseWriter, o alert.Outcome, successMsg string) {
	switch o.Status {
	case alert.StatusSent:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": successMsg,
			"data":    o,
			"targets": o.Targets(),
		})
	case alert.StatusChannelDisabled:
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"message": fmt.Sprintf("%s feature is disabled", o.Channel),
			"status":  o.Status,
		})
	case alert.StatusInvalidRequest:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"message": o.Error,
			"status":  o.Status,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"message": "Failed to send SOS alert",
			"status":  o.Status,
			"error":   o.Error,
			"data":    o,
		})
	}
}

// decodeBody parses an optional JSON request body. An empty body is
// valid, every field falls back to the configured default.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// HttpError writes an error response in the API's JSON error form.
func httpError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]interface{}{"error": msg})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	headerWrote bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.headerWrote {
		return
	}
	w.headerWrote = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.headerWrote = true
	return w.ResponseWriter.Write(b)
}
