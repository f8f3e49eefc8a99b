package diagnostic

import (
	"log"
	"time"

	"github.com/usafe/sosd/keyvalue"
	"github.com/usafe/sosd/services/dispatch"
	"github.com/usafe/sosd/services/quicksend"
	"github.com/usafe/sosd/services/vonage"
	"go.uber.org/zap"
)

func fields(ctx []keyvalue.T) []zap.Field {
	f := make([]zap.Field, len(ctx))
	for i, kv := range ctx {
		f[i] = zap.String(kv.Key, kv.Value)
	}
	return f
}

// CmdHandler logs for the command running the server.
type CmdHandler struct {
	l *zap.Logger
}

func (s *Service) NewCmdHandler() *CmdHandler {
	return &CmdHandler{l: s.logger.Named("run")}
}

func (h *CmdHandler) Starting(version, commit, branch string) {
	h.l.Info("sosd starting",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("branch", branch),
	)
}

func (h *CmdHandler) Info(msg string) {
	h.l.Info(msg)
}

func (h *CmdHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// ServerHandler logs for the server package.
type ServerHandler struct {
	l *zap.Logger
}

func (s *Service) NewServerHandler() *ServerHandler {
	return &ServerHandler{l: s.logger.Named("srv")}
}

func (h *ServerHandler) InitializedServer(hostname string, serverID string) {
	h.l.Info("initialized server", zap.String("hostname", hostname), zap.String("server_id", serverID))
}

func (h *ServerHandler) OpenedService(name string) {
	h.l.Debug("opened service", zap.String("service", name))
}

func (h *ServerHandler) ClosedService(name string) {
	h.l.Debug("closed service", zap.String("service", name))
}

func (h *ServerHandler) BalanceRetrieved(balance string) {
	h.l.Info("SMS gateway balance retrieved", zap.String("balance", balance))
}

func (h *ServerHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// HTTPDHandler logs for the HTTP API service.
type HTTPDHandler struct {
	l *zap.Logger
}

func (s *Service) NewHTTPDHandler() *HTTPDHandler {
	return &HTTPDHandler{l: s.logger.Named("httpd")}
}

func (h *HTTPDHandler) NewHTTPServerErrorLogger() *log.Logger {
	return zap.NewStdLog(h.l.Named("http-server"))
}

func (h *HTTPDHandler) StartingService() {
	h.l.Info("starting HTTP service")
}

func (h *HTTPDHandler) StoppedService() {
	h.l.Info("closed HTTP service")
}

func (h *HTTPDHandler) ListeningOn(addr string, proto string) {
	h.l.Info("listening on", zap.String("addr", addr), zap.String("protocol", proto))
}

func (h *HTTPDHandler) HTTP(method string, uri string, status int, duration time.Duration) {
	h.l.Info("http request",
		zap.String("method", method),
		zap.String("uri", uri),
		zap.Int("status", status),
		zap.Duration("duration", duration),
	)
}

func (h *HTTPDHandler) RecoveryError(msg string, err string, method string, uri string) {
	h.l.Error(msg,
		zap.String("error", err),
		zap.String("method", method),
		zap.String("uri", uri),
	)
}

func (h *HTTPDHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// QuickSendHandler logs for the QuickSend adapter.
type QuickSendHandler struct {
	l *zap.Logger
}

func (s *Service) NewQuickSendHandler() *QuickSendHandler {
	return &QuickSendHandler{l: s.logger.Named("quicksend")}
}

func (h *QuickSendHandler) WithContext(ctx ...keyvalue.T) quicksend.Diagnostic {
	return &QuickSendHandler{l: h.l.With(fields(ctx)...)}
}

func (h *QuickSendHandler) SentSMS(to string, messageID string) {
	h.l.Info("sent SMS", zap.String("to", to), zap.String("message_id", messageID))
}

func (h *QuickSendHandler) SentBulkSMS(count int, messageID string) {
	h.l.Info("sent bulk SMS", zap.Int("recipients", count), zap.String("message_id", messageID))
}

func (h *QuickSendHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// VonageHandler logs for the Vonage adapter.
type VonageHandler struct {
	l *zap.Logger
}

func (s *Service) NewVonageHandler() *VonageHandler {
	return &VonageHandler{l: s.logger.Named("vonage")}
}

func (h *VonageHandler) WithContext(ctx ...keyvalue.T) vonage.Diagnostic {
	return &VonageHandler{l: h.l.With(fields(ctx)...)}
}

func (h *VonageHandler) PlacedCall(to string, callID string) {
	h.l.Info("placed call", zap.String("to", to), zap.String("call_id", callID))
}

func (h *VonageHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// DispatchHandler logs for the dispatch engine.
type DispatchHandler struct {
	l *zap.Logger
}

func (s *Service) NewDispatchHandler() *DispatchHandler {
	return &DispatchHandler{l: s.logger.Named("dispatch")}
}

func (h *DispatchHandler) WithContext(ctx ...keyvalue.T) dispatch.Diagnostic {
	return &DispatchHandler{l: h.l.With(fields(ctx)...)}
}

func (h *DispatchHandler) DispatchingAlert(id string, channel string, recipients int) {
	h.l.Info("dispatching alert",
		zap.String("id", id),
		zap.String("channel", channel),
		zap.Int("recipients", recipients),
	)
}

func (h *DispatchHandler) ChannelDisabled(id string, channel string) {
	h.l.Info("channel disabled, alert not sent",
		zap.String("id", id),
		zap.String("channel", channel),
	)
}

func (h *DispatchHandler) AlertCompleted(id string, channel string, success bool) {
	h.l.Info("alert completed",
		zap.String("id", id),
		zap.String("channel", channel),
		zap.Bool("success", success),
	)
}

func (h *DispatchHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}
