package httpd

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"
)

type Diagnostic interface {
	NewHTTPServerErrorLogger() *log.Logger

	StartingService()
	StoppedService()
	ListeningOn(addr string, proto string)

	HTTP(method string, uri string, status int, duration time.Duration)
	RecoveryError(msg string, err string, method string, uri string)
	Error(msg string, err error)
}

// Service owns the API listener. The route table lives on the Handler;
// the service only manages the socket lifecycle.
type Service struct {
	ln   net.Listener
	addr string
	err  chan error

	shutdownTimeout time.Duration

	server *http.Server

	Handler *Handler

	diag Diagnostic
}

func NewService(c Config, d Diagnostic) *Service {
	s := &Service{
		addr:            c.BindAddress,
		err:             make(chan error, 1),
		shutdownTimeout: time.Duration(c.ShutdownTimeout),
		Handler:         NewHandler(c.LogEnabled, d),
		diag:            d,
	}
	s.server = &http.Server{
		Handler:  s.Handler,
		ErrorLog: d.NewHTTPServerErrorLogger(),
	}
	return s
}

// Open starts the service and listens on the configured bind address.
func (s *Service) Open() error {
	s.diag.StartingService()

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.diag.ListeningOn(ln.Addr().String(), "http")

	go s.serve()
	return nil
}

func (s *Service) serve() {
	err := s.server.Serve(s.ln)
	if err != nil && err != http.ErrServerClosed {
		s.err <- err
	}
}

// Close drains in-flight requests, bounded by the shutdown timeout.
func (s *Service) Close() error {
	defer s.diag.StoppedService()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Err returns a channel for fatal errors that occur on the listener.
func (s *Service) Err() <-chan error {
	return s.err
}

// Addr returns the bound address, nil before Open.
func (s *Service) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}
