// Provides a server type for starting and configuring a sosd server.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/usafe/sosd/services/diagnostic"
	"github.com/usafe/sosd/services/dispatch"
	"github.com/usafe/sosd/services/httpd"
	"github.com/usafe/sosd/services/quicksend"
	"github.com/usafe/sosd/services/vonage"
)

const balanceProbeTimeout = 10 * time.Second

// BuildInfo represents the build details for the server code.
type BuildInfo struct {
	Version string
	Commit  string
	Branch  string
}

type Diagnostic interface {
	InitializedServer(hostname string, serverID string)
	OpenedService(name string)
	ClosedService(name string)
	BalanceRetrieved(balance string)
	Error(msg string, err error)
}

// Service manages a resource with a lifecycle tied to the server's own.
type Service interface {
	Open() error
	Close() error
}

// Server is built from a Config and manages the startup and shutdown of
// all services in the proper order.
type Server struct {
	hostname string

	config *Config

	err chan error

	DiagService      *diagnostic.Service
	HTTPDService     *httpd.Service
	QuickSendService *quicksend.Service
	VonageService    *vonage.Service
	DispatchService  *dispatch.Service

	// List of services in startup order
	Services []Service
	// Map of service name to index in Services list
	ServicesByName map[string]int

	BuildInfo BuildInfo
	ServerID  uuid.UUID

	diag Diagnostic
}

// New returns a new instance of Server built from a config.
func New(c *Config, buildInfo BuildInfo, diagService *diagnostic.Service) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s. To generate a valid configuration file run `sosd config > sosd.generated.conf`.", err)
	}
	s := &Server{
		config:         c,
		BuildInfo:      buildInfo,
		hostname:       c.Hostname,
		err:            make(chan error),
		ServerID:       uuid.New(),
		DiagService:    diagService,
		ServicesByName: make(map[string]int),
		diag:           diagService.NewServerHandler(),
	}
	s.diag.InitializedServer(s.hostname, s.ServerID.String())

	// Append channel provider services.
	s.appendQuickSendService()
	s.appendVonageService()

	// Append the dispatch engine once its providers exist.
	s.appendDispatchService()

	// Append HTTPD Service last so that the API is not listening till
	// everything else succeeded.
	s.appendHTTPDService()

	return s, nil
}

func (s *Server) AppendService(name string, srv Service) {
	if _, ok := s.ServicesByName[name]; ok {
		// Should be unreachable code
		panic("cannot append service twice")
	}
	i := len(s.Services)
	s.Services = append(s.Services, srv)
	s.ServicesByName[name] = i
}

func (s *Server) appendQuickSendService() {
	d := s.DiagService.NewQuickSendHandler()
	srv := quicksend.NewService(s.config.QuickSend, d)

	s.QuickSendService = srv
	s.AppendService("quicksend", srv)
}

func (s *Server) appendVonageService() {
	d := s.DiagService.NewVonageHandler()
	srv := vonage.NewService(s.config.Vonage, d)

	s.VonageService = srv
	s.AppendService("vonage", srv)
}

func (s *Server) appendDispatchService() {
	d := s.DiagService.NewDispatchHandler()
	srv := dispatch.NewService(s.config.Dispatch, d)

	srv.SMSService = s.QuickSendService
	srv.VoiceService = s.VonageService

	s.DispatchService = srv
	s.AppendService("dispatch", srv)
}

func (s *Server) appendHTTPDService() {
	d := s.DiagService.NewHTTPDHandler()
	srv := httpd.NewService(s.config.HTTP, d)

	srv.Handler.DispatchService = s.DispatchService
	srv.Handler.BalanceService = s.QuickSendService
	srv.Handler.Version = s.BuildInfo.Version

	s.HTTPDService = srv
	s.AppendService("httpd", srv)
}

func (s *Server) Err() <-chan error { return s.err }

// Open opens all the services.
func (s *Server) Open() error {
	if err := s.startServices(); err != nil {
		s.Close()
		return err
	}

	go s.watchServices()

	s.probeBalance()

	return nil
}

func (s *Server) startServices() error {
	for i, service := range s.Services {
		if err := service.Open(); err != nil {
			return fmt.Errorf("open service %T: %s", service, err)
		}
		s.diag.OpenedService(s.serviceName(i))
	}
	return nil
}

// probeBalance reads the gateway balance once at startup so that an
// exhausted account shows up in the logs before the first alert does.
// Failures are advisory and never prevent startup.
func (s *Server) probeBalance() {
	if !s.QuickSendService.Enabled() && !s.QuickSendService.BulkEnabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), balanceProbeTimeout)
	defer cancel()
	b, err := s.QuickSendService.CheckBalance(ctx)
	if err != nil {
		s.diag.Error("failed to check gateway balance", err)
		return
	}
	s.diag.BalanceRetrieved(b.Balance)
}

// Watch if something dies
func (s *Server) watchServices() {
	var err error
	select {
	case err = <-s.HTTPDService.Err():
	}
	s.err <- err
}

// Close shuts down all services in reverse order.
func (s *Server) Close() error {
	for i := len(s.Services) - 1; i >= 0; i-- {
		service := s.Services[i]
		if err := service.Close(); err != nil {
			s.diag.Error(fmt.Sprintf("error closing service %T", service), err)
			continue
		}
		s.diag.ClosedService(s.serviceName(i))
	}
	return nil
}

func (s *Server) serviceName(i int) string {
	for name, idx := range s.ServicesByName {
		if idx == i {
			return name
		}
	}
	return fmt.Sprintf("%T", s.Services[i])
}
