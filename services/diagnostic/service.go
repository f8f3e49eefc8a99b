package diagnostic

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service owns the root logger. Every other service receives a narrow
// Diagnostic handler created from it, so packages never depend on the
// logging library directly.
type Service struct {
	c Config

	stdout io.Writer
	stderr io.Writer

	level  zap.AtomicLevel
	logger *zap.Logger
	closer io.Closer
}

func NewService(c Config, stdout, stderr io.Writer) *Service {
	return &Service{
		c:      c,
		stdout: stdout,
		stderr: stderr,
		level:  zap.NewAtomicLevel(),
	}
}

func (s *Service) Open() error {
	var sink zapcore.WriteSyncer
	switch s.c.File {
	case "STDOUT":
		sink = zapcore.AddSync(s.stdout)
	case "STDERR":
		sink = zapcore.AddSync(s.stderr)
	default:
		f, err := os.OpenFile(s.c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return err
		}
		sink = zapcore.AddSync(f)
		s.closer = f
	}

	if err := s.SetLevel(s.c.Level); err != nil {
		return err
	}

	s.logger = zap.New(zapcore.NewCore(newEncoder(s.c.Encoding), sink, s.level))
	return nil
}

func (s *Service) Close() error {
	if s.logger != nil {
		s.logger.Sync()
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// SetLevel changes the minimum written level at runtime.
func (s *Service) SetLevel(level string) error {
	l, err := parseLevel(level)
	if err != nil {
		return err
	}
	s.level.SetLevel(l)
	return nil
}

func newEncoder(encoding string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// BootstrapMainHandler returns a handler for use before the configuration
// is loaded, writing console lines to stderr.
func BootstrapMainHandler() *CmdHandler {
	core := zapcore.NewCore(
		newEncoder("console"),
		zapcore.AddSync(os.Stderr),
		zap.InfoLevel,
	)
	return &CmdHandler{l: zap.New(core).Named("run")}
}
