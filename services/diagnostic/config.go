package diagnostic

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultFile     = "STDERR"
	DefaultLevel    = "INFO"
	DefaultEncoding = "console"
)

// Config is the [logging] configuration as defined in the sosd
// configuration file.
type Config struct {
	// Destination for log lines, STDOUT, STDERR or a file path.
	File string `toml:"file"`
	// Minimum level that is written: DEBUG, INFO, WARN or ERROR.
	Level string `toml:"level"`
	// Log line encoding, console or json.
	Encoding string `toml:"encoding"`
}

func NewConfig() Config {
	return Config{
		File:     DefaultFile,
		Level:    DefaultLevel,
		Encoding: DefaultEncoding,
	}
}

func (c Config) Validate() error {
	if c.File == "" {
		return errors.New("must specify file")
	}
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	switch c.Encoding {
	case "console", "json":
	default:
		return errors.Errorf("unknown log encoding %s", c.Encoding)
	}
	return nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return l, errors.Wrapf(err, "unknown log level %s", level)
	}
	return l, nil
}
