package httpd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/usafe/sosd/toml"
)

const (
	DefaultBindAddress = ":9340"

	DefaultShutdownTimeout = toml.Duration(time.Second * 10)
)

// Config is the [http] configuration as defined in the sosd configuration
// file.
type Config struct {
	// The address the API server binds to.
	BindAddress string `toml:"bind-address"`
	// Whether every HTTP request is logged.
	LogEnabled bool `toml:"log-enabled"`
	// How long Close waits for in-flight requests before giving up.
	ShutdownTimeout toml.Duration `toml:"shutdown-timeout"`
}

func NewConfig() Config {
	return Config{
		BindAddress:     DefaultBindAddress,
		LogEnabled:      true,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

func (c Config) Validate() error {
	if c.BindAddress == "" {
		return errors.New("must specify bind-address")
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("shutdown-timeout must not be negative")
	}
	return nil
}
