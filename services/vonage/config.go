package vonage

import (
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/usafe/sosd/toml"
)

const (
	// DefaultVonageURL is the default URL for the Vonage voice API.
	DefaultVonageURL = "https://api.nexmo.com/v1/calls"

	// DefaultLanguage is the language of the spoken alert text.
	DefaultLanguage = "en-US"

	// DefaultTimeout bounds one call-placement request. Voice setup is
	// slower than SMS submission, so the default is more generous.
	DefaultTimeout = toml.Duration(20 * time.Second)
)

// Config is the [vonage] configuration as defined in the sosd
// configuration file.
type Config struct {
	// Whether voice calls are enabled.
	Enabled bool `toml:"enabled" override:"enabled"`
	// The Vonage application id.
	ApplicationID string `toml:"application-id" override:"application-id"`
	// Path to the application private key used to sign API requests.
	// The file is read once when the service opens.
	PrivateKeyPath string `toml:"private-key" override:"private-key"`
	// The caller number presented to the recipient.
	FromNumber string `toml:"from-number" override:"from-number"`
	// The URL for the Vonage voice API.
	// Default: DefaultVonageURL
	URL string `toml:"url" override:"url"`
	// Language of the spoken alert text.
	Language string `toml:"language" override:"language"`
	// Maximum duration of one call-placement request.
	Timeout toml.Duration `toml:"timeout" override:"timeout"`
	// Whether to skip TLS verification of the Vonage host.
	InsecureSkipVerify bool `toml:"insecure-skip-verify" override:"insecure-skip-verify"`
}

func NewConfig() Config {
	return Config{
		URL:      DefaultVonageURL,
		Language: DefaultLanguage,
		Timeout:  DefaultTimeout,
	}
}

// Validate ensures that all configuration options are valid. An enabled
// voice channel without credentials is a startup error.
func (c Config) Validate() error {
	if c.Enabled {
		if c.ApplicationID == "" {
			return errors.New("must specify Vonage application-id")
		}
		if c.PrivateKeyPath == "" {
			return errors.New("must specify Vonage private-key")
		}
		if c.FromNumber == "" {
			return errors.New("must specify Vonage from-number")
		}
		if c.URL == "" {
			return errors.New("must specify Vonage url")
		}
		if _, err := url.Parse(c.URL); err != nil {
			return errors.Wrapf(err, "invalid URL %q", c.URL)
		}
		if c.Timeout <= 0 {
			return errors.New("timeout must be positive")
		}
	}
	return nil
}
