package quicksend

import (
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/usafe/sosd/toml"
)

const (
	// DefaultQuickSendURL is the default URL for the QuickSend client API.
	DefaultQuickSendURL = "https://quicksend.lk/Client/api.php"

	// DefaultTimeout bounds one send or balance call.
	DefaultTimeout = toml.Duration(10 * time.Second)
)

// Config is the [quicksend] configuration as defined in the sosd
// configuration file.
type Config struct {
	// Whether single SMS sending is enabled.
	Enabled bool `toml:"enabled" override:"enabled"`
	// Whether bulk SMS sending is enabled.
	BulkEnabled bool `toml:"bulk-enabled" override:"bulk-enabled"`
	// The QuickSend account email, used as the basic auth username.
	Email string `toml:"email" override:"email"`
	// The QuickSend API key, used as the basic auth password.
	APIKey string `toml:"api-key" override:"api-key,redact"`
	// The URL for the QuickSend client API.
	// Default: DefaultQuickSendURL
	URL string `toml:"url" override:"url"`
	// Maximum duration of one provider call.
	Timeout toml.Duration `toml:"timeout" override:"timeout"`
	// Whether to skip TLS verification of the QuickSend host.
	InsecureSkipVerify bool `toml:"insecure-skip-verify" override:"insecure-skip-verify"`
}

func NewConfig() Config {
	return Config{
		URL:     DefaultQuickSendURL,
		Timeout: DefaultTimeout,
	}
}

// Validate ensures that all configuration options are valid. Credentials
// must be present when either send path is enabled, so a missing key is a
// startup error rather than a per-request one.
func (c Config) Validate() error {
	if c.Enabled || c.BulkEnabled {
		if c.Email == "" {
			return errors.New("must specify QuickSend email")
		}
		if c.APIKey == "" {
			return errors.New("must specify QuickSend api-key")
		}
		if c.URL == "" {
			return errors.New("must specify QuickSend url")
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
