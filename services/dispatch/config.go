package dispatch

import "github.com/pkg/errors"

// Default alert content, matching the demo QuickSend account.
const (
	DefaultSenderID = "QKSendDemo"
	DefaultMessage  = "SOS! Immediate help needed."
	DefaultCallText = "This is an automated emergency call. Immediate help is needed."
)

// Config is the [dispatch] configuration as defined in the sosd
// configuration file. It holds the alert defaults applied when an inbound
// request does not specify its own values. The config is read once at
// startup; toggling requires a restart.
type Config struct {
	// The sender identity shown to SMS recipients.
	SenderID string `toml:"sender-id" override:"sender-id"`
	// The message sent when a request carries none.
	DefaultMessage string `toml:"default-message" override:"default-message"`
	// Recipients used by the sms endpoint when a request carries none.
	DefaultRecipients []string `toml:"default-recipients" override:"default-recipients"`
	// Recipients used by the bulk-sms endpoint. The bulk endpoint
	// intentionally accepts no per-request override.
	BulkRecipients []string `toml:"bulk-recipients" override:"bulk-recipients"`
	// Recipient called when a call request carries no target.
	DefaultCallTo string `toml:"default-call-to" override:"default-call-to"`
	// The text spoken to the recipient of a voice call.
	CallText string `toml:"call-text" override:"call-text"`
}

func NewConfig() Config {
	return Config{
		SenderID:       DefaultSenderID,
		DefaultMessage: DefaultMessage,
		CallText:       DefaultCallText,
	}
}

func (c Config) Validate() error {
	if c.SenderID == "" {
		return errors.New("must specify sender-id")
	}
	return nil
}
