package alert

import (
	"strings"

	"github.com/google/uuid"
)

// Channel identifies a delivery mechanism for an alert.
type Channel string

const (
	// ChannelSMS delivers to a single recipient via the SMS gateway.
	ChannelSMS Channel = "sms"
	// ChannelBulkSMS delivers to many recipients in one gateway call.
	ChannelBulkSMS Channel = "bulk-sms"
	// ChannelCall places a voice call to a single recipient.
	ChannelCall Channel = "call"
	// ChannelAuto lets the dispatcher pick between sms and bulk-sms
	// based on the recipient count.
	ChannelAuto Channel = "auto"
)

// Request is one emergency alert to be delivered.
// Explicit fields take precedence over configured defaults.
type Request struct {
	// Recipients is the ordered list of destination addresses.
	Recipients []string
	// Message is the text to deliver. Empty means use the configured default.
	Message string
	// SenderID is the originator identity shown to recipients.
	SenderID string
	// Hint requests a specific channel. ChannelAuto or empty selects by
	// recipient count.
	Hint Channel
}

// NormalizeRecipients returns the recipients with surrounding whitespace
// trimmed, empty entries dropped and duplicates removed, preserving the
// order of first appearance.
func NormalizeRecipients(recipients []string) []string {
	seen := make(map[string]bool, len(recipients))
	normalized := make([]string, 0, len(recipients))
	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		normalized = append(normalized, r)
	}
	return normalized
}

// Status describes the terminal state of one dispatch.
type Status string

const (
	// StatusSent indicates every targeted recipient was accepted by the provider.
	StatusSent Status = "sent"
	// StatusFailed indicates at least one recipient was not delivered.
	StatusFailed Status = "failed"
	// StatusChannelDisabled indicates the selected channel is administratively
	// disabled and no provider call was made.
	StatusChannelDisabled Status = "channel_disabled"
	// StatusInvalidRequest indicates the request was rejected before a channel
	// was selected.
	StatusInvalidRequest Status = "invalid_request"
)

// RecipientStatus reports the delivery result for one recipient.
type RecipientStatus struct {
	To     string `json:"to"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Outcome is the consolidated result of one dispatched alert.
// It is produced once per request and never mutated.
type Outcome struct {
	// ID uniquely identifies this dispatch.
	ID uuid.UUID `json:"id"`
	// Status is the terminal dispatch state.
	Status Status `json:"status"`
	// Channel is the channel actually used, empty if none was selected.
	Channel Channel `json:"channel,omitempty"`
	// Recipients holds the per-recipient delivery results in request order.
	Recipients []RecipientStatus `json:"recipients,omitempty"`
	// ProviderID is the provider-assigned message or call identifier,
	// when the provider returned one.
	ProviderID string `json:"provider_id,omitempty"`
	// Success is true only if every targeted recipient was delivered,
	// or, for voice, the call was accepted.
	Success bool `json:"success"`
	// ErrorKind classifies the failure, empty on success.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	// Error is a short normalized failure description, empty on success.
	Error string `json:"error,omitempty"`
}

// Targets returns the recipient addresses covered by the outcome.
func (o Outcome) Targets() []string {
	targets := make([]string, len(o.Recipients))
	for i, r := range o.Recipients {
		targets[i] = r.To
	}
	return targets
}

// DeliveryReceipt is the provider response for a single SMS send.
type DeliveryReceipt struct {
	// MessageID is the provider-assigned identifier, may be empty.
	MessageID string
	// Detail is a short normalized provider status line.
	Detail string
}

// BulkReceipt is the provider response for a bulk SMS send.
type BulkReceipt struct {
	// MessageID is the provider-assigned identifier for the batch.
	MessageID string
	// Recipients reports per-recipient provider statuses in the same
	// order as the submitted recipient list. When the provider returns
	// only an aggregate status the adapter applies it uniformly.
	Recipients []RecipientStatus
	Detail     string
}

// CallReceipt is the provider response for an accepted voice call.
type CallReceipt struct {
	// CallID is the provider-assigned call identifier.
	CallID string
	// Status is the provider call state, e.g. "started".
	Status string
}

// BalanceSnapshot is a point-in-time read of the SMS gateway account
// balance. It is advisory only and never gates sending.
type BalanceSnapshot struct {
	Balance string `json:"balance"`
	Detail  string `json:"detail,omitempty"`
}
