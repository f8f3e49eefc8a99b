package dispatch

import (
	"github.com/pkg/errors"
	"github.com/usafe/sosd/alert"
)

// ErrNoRecipients reports that channel selection ran with zero
// recipients. Validation rejects such requests first, so observing this
// error means a bug in the dispatcher, not bad input.
var ErrNoRecipients = errors.New("channel selection requires at least one recipient")

// ChannelPlan is the result of channel selection: the channel to use and
// the recipients it will target.
type ChannelPlan struct {
	Channel    alert.Channel
	Recipients []string
}

// selectChannel picks the delivery path for a set of recipients.
// Voice always targets the first recipient, a single recipient goes
// through the single SMS path, several recipients share one bulk call.
// Selection is pure: the same input always yields the same plan.
func selectChannel(recipients []string, hint alert.Channel) (ChannelPlan, error) {
	if len(recipients) == 0 {
		return ChannelPlan{}, ErrNoRecipients
	}
	switch hint {
	case alert.ChannelCall:
		return ChannelPlan{
			Channel:    alert.ChannelCall,
			Recipients: recipients[:1],
		}, nil
	case alert.ChannelBulkSMS:
		return ChannelPlan{
			Channel:    alert.ChannelBulkSMS,
			Recipients: recipients,
		}, nil
	}
	if len(recipients) == 1 {
		return ChannelPlan{
			Channel:    alert.ChannelSMS,
			Recipients: recipients,
		}, nil
	}
	return ChannelPlan{
		Channel:    alert.ChannelBulkSMS,
		Recipients: recipients,
	}, nil
}
