// Package notify publishes analysis status transitions to interested
// parties: in-process subscribers feeding the WebSocket layer, and an
// AMQP exchange when a broker is configured.
package notify

import (
	"github.com/hashicorp/go-multierror"

	"github.com/cvlens/cvlens/internal/models"
)

// Notifier receives every committed status transition.
type Notifier interface {
	NotifyStatus(event *models.StatusEvent)
	Close() error
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) NotifyStatus(*models.StatusEvent) {}
func (Nop) Close() error                     { return nil }

// Multi fans one notification out to several notifiers.
type Multi []Notifier

func NewMulti(notifiers ...Notifier) Multi {
	return Multi(notifiers)
}

func (m Multi) NotifyStatus(event *models.StatusEvent) {
	for _, n := range m {
		n.NotifyStatus(event)
	}
}

// Close closes every member and reports all failures together.
func (m Multi) Close() error {
	var result *multierror.Error
	for _, n := range m {
		if err := n.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

var (
	_ Notifier = Nop{}
	_ Notifier = Multi{}
)
