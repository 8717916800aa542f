package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/models"
)

const (
	publishTimeout  = 5 * time.Second
	publishAttempts = 3
	publishBackoff  = 200 * time.Millisecond
)

// AMQPNotifier publishes status transitions to a topic exchange so
// external consumers can react to analysis outcomes. Routing keys are
// resume.<id>, letting consumers bind to one resume or all of them.
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      *zap.SugaredLogger
}

func NewAMQPNotifier(url, exchange string, log *zap.SugaredLogger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to amqp broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	return &AMQPNotifier{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

// NotifyStatus publishes the event as JSON. Failed publishes are
// retried with backoff, then logged and dropped; a sick broker must
// never stall the pipeline.
func (n *AMQPNotifier) NotifyStatus(event *models.StatusEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		n.log.Errorw("failed to encode status event", "resume", event.ResumeID, "error", err)
		return
	}
	routingKey := "resume." + event.ResumeID

	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(publishBackoff << (attempt - 1))
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		lastErr = n.channel.PublishWithContext(ctx,
			n.exchange,
			routingKey,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Timestamp:   event.OccurredAt,
				Body:        body,
			},
		)
		cancel()
		if lastErr == nil {
			return
		}
	}

	n.log.Errorw("dropping status event after failed publishes",
		"resume", event.ResumeID,
		"attempts", publishAttempts,
		"error", lastErr)
}

func (n *AMQPNotifier) Close() error {
	var result *multierror.Error
	if err := n.channel.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := n.conn.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

var _ Notifier = (*AMQPNotifier)(nil)
