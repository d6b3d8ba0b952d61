// Package notify publishes user-scoped events to the real-time channel.
// Publishing is fire-and-forget: delivery is never awaited and campaigns
// progress whether or not anyone is listening.
package notify

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// Event names published by the core.
const (
	EventDeviceQR           = "device.qr"
	EventDeviceReady        = "device.ready"
	EventDeviceDisconnected = "device.disconnected"
	EventCampaignProgress   = "campaign.progress"
	EventCampaignCompleted  = "campaign.completed"
	EventMessageFailed      = "message.failed"
)

type Notifier interface {
	Publish(userID, event string, payload any)
}

// Nop drops every event. Used in tests and when no broker is configured.
type Nop struct{}

func (Nop) Publish(userID, event string, payload any) {}

// Envelope is the wire format pushed onto the notification queue.
type Envelope struct {
	UserID  string    `json:"user_id"`
	Event   string    `json:"event"`
	Payload any       `json:"payload,omitempty"`
	Ts      time.Time `json:"ts"`
}

// AMQPNotifier publishes envelopes onto a durable RabbitMQ queue.
type AMQPNotifier struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewAMQPNotifier(url, queue string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPNotifier{conn: conn, ch: ch, queue: queue}, nil
}

func (n *AMQPNotifier) Publish(userID, event string, payload any) {
	body, err := json.Marshal(Envelope{
		UserID:  userID,
		Event:   event,
		Payload: payload,
		Ts:      time.Now(),
	})
	if err != nil {
		logrus.Warnf("failed to encode %s event: %v", event, err)
		return
	}

	err = n.ch.Publish(
		"",
		n.queue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		// Fire-and-forget: a dead broker must not stall sending.
		logrus.Warnf("failed to publish %s event for user %s: %v", event, userID, err)
	}
}

func (n *AMQPNotifier) Close() {
	n.ch.Close()
	n.conn.Close()
}

var _ Notifier = (*AMQPNotifier)(nil)
var _ Notifier = Nop{}
