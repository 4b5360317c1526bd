// Package notify hands outgoing mail to a broker. Delivery happens in a
// separate worker; nothing here waits for it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Mail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// LogMailer only logs. Used when no broker is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, m Mail) error {
	log.Printf("mail (not sent, no broker): to=%s subject=%q", m.To, m.Subject)
	return nil
}

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url string) (channel, func() error, error)

func dialAMQP(url string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

// AMQPMailer publishes persistent JSON messages to a durable queue. The
// connection is opened lazily and reopened after a failed publish.
type AMQPMailer struct {
	url   string
	queue string
	dial  dialFunc

	mu        sync.Mutex
	ch        channel
	closeConn func() error
}

func NewAMQPMailer(url, queue string) *AMQPMailer {
	return &AMQPMailer{url: url, queue: queue, dial: dialAMQP}
}

func (m *AMQPMailer) Send(ctx context.Context, mail Mail) error {
	body, err := json.Marshal(mail)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ch == nil {
		if err := m.connect(); err != nil {
			log.Printf("rabbitmq: connect failed: %v", err)
			return err
		}
	}

	err = m.ch.PublishWithContext(ctx, "", m.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		m.reset()
		return err
	}
	return nil
}

func (m *AMQPMailer) connect() error {
	ch, closeConn, err := m.dial(m.url)
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(m.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = closeConn()
		return fmt.Errorf("declare queue %s: %w", m.queue, err)
	}
	m.ch = ch
	m.closeConn = closeConn
	return nil
}

func (m *AMQPMailer) reset() {
	if m.ch != nil {
		_ = m.ch.Close()
	}
	if m.closeConn != nil {
		_ = m.closeConn()
	}
	m.ch = nil
	m.closeConn = nil
}

func (m *AMQPMailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

// Go sends m in the background and logs failures. Callers use it for mail
// that must never hold up a request.
func Go(mailer Mailer, m Mail) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mailer.Send(ctx, m); err != nil {
			log.Printf("mail to %s dropped: %v", m.To, err)
		}
	}()
}
