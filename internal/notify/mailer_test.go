package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPMailerPublishes(t *testing.T) {
	fake := &fakeChannel{}
	dials := 0
	m := NewAMQPMailer("amqp://test", "mail.outbound")
	m.dial = func(string) (channel, func() error, error) {
		dials++
		return fake, func() error { return nil }, nil
	}

	mail := Mail{To: "a@example.com", Subject: "hi", HTML: "<p>hi</p>"}
	if err := m.Send(context.Background(), mail); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := m.Send(context.Background(), mail); err != nil {
		t.Fatalf("send: %v", err)
	}

	if dials != 1 {
		t.Fatalf("expected one dial, got %d", dials)
	}
	if len(fake.declared) != 1 || fake.declared[0] != "mail.outbound" {
		t.Fatalf("expected queue declared once, got %v", fake.declared)
	}
	if len(fake.published) != 2 || fake.keys[0] != "mail.outbound" {
		t.Fatalf("expected two publishes to the queue")
	}
	if fake.published[0].DeliveryMode != amqp.Persistent {
		t.Fatalf("expected persistent delivery")
	}
	var got Mail
	if err := json.Unmarshal(fake.published[0].Body, &got); err != nil || got != mail {
		t.Fatalf("unexpected body: %s", fake.published[0].Body)
	}
}

func TestAMQPMailerReconnectsAfterFailure(t *testing.T) {
	broken := &fakeChannel{publishErr: errors.New("channel closed")}
	healthy := &fakeChannel{}
	channels := []*fakeChannel{broken, healthy}
	m := NewAMQPMailer("amqp://test", "mail.outbound")
	m.dial = func(string) (channel, func() error, error) {
		ch := channels[0]
		channels = channels[1:]
		return ch, func() error { return nil }, nil
	}

	if err := m.Send(context.Background(), Mail{To: "a@example.com"}); err == nil {
		t.Fatalf("expected publish error")
	}
	if !broken.closed {
		t.Fatalf("expected broken channel to be closed")
	}
	if err := m.Send(context.Background(), Mail{To: "a@example.com"}); err != nil {
		t.Fatalf("send after reconnect: %v", err)
	}
	if len(healthy.published) != 1 {
		t.Fatalf("expected publish on the new channel")
	}
}

func TestAMQPMailerDialError(t *testing.T) {
	m := NewAMQPMailer("amqp://test", "mail.outbound")
	m.dial = func(string) (channel, func() error, error) {
		return nil, nil, errors.New("refused")
	}
	if err := m.Send(context.Background(), Mail{To: "a@example.com"}); err == nil {
		t.Fatalf("expected dial error")
	}
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Mail
	err  error
	done chan struct{}
}

func (r *recordingMailer) Send(_ context.Context, m Mail) error {
	r.mu.Lock()
	r.sent = append(r.sent, m)
	r.mu.Unlock()
	close(r.done)
	return r.err
}

func TestGoSendsInBackground(t *testing.T) {
	r := &recordingMailer{done: make(chan struct{}), err: errors.New("ignored")}
	Go(r, Mail{To: "b@example.com"})

	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatalf("mail was never sent")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) != 1 || r.sent[0].To != "b@example.com" {
		t.Fatalf("unexpected sent mail: %v", r.sent)
	}
}

func TestLogMailer(t *testing.T) {
	if err := (LogMailer{}).Send(context.Background(), Mail{To: "c@example.com"}); err != nil {
		t.Fatalf("log mailer: %v", err)
	}
}
