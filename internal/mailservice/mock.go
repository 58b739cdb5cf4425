package mailservice

import (
	"errors"
	"sync"

	"github.com/go-mail/mail/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
	"github.com/sushihentaime/quillpost/internal/common"
)

type MockTemplate struct {
	mock.Mock
}

func (m *MockTemplate) Render(name string, data any) (*Rendered, error) {
	args := m.Called(name, data)
	r, _ := args.Get(0).(*Rendered)
	return r, args.Error(1)
}

type MockDialer struct {
	mock.Mock
}

func (d *MockDialer) DialAndSend(m ...*mail.Message) error {
	args := d.Called(m)
	return args.Error(0)
}

type sentMail struct {
	recipient string
	template  string
	data      any
}

// MockMailer records every send. The first failures calls fail before it starts succeeding.
type MockMailer struct {
	mu       sync.Mutex
	sent     []sentMail
	attempts int
	failures int
}

func (m *MockMailer) send(recipient string, data any, templateFile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++
	if m.attempts <= m.failures {
		return errors.New("smtp unavailable")
	}

	m.sent = append(m.sent, sentMail{recipient: recipient, template: templateFile, data: data})
	return nil
}

func (m *MockMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

func (m *MockMailer) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

type MockMessageConsumer struct {
	mock.Mock
}

func (m *MockMessageConsumer) Consume(key common.BindingKey, exchange common.Exchange, queue common.Queue) (<-chan amqp.Delivery, error) {
	args := m.Called(key, exchange, queue)
	if ch, ok := args.Get(0).(chan amqp.Delivery); ok {
		return ch, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAcknowledger counts acks so tests can tell when a delivery is finished.
type MockAcknowledger struct {
	mu   sync.Mutex
	acks []uint64
}

func (a *MockAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *MockAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	return nil
}

func (a *MockAcknowledger) Reject(tag uint64, requeue bool) error {
	return nil
}

func (a *MockAcknowledger) Acked() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks)
}

type MockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *MockLogger) Info(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *MockLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *MockLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

func (l *MockLogger) Infos() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.infos...)
}
