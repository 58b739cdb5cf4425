package mailservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sushihentaime/quillpost/internal/common"
	"golang.org/x/exp/rand"
)

const (
	maxRetries = 5
	baseDelay  = 500 * time.Millisecond
)

func NewMailService(mb common.MessageConsumer, host, username, password, sender string, port int, logger *slog.Logger) *MailService {
	ctx, cancel := context.WithCancel(context.Background())
	return &MailService{
		mb:     mb,
		m:      NewMailer(host, port, username, password, sender, NewTemplate()),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SendWelcomeEmail mails every newly registered user.
func (s *MailService) SendWelcomeEmail() error {
	return s.consume(common.UserCreatedKey, common.UserExchange, common.UserCreatedQueue, decodeUserCreated)
}

// SendCommentNotification mails the post author whenever a reader comments on their post.
func (s *MailService) SendCommentNotification() error {
	return s.consume(common.CommentCreatedKey, common.PostExchange, common.CommentCreatedQueue, decodeCommentCreated)
}

func decodeUserCreated(body []byte) (*envelope, error) {
	var msg common.UserCreatedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	if msg.Email == "" {
		return nil, fmt.Errorf("user.created message without email")
	}

	return &envelope{recipient: msg.Email, data: msg, template: welcomeTemplate}, nil
}

func decodeCommentCreated(body []byte) (*envelope, error) {
	var msg common.CommentCreatedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	if msg.AuthorEmail == "" {
		return nil, fmt.Errorf("comment.created message without author email")
	}

	return &envelope{recipient: msg.AuthorEmail, data: msg, template: commentNotificationTemplate}, nil
}

func (s *MailService) consume(key common.BindingKey, exchange common.Exchange, queue common.Queue, decode func([]byte) (*envelope, error)) error {
	msgs, err := s.mb.Consume(key, exchange, queue)
	if err != nil {
		s.logger.Error("could not consume message", slog.String("error", err.Error()), slog.String("key", string(key)))
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				s.deliver(msg, decode)

			case <-s.ctx.Done():
				s.logger.Info("stopping mail consumer due to context cancellation", slog.String("key", string(key)))
				return
			}
		}
	}()

	return nil
}

// deliver sends one message using exponential backoff with jitter. The delivery is acked after a
// success or after the last attempt so a poisoned message never blocks the queue.
func (s *MailService) deliver(msg amqp.Delivery, decode func([]byte) (*envelope, error)) {
	env, err := decode(msg.Body)
	if err != nil {
		s.logger.Error("could not unmarshal message", slog.String("error", err.Error()))
		ack(msg)
		return
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		err = s.m.send(env.recipient, env.data, env.template)
		if err == nil {
			s.logger.Info("email sent", slog.String("email", env.recipient), slog.String("template", env.template))
			ack(msg)
			return
		}

		delay := backoff(attempt)
		s.logger.Info("delaying email", slog.String("email", env.recipient), slog.Int("attempt", attempt), slog.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return
		}
	}

	s.logger.Error("could not send email", slog.String("email", env.recipient), slog.String("error", err.Error()))
	ack(msg)
}

func ack(msg amqp.Delivery) {
	if msg.Acknowledger != nil {
		_ = msg.Ack(false)
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(rand.Int63n(int64(baseDelay) << uint(attempt)))
}

// Close stops the consumers and waits for in-flight deliveries to return.
func (s *MailService) Close() {
	s.cancel()
	s.wg.Wait()
}
