package common

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// consumerPrefetch bounds the unacked deliveries a consumer holds while mail is retried.
const consumerPrefetch = 10

type Exchange string

type Queue string

type BindingKey string

type MessageProducer interface {
	Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error
}

type MessageConsumer interface {
	Consume(key BindingKey, exchange Exchange, queue Queue) (<-chan amqp.Delivery, error)
}

const (
	UserExchange     Exchange   = "user_exchange"
	UserCreatedQueue Queue      = "user_created_queue"
	UserCreatedKey   BindingKey = "user.created"

	PostExchange        Exchange   = "post_exchange"
	CommentCreatedQueue Queue      = "comment_created_queue"
	CommentCreatedKey   BindingKey = "comment.created"
)

// UserCreatedMessage is the body of a user.created event.
type UserCreatedMessage struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CommentCreatedMessage is the body of a comment.created event. AuthorEmail is the post author's
// address, the recipient of the notification.
type CommentCreatedMessage struct {
	PostID      int    `json:"post_id"`
	PostTitle   string `json:"post_title"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	WriterName  string `json:"writer_name"`
	Content     string `json:"content"`
}

type MessageBroker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewMessageBroker(URI string) (*MessageBroker, error) {
	conn, ch, err := connectAMQP(URI)
	if err != nil {
		return nil, err
	}

	return &MessageBroker{
		conn: conn,
		ch:   ch,
	}, nil
}

func connectAMQP(URI string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(URI)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not set prefetch: %w", err)
	}

	return conn, ch, nil
}

// Close closes the channel and then the connection. The connection is closed even when closing
// the channel fails.
func (mb *MessageBroker) Close() error {
	chErr := mb.ch.Close()
	connErr := mb.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}

func (mb *MessageBroker) declare(exchange Exchange, queue Queue, key BindingKey) error {
	err := mb.ch.ExchangeDeclare(string(exchange), "direct", true, false, false, false, nil)
	if err != nil {
		return err
	}

	_, err = mb.ch.QueueDeclare(string(queue), true, false, false, false, nil)
	if err != nil {
		return err
	}

	return mb.ch.QueueBind(string(queue), string(key), string(exchange), false, nil)
}

func SetupUserExchange(mb *MessageBroker) error {
	return mb.declare(UserExchange, UserCreatedQueue, UserCreatedKey)
}

func SetupPostExchange(mb *MessageBroker) error {
	return mb.declare(PostExchange, CommentCreatedQueue, CommentCreatedKey)
}

func (mb *MessageBroker) Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error {
	err := mb.ch.PublishWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         msg,
	})
	if err != nil {
		return fmt.Errorf("could not publish message: %w", err)
	}

	return nil
}

func (mb *MessageBroker) Consume(key BindingKey, exchange Exchange, queue Queue) (<-chan amqp.Delivery, error) {
	msgs, err := mb.ch.Consume(string(queue), string(key), false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("could not consume message: %w", err)
	}

	return msgs, nil
}
