package queue

import (
	"fmt"
	"time"

	"github.com/chroniclehq/chronicle/backend/internal/util"
	"github.com/chroniclehq/chronicle/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// IngestQueue carries one message per source document to ingest.
const IngestQueue = "ingest_queue"

// retryTTLMs is how long a failed message parks in the retry queue before
// dead-letter routing sends it back to the work queue.
const retryTTLMs = 10000

// Init connects to RabbitMQ using the standard environment variables.
func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares each work queue together with its retry queue and dead
// letter queue. Failed messages cycle work -> retry -> work until the retry
// budget runs out, then land in the DLQ for inspection.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			logger.Fatal("QueueDeclare failed", "queue", name, "err", err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			logger.Fatal("QueueDeclare failed", "queue", dlqName, "err", err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryTTLMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			logger.Fatal("QueueDeclare failed", "queue", retryName, "err", err)
		}
	}

	return nil
}

// maxRetries is how often a failing message cycles through the retry queue
// before it lands in the DLQ.
const maxRetries = 10

// PublishFIFO publishes one persistent message to a queue on the default
// exchange. Queues are declared once in SetupQueues; publishing never
// redeclares, since redeclaring the retry queues with different args would
// fail the channel.
func PublishFIFO(ch *amqp091.Channel, queueName string, data []byte, headers amqp091.Table) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		queueName,
		false,
		false,
		publishing,
	)
}

// failureRoute decides where a failed delivery goes next. It returns the
// target queue and the headers to publish with, incrementing the retry
// counter until the budget is spent, after which the DLQ takes the message
// with its headers intact.
func failureRoute(queueName string, headers amqp091.Table) (string, amqp091.Table) {
	retries := 0
	if val, ok := headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	if retries >= maxRetries {
		return queueName + "_dlq", headers
	}

	if headers == nil {
		headers = amqp091.Table{}
	}
	headers["x-retries"] = int32(retries + 1)
	return queueName + "_retry", headers
}

// HandleFailure routes a failed delivery: back through the retry queue with
// an incremented retry counter, or into the DLQ once the retry budget is
// spent. The original delivery is acked only after the re-publish succeeds.
func HandleFailure(ch *amqp091.Channel, msg amqp091.Delivery, queueName string) {
	target, headers := failureRoute(queueName, msg.Headers)
	logger.Info("Re-routing failed message", "queue", queueName, "target", target)

	if err := PublishFIFO(ch, target, msg.Body, headers); err != nil {
		logger.Error("Failed to re-publish message", "target", target, "err", err)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
