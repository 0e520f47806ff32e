package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// OrderHandler materializes one order message: durable rows plus seat
// assignment. A returned error rejects the message without requeueing so a
// poison payload cannot wedge the queue.
type OrderHandler func(ctx context.Context, msg OrderCreatedMessage) error

// StartOrderConsumer connects to RabbitMQ, declares the order.created queue
// (durable), and starts consuming messages, handing each to the handler.
// The function runs a reconnect loop with exponential backoff and returns
// only when ctx is cancelled; processing errors are logged and the offending
// message rejected so the server continues operating.
func StartOrderConsumer(ctx context.Context, handler OrderHandler) error {
    url := BrokerURL()

    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("order-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            select {
            case <-ctx.Done():
                return ctx.Err()
            case <-time.After(backoff):
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        if err := consumeLoop(ctx, conn, handler); err != nil {
            log.Printf("order-consumer: consume loop ended: %v; reconnecting", err)
            _ = conn.Close()
            select {
            case <-ctx.Done():
                return ctx.Err()
            case <-time.After(2 * time.Second):
            }
            continue
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, handler OrderHandler) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("order-consumer: set QoS failed: %v", err)
    }

    _, err = ch.QueueDeclare(OrderQueueName, true, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(OrderQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := handleDelivery(ctx, d.Body, handler); err != nil {
                log.Printf("order-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleDelivery(ctx context.Context, body []byte, handler OrderHandler) error {
    var msg OrderCreatedMessage
    if err := json.Unmarshal(body, &msg); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    return handler(ctx, msg)
}
