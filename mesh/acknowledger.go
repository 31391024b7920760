// Package mesh implements the collaborator edge a chain talks to when
// operating above None transaction scope: durability acknowledgement for
// Full scope, and distributed anti-replay dedup shared across nodes.
package mesh

import (
	"context"
	"fmt"

	"github.com/streadway/amqp"
)

// Acknowledger is the mesh collaborator's durability contract: at
// TransactionScope Full, a commit blocks on Acknowledge returning before the
// caller is told the commit succeeded.
type Acknowledger interface {
	// Acknowledge confirms durability of one committed event, identified by
	// its header hash, with at least one remote collaborator.
	Acknowledge(ctx context.Context, headerHash [32]byte) error
	Close() error
}

// NopAcknowledger is the default collaborator: every commit is considered
// acknowledged the instant the local log is flushed, matching a chain
// running without a configured mesh peer.
type NopAcknowledger struct{}

func (NopAcknowledger) Acknowledge(context.Context, [32]byte) error { return nil }
func (NopAcknowledger) Close() error                                { return nil }

// amqpChannel is the subset of *amqp.Channel an AMQPAcknowledger needs,
// narrowed for testability the way this codebase's queue package narrows
// its AMQP surface.
type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	Close() error
}

// AMQPAcknowledger publishes each committed event's header hash to a
// confirm-mode exchange and waits for the broker's publisher confirm before
// treating the event as acknowledged.
type AMQPAcknowledger struct {
	channel  amqpChannel
	exchange string
	confirms chan amqp.Confirmation
}

// NewAMQPAcknowledger puts ch into confirm mode and binds it to exchange.
func NewAMQPAcknowledger(ch *amqp.Channel, exchange string) (*AMQPAcknowledger, error) {
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("mesh: enable publisher confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	return &AMQPAcknowledger{channel: ch, exchange: exchange, confirms: confirms}, nil
}

func (a *AMQPAcknowledger) Acknowledge(ctx context.Context, headerHash [32]byte) error {
	err := a.channel.Publish(a.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/octet-stream",
		Body:        headerHash[:],
	})
	if err != nil {
		return fmt.Errorf("mesh: publish commit ack: %w", err)
	}
	select {
	case confirm := <-a.confirms:
		if !confirm.Ack {
			return fmt.Errorf("mesh: broker nacked commit ack")
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mesh: wait for publisher confirm: %w", ctx.Err())
	}
}

func (a *AMQPAcknowledger) Close() error { return a.channel.Close() }
