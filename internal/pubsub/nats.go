package pubsub

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// NATSUpstream carries events over a core NATS subject.
type NATSUpstream struct {
	fanout
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewNATSUpstream connects to natsURL and subscribes to subject
func NewNATSUpstream(natsURL, subject string) (*NATSUpstream, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("speedfriending"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[BUS] nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("[BUS] nats reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	u := &NATSUpstream{nc: nc, subject: subject}
	u.sub, err = nc.Subscribe(subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("[BUS] invalid nats payload: %v", err)
			return
		}
		u.deliver(event)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	log.Printf("[BUS] nats upstream on subject %s", subject)
	return u, nil
}

// Publish sends event on the subject
func (u *NATSUpstream) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[BUS] failed to marshal event: %v", err)
		return
	}
	if err := u.nc.Publish(u.subject, data); err != nil {
		log.Printf("[BUS] failed to publish to NATS: %v", err)
	}
}

func (u *NATSUpstream) Subscribe() chan Event      { return u.subscribe() }
func (u *NATSUpstream) Unsubscribe(ch chan Event) { u.unsubscribe(ch) }

// Close drains the subscription and closes the connection
func (u *NATSUpstream) Close() error {
	if u.sub != nil {
		_ = u.sub.Unsubscribe()
	}
	u.nc.Close()
	u.closeAll()
	return nil
}
