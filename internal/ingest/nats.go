package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects for the ingest transports. Event subjects embed the game id
// so consumers can follow one game or the whole feed.
const (
	subjectEventsPrefix = "rewind.events."
	// SubjectEventsWildcard matches every game's event subject.
	SubjectEventsWildcard = subjectEventsPrefix + ">"
	// SubjectBios carries bio upserts.
	SubjectBios = "rewind.bios"
)

// SubjectEvents returns the event subject for one game.
func SubjectEvents(gameID string) string {
	return subjectEventsPrefix + gameID
}

// Publisher emits JSON-encoded envelopes to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, envelope any) error
	Close() error
}

// NoopPublisher is a Publisher that does nothing, used when NATS is not
// configured.
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, subject string, envelope any) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}

// NATSPublisher publishes envelopes to NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, envelope any) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}
	return p.conn.Publish(subject, data)
}

// Flush blocks until the server has processed everything published so far.
func (p *NATSPublisher) Flush() error {
	return p.conn.Flush()
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// Subscriber receives raw envelope payloads from the bus.
type Subscriber interface {
	// Subscribe delivers payloads on the returned channel. Call the
	// returned cancel function to unsubscribe and close the channel.
	Subscribe(subject string) (<-chan []byte, func(), error)
	Close() error
}

// NATSSubscriber subscribes to envelopes from NATS subjects.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to NATS with automatic reconnection. Extra
// nats.Option values (e.g. disconnect handlers) can be appended.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe returns a channel receiving raw payloads for the subject, which
// may use NATS wildcards like "rewind.events.>". The channel is buffered;
// payloads arriving while it is full are dropped rather than blocking the
// NATS client, which is acceptable because appends are re-deliverable.
func (s *NATSSubscriber) Subscribe(subject string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 64)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- msg.Data:
		default:
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	// Flush ensures the subscription is registered on the server before
	// returning, so messages published on other connections are routed.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			mu.Unlock()
			// Drain remaining payloads so senders don't block, then close.
			for {
				select {
				case <-ch:
				default:
					close(ch)
					return
				}
			}
		})
	}

	return ch, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
