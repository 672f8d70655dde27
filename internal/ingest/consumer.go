package ingest

import (
	"context"
	"errors"
	"log"
)

// Consumer drains the ingest subjects into storage. Malformed envelopes are
// logged and dropped; append rejections are logged per event and never stop
// the drain, because the journal rejects only the offending event.
type Consumer struct {
	// Service is the ingest core the consumer feeds.
	Service *Service
	// Subscriber is the bus the consumer drains.
	Subscriber Subscriber
}

// Run consumes events and bios until the context is canceled or the
// subscriber closes its channels.
func (c *Consumer) Run(ctx context.Context) error {
	if c.Service == nil {
		return errors.New("ingest service is required")
	}
	if c.Subscriber == nil {
		return errors.New("subscriber is required")
	}

	events, cancelEvents, err := c.Subscriber.Subscribe(SubjectEventsWildcard)
	if err != nil {
		return err
	}
	defer cancelEvents()

	bios, cancelBios, err := c.Subscriber.Subscribe(SubjectBios)
	if err != nil {
		return err
	}
	defer cancelBios()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-events:
			if !ok {
				return nil
			}
			c.consumeEvent(ctx, data)
		case data, ok := <-bios:
			if !ok {
				return nil
			}
			c.consumeBio(ctx, data)
		}
	}
}

func (c *Consumer) consumeEvent(ctx context.Context, data []byte) {
	evt, err := DecodeEventEnvelope(data)
	if err != nil {
		log.Printf("drop malformed event envelope: %v", err)
		return
	}
	if _, err := c.Service.AppendEvent(ctx, evt); err != nil {
		log.Printf("append %s event for game %s: %v", evt.Type, evt.GameID, err)
	}
}

func (c *Consumer) consumeBio(ctx context.Context, data []byte) {
	bio, err := DecodeBioEnvelope(data)
	if err != nil {
		log.Printf("drop malformed bio envelope: %v", err)
		return
	}
	if err := c.Service.SaveBio(ctx, bio); err != nil {
		log.Printf("save bio for player %s: %v", bio.PlayerID, err)
	}
}
