package controller

import (
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
	"github.com/MeKo-Tech/qrkit/internal/scan"
)

// EventType names the state slot that changed.
type EventType string

const (
	EventScan      EventType = "scan"
	EventGenerated EventType = "generated"
	EventText      EventType = "text"
)

// Event is published with every state change while the state lock is held.
type Event struct {
	Type      EventType
	Trigger   string
	Status    scan.Outcome
	Generated *qrgen.Generated
	Text      string
}

const subscriberBuffer = 16

// Subscribe returns a channel of state changes and a function that
// unsubscribes and closes it. Slow subscribers miss events instead of
// stalling triggers.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var done bool
	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if done {
			return
		}
		done = true
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Controller) publish(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.logger.Debug("Dropping event for slow subscriber", "type", string(ev.Type))
		}
	}
}
