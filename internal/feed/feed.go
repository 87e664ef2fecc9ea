// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package feed distributes pin change events to subscribers, both
// in-process (SSE handlers) and across instances via Redis pub/sub.
package feed

import (
	"sync"

	"github.com/olegiv/corkboard/internal/model"
)

// Change types carried by feed events.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// Event describes one change to the pin table. For inserts and updates
// Pin carries the full new row; for deletes only PinID is set. Origin
// identifies the instance that produced the event so cross-instance
// bridges can skip their own messages.
type Event struct {
	Type   string     `json:"type"`
	PinID  string     `json:"pin_id"`
	Pin    *model.Pin `json:"pin,omitempty"`
	Origin string     `json:"origin"`
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls this far behind starts losing events; SSE clients recover
// by reloading the board.
const subscriberBuffer = 16

// Broker fans events out to in-process subscribers.
type Broker struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The unsubscribe function closes the channel.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
}

// Publish delivers the event to every subscriber. Slow subscribers
// with a full buffer are skipped rather than blocking the publisher.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
