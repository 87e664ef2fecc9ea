// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/corkboard/internal/model"
)

func TestBrokerPublishReachesAllSubscribers(t *testing.T) {
	b := NewBroker()

	ch1, unsub1 := b.Subscribe()
	ch2, unsub2 := b.Subscribe()
	defer unsub1()
	defer unsub2()

	ev := Event{Type: ChangeInsert, PinID: "p1", Pin: &model.Pin{ID: "p1"}}
	b.Publish(ev)

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, ChangeInsert, got.Type)
			assert.Equal(t, "p1", got.PinID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()

	ch, unsub := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	unsub()
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is harmless.
	unsub()
}

func TestBrokerSkipsFullSubscriber(t *testing.T) {
	b := NewBroker()

	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(Event{Type: ChangeDelete, PinID: "x"})
	}

	// The buffer holds its capacity; the overflow was dropped and
	// Publish never blocked.
	assert.Len(t, ch, subscriberBuffer)
}

func TestBrokerPublishWithoutSubscribers(t *testing.T) {
	b := NewBroker()
	b.Publish(Event{Type: ChangeUpdate, PinID: "p"})
	assert.Equal(t, 0, b.SubscriberCount())
}
