// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sequencer

import (
	"sync"

	"github.com/danielhkuo/retroboard/models"
)

// Subscription is one live event channel. Board subscriptions receive
// every event; request watchers only receive updates to their own join
// request and BOARD_DELETED.
type Subscription struct {
	UserID string

	watcher bool
	events  chan models.Event
	seq     *Sequencer
	once    sync.Once
}

// Events yields events in sequence order. The channel is closed when the
// subscription ends: on Close, when the subscriber fell too far behind,
// when the user was banned, or after BOARD_DELETED.
func (sub *Subscription) Events() <-chan models.Event {
	return sub.events
}

// Close ends the subscription. Safe to call more than once.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		go sub.seq.enqueue(func() { sub.seq.remove(sub) })
	})
}

// deliver hands ev to the subscriber without blocking. It reports false
// when the buffer is full.
func (sub *Subscription) deliver(ev models.Event) bool {
	select {
	case sub.events <- ev:
		return true
	default:
		return false
	}
}

// wants reports whether a request watcher should see ev.
func (sub *Subscription) wants(ev models.Event) bool {
	if !sub.watcher {
		return true
	}
	switch ev.Type {
	case models.EventBoardDeleted:
		return true
	case models.EventRequestUpdated:
		req, ok := ev.Data.(models.JoinRequest)
		return ok && req.UserID == sub.UserID
	}
	return false
}
