// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package sequencer serializes operations per board and fans the resulting
events out to connected clients.

# Overview

A Hub keeps one Sequencer per loaded board. Each Sequencer is an actor: a
single goroutine owns the board state and runs closures posted to its inbox
one at a time, so every operation on a board observes the effects of all
operations accepted before it.

# Apply Path

Every mutation goes through the same steps:

 1. Clone the live state
 2. Run the engine operation on the clone
 3. engine.Verify the result (a failure halts the board)
 4. Commit the dirty collections with the expected version
 5. Swap the clone in and broadcast its events

A rejected operation leaves the live state untouched and produces no events.
On a version conflict the sequencer reloads the board, resyncs subscribers
with INIT and replays the operation, up to Config.MaxRetries times.

# Subscriptions

Connect admits a user and opens a board channel. The first event is always
INIT carrying the board as that user may see it. Every later event has a
sequence number one higher than the previous one, so a client can detect a
gap and reconnect.

WatchRequest opens a channel for a user whose join request is pending. It
only carries REQUEST_UPDATED for that user and BOARD_DELETED.

A subscriber whose buffer fills up is dropped; its channel is closed and
it must reconnect. When a user's last board channel closes the participant
is marked disconnected. Banned users lose all their channels at once.

# Redaction

Events are redacted per recipient before delivery. Note authors are hidden
from participants unless the board shows authors, and voter ids of anonymous
sessions are hidden from everyone but the voter.

# Deletion

Hub.DeleteBoard marks the board gone before the cascade runs. Requests
already queued fail with engine.ErrBoardGone and every subscriber receives
BOARD_DELETED before its channel closes.
*/
package sequencer
