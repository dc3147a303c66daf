// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the board entities, the push-event vocabulary and the
command types exchanged with clients.

# Domain Types

  - Board: name, access policy, moderation flags, timer, shared note
  - Participant: a (user, board) membership with role and presence flags
  - Column: dense zero-based Index per board
  - Note: Position{Column, Stack, Rank}; an empty Stack marks a root
  - Vote, VotingSession, NoteTally
  - JoinRequest, Ban

# Events

Every message pushed to a client is an Event:

	{"type": "NOTES_UPDATED", "seq": 42, "data": [...]}

Seq is assigned by the board sequencer. *_UPDATED events carry full
replacement collections, *_DELETED events carry ids. DecodeEvent restores
the concrete payload type on the client side.

# Commands

Clients mutate a board by sending a Command:

	{"request_id": "r1", "type": "moveNote", "args": {"note": "...", "column": "...", "rank": 0}}

Over the socket the server answers with a RESULT event carrying the same
request_id.

# Constants

Access policies:

	AccessPublic       = "PUBLIC"
	AccessByPassphrase = "BY_PASSPHRASE"
	AccessByInvite     = "BY_INVITE"

Roles:

	RoleOwner       = "OWNER"
	RoleModerator   = "MODERATOR"
	RoleParticipant = "PARTICIPANT"
*/
package models
