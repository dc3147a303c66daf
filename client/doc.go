// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package client is a Go client for the retroboard HTTP and WebSocket API.

# Identity

A Client acts as one user. CreateUser issues a fresh identity and stores it
on the client; an existing identity can be set through UserID and Token.

	c, _ := client.New("http://localhost:3318")
	c.CreateUser(ctx)
	boardID, _ := c.CreateBoard(ctx, models.CreateBoardRequest{Name: "Retro"})

# Admission

Admit drives the join flow to completion. Invite-only boards leave the user
awaiting confirmation; Admit then waits on the join request channel until
a moderator accepts or rejects. Refusals come back as *AdmissionError with
the admission state (passphrase_required, incorrect_passphrase, rejected,
banned, too_many_join_requests).

# Sessions

Connect opens the board socket and returns a Session. Its reconciler
replica is advanced by every board event, and Send applies a command and
waits for the matching RESULT:

	s, _ := c.Connect(ctx, boardID, "")
	defer s.Close()
	err := s.Send(ctx, models.CmdCreateNote, models.CreateNoteArgs{Column: col, Text: "ship it"})

Rejections are *APIError values that match the engine sentinels, so
errors.Is(err, engine.ErrForbidden) works against a remote server. A
session that falls out of sequence ends with reconciler.ErrOutOfSync; open
a new one for a fresh INIT.
*/
package client
