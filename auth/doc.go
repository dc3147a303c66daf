// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identity tokens and passphrase hashing.

# User Tokens

Users are anonymous: a user id is a random UUID and its token is an
HMAC-SHA256 of the id under a server salt:

	userID, token := auth.NewUser(salt)
	err := auth.ValidateUserToken(userID, token, salt)

The token is URL-safe base64 encoded without padding. Since it's
deterministic, validation needs no storage. Clients send both values in the
X-User-ID and X-User-Token headers.

# Board Passphrases

Passphrase-protected boards store a bcrypt hash only:

	hash, err := auth.HashPassphrase(passphrase, bcrypt.DefaultCost)
	ok := auth.CheckPassphrase(hash, attempt)

# ID Generation

Random hex IDs for request correlation:

	id, err := auth.GenerateID(8)  // 16 hex characters
*/
package auth
