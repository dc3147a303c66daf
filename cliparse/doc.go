// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: sqlite or PostgreSQL DSN (required unless DatabaseType is memory)
  - DatabaseType: sqlite, postgres or memory (default: sqlite)
  - UserTokenSalt: Secret for user token HMAC (required)
  - JoinRequestCeiling: Pending join requests per board (default: 50)
  - MaxVoteLimit: Highest vote limit a session may use (default: 99)
  - SubscriberBuffer: Events a socket may lag behind before it is dropped (default: 64)
  - RateLimit, RateBurst: Requests per second per client IP (default: off, burst 20)

# CLI Flags

	-p             Server port
	-d             Database URL
	-t             Database type
	-user-salt     User token salt
	-join-ceiling  Pending join request ceiling
	-rate-limit    Requests per second per client IP
	-config        TOML file with board limits
	-env           Environment file (default: .env)

# Environment Variables

Flags fall back to environment variables:

	PORT                 → -p
	DATABASE_URL         → -d
	DATABASE_TYPE        → -t
	USER_TOKEN_SALT      → -user-salt
	JOIN_REQUEST_CEILING → -join-ceiling
	RATE_LIMIT           → -rate-limit
	RETROBOARD_CONFIG    → -config

The environment file is loaded with godotenv before variables are read. It
never overrides variables that are already set. A missing file is ignored.

# Config File

Board limits can also come from a TOML file. Flags and environment
variables take precedence over it:

	join_request_ceiling = 20
	max_vote_limit = 10
	subscriber_buffer = 128
	rate_limit = 5.0
	rate_burst = 20
*/
package cliparse
