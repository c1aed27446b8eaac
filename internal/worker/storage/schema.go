package storage

// schema is applied by EnsureSchema; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id               TEXT PRIMARY KEY,
		username         TEXT NOT NULL DEFAULT '',
		email            TEXT NOT NULL DEFAULT '',
		avatar_color     TEXT NOT NULL DEFAULT '',
		profile_picture  TEXT NOT NULL DEFAULT '',
		facebook         TEXT NOT NULL DEFAULT '',
		instagram        TEXT NOT NULL DEFAULT '',
		twitter          TEXT NOT NULL DEFAULT '',
		youtube          TEXT NOT NULL DEFAULT '',
		quote            TEXT NOT NULL DEFAULT '',
		work             TEXT NOT NULL DEFAULT '',
		school           TEXT NOT NULL DEFAULT '',
		location         TEXT NOT NULL DEFAULT '',
		notify_messages  BOOLEAN NOT NULL DEFAULT TRUE,
		notify_reactions BOOLEAN NOT NULL DEFAULT TRUE,
		notify_comments  BOOLEAN NOT NULL DEFAULT TRUE,
		notify_follows   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		username      TEXT NOT NULL DEFAULT '',
		body          TEXT NOT NULL DEFAULT '',
		bg_color      TEXT NOT NULL DEFAULT '',
		privacy       TEXT NOT NULL DEFAULT '',
		feelings      TEXT NOT NULL DEFAULT '',
		image_id      TEXT NOT NULL DEFAULT '',
		image_version TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts (user_id)`,
	`CREATE TABLE IF NOT EXISTS followers (
		follower_id TEXT NOT NULL,
		followee_id TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (follower_id, followee_id)
	)`,
	`CREATE TABLE IF NOT EXISTS blocks (
		user_id         TEXT NOT NULL,
		blocked_user_id TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, blocked_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id                TEXT PRIMARY KEY,
		conversation_id   TEXT NOT NULL,
		sender_id         TEXT NOT NULL,
		receiver_id       TEXT NOT NULL,
		sender_username   TEXT NOT NULL DEFAULT '',
		receiver_username TEXT NOT NULL DEFAULT '',
		body              TEXT NOT NULL DEFAULT '',
		gif_url           TEXT NOT NULL DEFAULT '',
		is_read           BOOLEAN NOT NULL DEFAULT FALSE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation ON chat_messages (conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id                TEXT PRIMARY KEY,
		user_to           TEXT NOT NULL,
		user_from         TEXT NOT NULL DEFAULT '',
		message           TEXT NOT NULL DEFAULT '',
		notification_type TEXT NOT NULL DEFAULT '',
		entity_id         TEXT NOT NULL DEFAULT '',
		read              BOOLEAN NOT NULL DEFAULT FALSE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_to ON notifications (user_to)`,
	`CREATE TABLE IF NOT EXISTS images (
		id         TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		version    TEXT NOT NULL DEFAULT '',
		url        TEXT NOT NULL DEFAULT '',
		bg_image   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, id)
	)`,
}
