package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent; Migrate can run on every deploy.
const schema = `
CREATE SCHEMA IF NOT EXISTS chat;

CREATE TABLE IF NOT EXISTS chat.conversation (
	id               BIGSERIAL PRIMARY KEY,
	mentor_id        BIGINT      NOT NULL,
	mentee_id        BIGINT      NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_activity_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	mentor_in        BOOLEAN     NOT NULL DEFAULT false,
	mentee_in        BOOLEAN     NOT NULL DEFAULT false,
	status           SMALLINT    NOT NULL DEFAULT 0,
	flagged          BOOLEAN     NOT NULL DEFAULT false,
	closed_at        TIMESTAMPTZ,
	flagged_at       TIMESTAMPTZ,
	CHECK (mentor_id <> mentee_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS conversation_pair_key
	ON chat.conversation (LEAST(mentor_id, mentee_id), GREATEST(mentor_id, mentee_id));
CREATE INDEX IF NOT EXISTS conversation_mentor_activity
	ON chat.conversation (mentor_id, last_activity_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS conversation_mentee_activity
	ON chat.conversation (mentee_id, last_activity_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS chat.message (
	id              BIGSERIAL PRIMARY KEY,
	conversation_id BIGINT      NOT NULL REFERENCES chat.conversation (id),
	sender_id       BIGINT      NOT NULL,
	kind            SMALLINT    NOT NULL DEFAULT 0,
	text            TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	read            BOOLEAN     NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS message_conversation_id
	ON chat.message (conversation_id, id DESC);
CREATE INDEX IF NOT EXISTS message_unread
	ON chat.message (conversation_id, sender_id) WHERE NOT read;

CREATE TABLE IF NOT EXISTS chat.audit_log (
	id              BIGSERIAL PRIMARY KEY,
	conversation_id BIGINT      NOT NULL,
	actor_id        BIGINT      NOT NULL,
	event           TEXT        NOT NULL,
	before_state    JSONB,
	after_state     JSONB       NOT NULL,
	at              TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_log_conversation
	ON chat.audit_log (conversation_id, at);
`

// Migrate creates the chat schema when missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
