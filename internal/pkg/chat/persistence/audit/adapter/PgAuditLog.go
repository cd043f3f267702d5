package adapter

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/port"
)

// PgAuditLog appends audit entries to chat.audit_log.
type PgAuditLog struct {
	pool *pgxpool.Pool
}

func NewPgAuditLog(pool *pgxpool.Pool) *PgAuditLog {
	return &PgAuditLog{pool: pool}
}

var _ port.AuditLog = (*PgAuditLog)(nil)

type auditState struct {
	MentorID  int64  `json:"mentorId"`
	MenteeID  int64  `json:"menteeId"`
	Lifecycle string `json:"lifecycle"`
	Flagged   bool   `json:"flagged"`
	MentorIn  bool   `json:"mentorIn"`
	MenteeIn  bool   `json:"menteeIn"`
}

func stateOf(c chat.Conversation) auditState {
	return auditState{
		MentorID:  c.MentorID,
		MenteeID:  c.MenteeID,
		Lifecycle: string(c.Lifecycle()),
		Flagged:   c.Flagged,
		MentorIn:  c.MentorIn,
		MenteeIn:  c.MenteeIn,
	}
}

func (a *PgAuditLog) Record(ctx context.Context, e port.AuditEntry) error {
	after, err := json.Marshal(stateOf(e.After))
	if err != nil {
		return errors.Wrap(err, "audit: encode after")
	}
	var before []byte
	if e.Before != nil {
		if before, err = json.Marshal(stateOf(*e.Before)); err != nil {
			return errors.Wrap(err, "audit: encode before")
		}
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO chat.audit_log (conversation_id, actor_id, event, before_state, after_state, at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.After.ID, e.ActorID, e.Event, before, after, e.At.UTC())
	if err != nil {
		return errors.Wrap(err, "pg: insert audit entry")
	}
	return nil
}
