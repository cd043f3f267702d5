package adapter

import (
	"context"
	"time"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const pgUniqueViolation = "23505"

const conversationColumns = `id, mentor_id, mentee_id, created_at, last_activity_at, mentor_in, mentee_in, status, flagged, closed_at, flagged_at`

const messageColumns = `id, kind, conversation_id, sender_id, text, created_at, read`

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

var _ repository.ChatRepository = (*PgChatRepository)(nil)

var errNilPool = errors.New("PgChatRepository: nil pool")

func (r *PgChatRepository) ready() error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	return nil
}

func (r *PgChatRepository) CreateConversation(ctx context.Context, c chat.Conversation) (chat.Conversation, error) {
	if err := r.ready(); err != nil {
		return chat.Conversation{}, err
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO chat.conversation (mentor_id, mentee_id, created_at, last_activity_at, mentor_in, mentee_in, status, flagged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, c.MentorID, c.MenteeID, c.CreatedAt, c.LastActivityAt, c.MentorIn, c.MenteeIn, int16(c.Status), c.Flagged).Scan(&c.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return chat.Conversation{}, chat.ErrConflict
		}
		return chat.Conversation{}, errors.Wrap(err, "pg: insert conversation")
	}
	return c, nil
}

func (r *PgChatRepository) FindConversationByID(ctx context.Context, id int64) (chat.Conversation, error) {
	if err := r.ready(); err != nil {
		return chat.Conversation{}, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM chat.conversation WHERE id = $1`, id)
	return scanConversation(row)
}

func (r *PgChatRepository) FindConversationByPair(ctx context.Context, a, b int64) (chat.Conversation, error) {
	if err := r.ready(); err != nil {
		return chat.Conversation{}, err
	}
	low, high := chat.PairKey(a, b)
	row := r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM chat.conversation
		WHERE LEAST(mentor_id, mentee_id) = $1 AND GREATEST(mentor_id, mentee_id) = $2
	`, low, high)
	return scanConversation(row)
}

const (
	listByMentorSQL = `SELECT ` + conversationColumns + ` FROM chat.conversation WHERE mentor_id = $1 ORDER BY last_activity_at DESC, id DESC LIMIT $2 OFFSET $3`
	listByMenteeSQL = `SELECT ` + conversationColumns + ` FROM chat.conversation WHERE mentee_id = $1 ORDER BY last_activity_at DESC, id DESC LIMIT $2 OFFSET $3`
)

func (r *PgChatRepository) ListConversationsByParty(ctx context.Context, userID int64, side chat.Side, limit int, offset int) ([]chat.Conversation, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	query := listByMenteeSQL
	if side == chat.SideMentor {
		query = listByMentorSQL
	}
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "pg: list conversations")
	}
	defer rows.Close()

	var convs []chat.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return convs, nil
}

const (
	setMentorInSQL = `UPDATE chat.conversation SET mentor_in = $2 WHERE id = $1 AND mentor_in <> $2`
	setMenteeInSQL = `UPDATE chat.conversation SET mentee_in = $2 WHERE id = $1 AND mentee_in <> $2`
)

func (r *PgChatRepository) SetPresence(ctx context.Context, conversationID int64, side chat.Side, present bool) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	query := setMenteeInSQL
	if side == chat.SideMentor {
		query = setMentorInSQL
	}
	ct, err := r.pool.Exec(ctx, query, conversationID, present)
	if err != nil {
		return false, errors.Wrap(err, "pg: set presence")
	}
	return r.changedOrMissing(ctx, ct, conversationID)
}

func (r *PgChatRepository) CloseConversation(ctx context.Context, conversationID int64, at time.Time) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.conversation
		SET status = $2, closed_at = $3
		WHERE id = $1 AND status <> $2
	`, conversationID, int16(chat.StatusClosed), at.UTC())
	if err != nil {
		return false, errors.Wrap(err, "pg: close conversation")
	}
	return r.changedOrMissing(ctx, ct, conversationID)
}

func (r *PgChatRepository) FlagConversation(ctx context.Context, conversationID int64, at time.Time) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.conversation
		SET flagged = true, flagged_at = $2
		WHERE id = $1 AND NOT flagged
	`, conversationID, at.UTC())
	if err != nil {
		return false, errors.Wrap(err, "pg: flag conversation")
	}
	return r.changedOrMissing(ctx, ct, conversationID)
}

// changedOrMissing tells an unchanged compare-and-set apart from a missing row.
func (r *PgChatRepository) changedOrMissing(ctx context.Context, ct pgconn.CommandTag, conversationID int64) (bool, error) {
	if ct.RowsAffected() > 0 {
		return true, nil
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat.conversation WHERE id = $1)`, conversationID).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "pg: conversation exists")
	}
	if !exists {
		return false, chat.ErrConversationNotFound
	}
	return false, nil
}

// SaveMessage locks the conversation row before taking the message id, so ids within a
// conversation follow commit order.
func (r *PgChatRepository) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if err := r.ready(); err != nil {
		return chat.Message{}, err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "pg: begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE chat.conversation
		SET last_activity_at = GREATEST(last_activity_at, $2)
		WHERE id = $1
	`, m.ConversationID, m.CreatedAt)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "pg: touch conversation")
	}
	if ct.RowsAffected() == 0 {
		return chat.Message{}, chat.ErrConversationNotFound
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO chat.message (conversation_id, sender_id, kind, text, created_at, read)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, m.ConversationID, m.SenderID, int16(m.Kind), m.Text, m.CreatedAt, m.Read).Scan(&m.ID)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "pg: insert message")
	}

	if err := tx.Commit(ctx); err != nil {
		return chat.Message{}, errors.Wrap(err, "pg: commit message")
	}
	return m, nil
}

func (r *PgChatRepository) GetMessagesByConversation(ctx context.Context, conversationID int64, limit int, offset int) ([]chat.Message, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM chat.message
		WHERE conversation_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "pg: query messages")
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return msgs, nil
}

func (r *PgChatRepository) LastMessages(ctx context.Context, conversationIDs []int64) (map[int64]chat.Message, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	res := make(map[int64]chat.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return res, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (conversation_id) `+messageColumns+`
		FROM chat.message
		WHERE conversation_id = ANY($1)
		ORDER BY conversation_id, id DESC
	`, conversationIDs)
	if err != nil {
		return nil, errors.Wrap(err, "pg: last messages")
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		res[msg.ConversationID] = msg
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return res, nil
}

func (r *PgChatRepository) MarkAllRead(ctx context.Context, conversationID int64, readerID int64) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.message
		SET read = true
		WHERE conversation_id = $1 AND sender_id <> $2 AND kind = $3 AND NOT read
	`, conversationID, readerID, int16(chat.KindText))
	if err != nil {
		return 0, errors.Wrap(err, "pg: mark all read")
	}
	return ct.RowsAffected(), nil
}

func (r *PgChatRepository) CountUnread(ctx context.Context, conversationID int64, readerID int64) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM chat.message
		WHERE conversation_id = $1 AND sender_id <> $2 AND kind = $3 AND NOT read
	`, conversationID, readerID, int16(chat.KindText)).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "pg: count unread")
	}
	return n, nil
}

func (r *PgChatRepository) CountUnreadBatch(ctx context.Context, readerID int64, conversationIDs []int64) (map[int64]int64, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	res := make(map[int64]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return res, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT m.conversation_id, count(*)
		FROM chat.message m
		JOIN chat.conversation c ON c.id = m.conversation_id
		WHERE m.conversation_id = ANY($1)
		  AND (c.mentor_id = $2 OR c.mentee_id = $2)
		  AND m.sender_id <> $2 AND m.kind = $3 AND NOT m.read
		GROUP BY m.conversation_id
	`, conversationIDs, readerID, int16(chat.KindText))
	if err != nil {
		return nil, errors.Wrap(err, "pg: count unread batch")
	}
	defer rows.Close()

	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		res[id] = n
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return res, nil
}

func scanConversation(row pgx.Row) (chat.Conversation, error) {
	var (
		c      chat.Conversation
		status int16
	)
	err := row.Scan(&c.ID, &c.MentorID, &c.MenteeID, &c.CreatedAt, &c.LastActivityAt,
		&c.MentorIn, &c.MenteeIn, &status, &c.Flagged, &c.ClosedAt, &c.FlaggedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Conversation{}, chat.ErrConversationNotFound
	}
	if err != nil {
		return chat.Conversation{}, errors.Wrap(err, "pg: scan conversation")
	}
	c.Status = chat.Status(status)
	return c, nil
}

func scanMessage(row pgx.Row) (chat.Message, error) {
	var (
		m    chat.Message
		kind int16
		text *string
	)
	if err := row.Scan(&m.ID, &kind, &m.ConversationID, &m.SenderID, &text, &m.CreatedAt, &m.Read); err != nil {
		return chat.Message{}, errors.Wrap(err, "pg: scan message")
	}
	m.Kind = chat.Kind(kind)
	m.Text = text
	return m, nil
}
