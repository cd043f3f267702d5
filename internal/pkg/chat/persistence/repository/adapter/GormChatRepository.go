package adapter

import (
	"context"
	"strings"
	"time"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	repository "go-mentorchat/internal/pkg/chat/persistence/repository/port"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// conversationRecord is the gorm row for a conversation. PairLow/PairHigh materialize the
// unordered pair key so the unique index works on engines without expression indexes.
type conversationRecord struct {
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	MentorID       int64 `gorm:"not null;index"`
	MenteeID       int64 `gorm:"not null;index"`
	PairLow        int64 `gorm:"not null;uniqueIndex:idx_conversation_pair"`
	PairHigh       int64 `gorm:"not null;uniqueIndex:idx_conversation_pair"`
	CreatedAt      time.Time
	LastActivityAt time.Time `gorm:"index"`
	MentorIn       bool      `gorm:"not null;default:false"`
	MenteeIn       bool      `gorm:"not null;default:false"`
	Status         int16     `gorm:"not null;default:0"`
	Flagged        bool      `gorm:"not null;default:false"`
	ClosedAt       *time.Time
	FlaggedAt      *time.Time
}

func (conversationRecord) TableName() string { return "chat_conversations" }

type messageRecord struct {
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	ConversationID int64 `gorm:"not null;index:idx_message_conversation"`
	SenderID       int64 `gorm:"not null"`
	Kind           int16 `gorm:"not null;default:0"`
	Text           *string
	CreatedAt      time.Time
	Read           bool `gorm:"not null;default:false"`
}

func (messageRecord) TableName() string { return "chat_messages" }

// AutoMigrateGorm creates or updates the chat tables.
func AutoMigrateGorm(db *gorm.DB) error {
	return db.AutoMigrate(&conversationRecord{}, &messageRecord{})
}

// GormChatRepository implements the chat repository on gorm; it is used with the embedded
// SQLite driver.
type GormChatRepository struct {
	db *gorm.DB
}

func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

var _ repository.ChatRepository = (*GormChatRepository)(nil)

func (r *GormChatRepository) CreateConversation(ctx context.Context, c chat.Conversation) (chat.Conversation, error) {
	rec := toConversationRecord(c)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isDuplicateKey(err) {
			return chat.Conversation{}, chat.ErrConflict
		}
		return chat.Conversation{}, errors.Wrap(err, "gorm: insert conversation")
	}
	return rec.toDomain(), nil
}

func (r *GormChatRepository) FindConversationByID(ctx context.Context, id int64) (chat.Conversation, error) {
	var rec conversationRecord
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return chat.Conversation{}, translateNotFound(err, "gorm: find conversation")
	}
	return rec.toDomain(), nil
}

func (r *GormChatRepository) FindConversationByPair(ctx context.Context, a, b int64) (chat.Conversation, error) {
	low, high := chat.PairKey(a, b)
	var rec conversationRecord
	err := r.db.WithContext(ctx).
		Where("pair_low = ? AND pair_high = ?", low, high).
		First(&rec).Error
	if err != nil {
		return chat.Conversation{}, translateNotFound(err, "gorm: find conversation by pair")
	}
	return rec.toDomain(), nil
}

func (r *GormChatRepository) ListConversationsByParty(ctx context.Context, userID int64, side chat.Side, limit int, offset int) ([]chat.Conversation, error) {
	limit, offset = normalizePage(limit, offset)
	column := "mentee_id = ?"
	if side == chat.SideMentor {
		column = "mentor_id = ?"
	}
	var recs []conversationRecord
	err := r.db.WithContext(ctx).
		Where(column, userID).
		Order("last_activity_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, errors.Wrap(err, "gorm: list conversations")
	}
	convs := make([]chat.Conversation, 0, len(recs))
	for _, rec := range recs {
		convs = append(convs, rec.toDomain())
	}
	return convs, nil
}

func (r *GormChatRepository) SetPresence(ctx context.Context, conversationID int64, side chat.Side, present bool) (bool, error) {
	column := "mentee_in"
	if side == chat.SideMentor {
		column = "mentor_in"
	}
	res := r.db.WithContext(ctx).Model(&conversationRecord{}).
		Where("id = ? AND "+column+" <> ?", conversationID, present).
		Update(column, present)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "gorm: set presence")
	}
	return r.changedOrMissing(ctx, res.RowsAffected, conversationID)
}

func (r *GormChatRepository) CloseConversation(ctx context.Context, conversationID int64, at time.Time) (bool, error) {
	at = at.UTC()
	res := r.db.WithContext(ctx).Model(&conversationRecord{}).
		Where("id = ? AND status <> ?", conversationID, int16(chat.StatusClosed)).
		Updates(map[string]interface{}{"status": int16(chat.StatusClosed), "closed_at": at})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "gorm: close conversation")
	}
	return r.changedOrMissing(ctx, res.RowsAffected, conversationID)
}

func (r *GormChatRepository) FlagConversation(ctx context.Context, conversationID int64, at time.Time) (bool, error) {
	at = at.UTC()
	res := r.db.WithContext(ctx).Model(&conversationRecord{}).
		Where("id = ? AND flagged = ?", conversationID, false).
		Updates(map[string]interface{}{"flagged": true, "flagged_at": at})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "gorm: flag conversation")
	}
	return r.changedOrMissing(ctx, res.RowsAffected, conversationID)
}

func (r *GormChatRepository) changedOrMissing(ctx context.Context, affected int64, conversationID int64) (bool, error) {
	if affected > 0 {
		return true, nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&conversationRecord{}).Where("id = ?", conversationID).Count(&n).Error; err != nil {
		return false, errors.Wrap(err, "gorm: conversation exists")
	}
	if n == 0 {
		return false, chat.ErrConversationNotFound
	}
	return false, nil
}

func (r *GormChatRepository) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	rec := messageRecord{
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Kind:           int16(m.Kind),
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
		Read:           m.Read,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv conversationRecord
		if err := tx.First(&conv, m.ConversationID).Error; err != nil {
			return translateNotFound(err, "gorm: load conversation")
		}
		if err := tx.Create(&rec).Error; err != nil {
			return errors.Wrap(err, "gorm: insert message")
		}
		if m.CreatedAt.After(conv.LastActivityAt) {
			err := tx.Model(&conversationRecord{}).
				Where("id = ?", m.ConversationID).
				Update("last_activity_at", m.CreatedAt).Error
			if err != nil {
				return errors.Wrap(err, "gorm: touch conversation")
			}
		}
		return nil
	})
	if err != nil {
		return chat.Message{}, err
	}
	return rec.toDomain(), nil
}

func (r *GormChatRepository) GetMessagesByConversation(ctx context.Context, conversationID int64, limit int, offset int) ([]chat.Message, error) {
	limit, offset = normalizePage(limit, offset)
	var recs []messageRecord
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, errors.Wrap(err, "gorm: query messages")
	}
	msgs := make([]chat.Message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, rec.toDomain())
	}
	return msgs, nil
}

func (r *GormChatRepository) LastMessages(ctx context.Context, conversationIDs []int64) (map[int64]chat.Message, error) {
	res := make(map[int64]chat.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return res, nil
	}
	db := r.db.WithContext(ctx)
	latest := db.Model(&messageRecord{}).
		Select("MAX(id)").
		Where("conversation_id IN ?", conversationIDs).
		Group("conversation_id")
	var recs []messageRecord
	if err := db.Where("id IN (?)", latest).Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "gorm: last messages")
	}
	for _, rec := range recs {
		res[rec.ConversationID] = rec.toDomain()
	}
	return res, nil
}

func (r *GormChatRepository) unread(ctx context.Context, readerID int64) *gorm.DB {
	return r.db.WithContext(ctx).Model(&messageRecord{}).
		Where("sender_id <> ? AND kind = ? AND read = ?", readerID, int16(chat.KindText), false)
}

func (r *GormChatRepository) MarkAllRead(ctx context.Context, conversationID int64, readerID int64) (int64, error) {
	res := r.unread(ctx, readerID).
		Where("conversation_id = ?", conversationID).
		Update("read", true)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "gorm: mark all read")
	}
	return res.RowsAffected, nil
}

func (r *GormChatRepository) CountUnread(ctx context.Context, conversationID int64, readerID int64) (int64, error) {
	var n int64
	err := r.unread(ctx, readerID).
		Where("conversation_id = ?", conversationID).
		Count(&n).Error
	if err != nil {
		return 0, errors.Wrap(err, "gorm: count unread")
	}
	return n, nil
}

func (r *GormChatRepository) CountUnreadBatch(ctx context.Context, readerID int64, conversationIDs []int64) (map[int64]int64, error) {
	res := make(map[int64]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return res, nil
	}
	var rows []struct {
		ConversationID int64
		N              int64
	}
	parties := r.db.WithContext(ctx).Model(&conversationRecord{}).
		Select("id").
		Where("id IN ? AND (mentor_id = ? OR mentee_id = ?)", conversationIDs, readerID, readerID)
	err := r.unread(ctx, readerID).
		Select("conversation_id, count(*) AS n").
		Where("conversation_id IN (?)", parties).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "gorm: count unread batch")
	}
	for _, row := range rows {
		res[row.ConversationID] = row.N
	}
	return res, nil
}

func toConversationRecord(c chat.Conversation) conversationRecord {
	low, high := c.PairKey()
	return conversationRecord{
		ID:             c.ID,
		MentorID:       c.MentorID,
		MenteeID:       c.MenteeID,
		PairLow:        low,
		PairHigh:       high,
		CreatedAt:      c.CreatedAt,
		LastActivityAt: c.LastActivityAt,
		MentorIn:       c.MentorIn,
		MenteeIn:       c.MenteeIn,
		Status:         int16(c.Status),
		Flagged:        c.Flagged,
		ClosedAt:       c.ClosedAt,
		FlaggedAt:      c.FlaggedAt,
	}
}

func (rec conversationRecord) toDomain() chat.Conversation {
	return chat.Conversation{
		ID:             rec.ID,
		MentorID:       rec.MentorID,
		MenteeID:       rec.MenteeID,
		CreatedAt:      rec.CreatedAt,
		LastActivityAt: rec.LastActivityAt,
		MentorIn:       rec.MentorIn,
		MenteeIn:       rec.MenteeIn,
		Status:         chat.Status(rec.Status),
		Flagged:        rec.Flagged,
		ClosedAt:       rec.ClosedAt,
		FlaggedAt:      rec.FlaggedAt,
	}
}

func (rec messageRecord) toDomain() chat.Message {
	return chat.Message{
		ID:             rec.ID,
		Kind:           chat.Kind(rec.Kind),
		ConversationID: rec.ConversationID,
		SenderID:       rec.SenderID,
		Text:           rec.Text,
		CreatedAt:      rec.CreatedAt,
		Read:           rec.Read,
	}
}

func translateNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.ErrConversationNotFound
	}
	return errors.Wrap(err, msg)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
