package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the terminal-or-not part of a conversation lifecycle.
// 0 = open (default), 1 = closed
type Status int16

const (
	StatusOpen   Status = 0
	StatusClosed Status = 1
)

// Lifecycle is the externally reported state of a conversation.
type Lifecycle string

const (
	LifecycleOpen    Lifecycle = "OPEN"
	LifecycleClosed  Lifecycle = "CLOSED"
	LifecycleFlagged Lifecycle = "FLAGGED"
)

// Conversation is the durable 1:1 pairing between a mentor (party A) and a mentee (party B).
// At most one exists per unordered pair; see PairKey.
type Conversation struct {
	ID             int64      `db:"id"`
	MentorID       int64      `db:"mentor_id"`
	MenteeID       int64      `db:"mentee_id"`
	CreatedAt      time.Time  `db:"created_at"`
	LastActivityAt time.Time  `db:"last_activity_at"`
	MentorIn       bool       `db:"mentor_in"`
	MenteeIn       bool       `db:"mentee_in"`
	Status         Status     `db:"status"`
	Flagged        bool       `db:"flagged"`
	ClosedAt       *time.Time `db:"closed_at"`
	FlaggedAt      *time.Time `db:"flagged_at"`
}

// NewConversation builds an unsaved, open conversation with both parties out.
func NewConversation(mentorID, menteeID int64, now time.Time) (*Conversation, error) {
	if mentorID <= 0 || menteeID <= 0 {
		return nil, fmt.Errorf("%w: mentor and mentee ids are required", ErrInvalid)
	}
	if mentorID == menteeID {
		return nil, ErrSelfConversation
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Conversation{
		MentorID:       mentorID,
		MenteeID:       menteeID,
		CreatedAt:      now,
		LastActivityAt: now,
		Status:         StatusOpen,
	}, nil
}

// PairKey returns the unordered pair key (low, high) used for the uniqueness constraint.
func PairKey(a, b int64) (int64, int64) {
	if a <= b {
		return a, b
	}
	return b, a
}

// PairKey of this conversation.
func (c *Conversation) PairKey() (int64, int64) {
	return PairKey(c.MentorID, c.MenteeID)
}

// Lifecycle reports CLOSED over FLAGGED over OPEN.
func (c *Conversation) Lifecycle() Lifecycle {
	switch {
	case c.Status == StatusClosed:
		return LifecycleClosed
	case c.Flagged:
		return LifecycleFlagged
	default:
		return LifecycleOpen
	}
}

// IsClosed tells whether the conversation stopped accepting messages.
func (c *Conversation) IsClosed() bool {
	return c.Status == StatusClosed
}

// PartyID returns the user id sitting on the given side.
func (c *Conversation) PartyID(side Side) int64 {
	if side == SideMentor {
		return c.MentorID
	}
	return c.MenteeID
}

// IsPresent returns the presence flag of the given side.
func (c *Conversation) IsPresent(side Side) bool {
	if side == SideMentor {
		return c.MentorIn
	}
	return c.MenteeIn
}

// SetPresent flips the in-memory presence flag of side and reports whether it changed.
func (c *Conversation) SetPresent(side Side, present bool) bool {
	flag := &c.MenteeIn
	if side == SideMentor {
		flag = &c.MentorIn
	}
	if *flag == present {
		return false
	}
	*flag = present
	return true
}

// Topic is the broadcast channel name of this conversation.
func (c *Conversation) Topic() string {
	return Topic(c.ID)
}

const topicPrefix = "room/"

// Topic builds the pub/sub topic for a conversation id.
func Topic(conversationID int64) string {
	return topicPrefix + strconv.FormatInt(conversationID, 10)
}

// ParseTopic is the inverse of Topic.
func ParseTopic(topic string) (int64, bool) {
	raw, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}
