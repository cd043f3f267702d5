package chat

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers test with errors.Is against the four roots.
var (
	ErrNotFound  = errors.New("chat: not found")
	ErrForbidden = errors.New("chat: forbidden")
	ErrInvalid   = errors.New("chat: invalid request")
	ErrConflict  = errors.New("chat: conflict")
)

// Refined errors for chat behaviors
var (
	ErrConversationNotFound = fmt.Errorf("%w: conversation", ErrNotFound)
	ErrNotParticipant       = fmt.Errorf("%w: user is not a participant in the conversation", ErrForbidden)
	ErrConversationClosed   = fmt.Errorf("%w: conversation is closed", ErrForbidden)
	ErrEmptyMessage         = fmt.Errorf("%w: empty message", ErrInvalid)
	ErrMessageTooLong       = fmt.Errorf("%w: message too long", ErrInvalid)
	ErrSelfConversation     = fmt.Errorf("%w: cannot open a conversation with yourself", ErrInvalid)
)

// SideOf resolves which seat userID occupies. It is the only place party membership is checked;
// callers keep the returned Side instead of re-deriving it.
func (c *Conversation) SideOf(userID int64) (Side, error) {
	switch {
	case c == nil:
		return 0, ErrConversationNotFound
	case userID == c.MentorID:
		return SideMentor, nil
	case userID == c.MenteeID:
		return SideMentee, nil
	default:
		return 0, ErrNotParticipant
	}
}

// PostMessage applies the relay rules for a text message from userID and returns a message ready
// to persist.
//
// Validations:
//   - sender must be one of the two parties
//   - conversation must not be closed
//   - text must be non-blank and at most maxLen runes (maxLen <= 0 disables the limit)
//
// The receipt flag is taken from the recipient's current presence.
func (c *Conversation) PostMessage(userID int64, text string, maxLen int) (*Message, Side, error) {
	side, err := c.SideOf(userID)
	if err != nil {
		return nil, 0, err
	}
	if c.IsClosed() {
		return nil, 0, ErrConversationClosed
	}
	msg, err := NewTextMessage(c.ID, userID, text, maxLen)
	if err != nil {
		return nil, 0, err
	}
	msg.Read = c.IsPresent(side.Other())
	return msg, side, nil
}
