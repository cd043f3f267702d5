package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind represents the type of a message event
// 0=text, 1=enter, 2=exit
type Kind int16

const (
	KindText  Kind = 0
	KindEnter Kind = 1
	KindExit  Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindEnter:
		return "ENTER"
	case KindExit:
		return "EXIT"
	default:
		return "TEXT"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "TEXT":
		return KindText, nil
	case "ENTER":
		return KindEnter, nil
	case "EXIT":
		return KindExit, nil
	}
	return 0, fmt.Errorf("%w: unknown message kind %q", ErrInvalid, s)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Message is a log entry in a conversation. Only TEXT messages are persisted; ENTER and EXIT
// are presence events that exist on the wire only.
type Message struct {
	ID             int64     `db:"id" json:"messageId"`
	Kind           Kind      `db:"kind" json:"kind"`
	ConversationID int64     `db:"conversation_id" json:"conversationId"`
	SenderID       int64     `db:"sender_id" json:"senderId"`
	Text           *string   `db:"text" json:"text"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	Read           bool      `db:"read" json:"read"`
}

// NewTextMessage validates and normalizes a TEXT message. Surrounding whitespace is trimmed.
func NewTextMessage(conversationID, senderID int64, text string, maxLen int) (*Message, error) {
	if conversationID <= 0 || senderID <= 0 {
		return nil, fmt.Errorf("%w: conversation_id and sender_id are required", ErrInvalid)
	}
	trimmed, err := NormalizeText(text, maxLen)
	if err != nil {
		return nil, err
	}
	return &Message{
		Kind:           KindText,
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           &trimmed,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// NormalizeText trims text and checks it is non-blank and at most maxLen runes.
// maxLen <= 0 disables the length check.
func NormalizeText(text string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	if maxLen > 0 && utf8.RuneCountInString(trimmed) > maxLen {
		return "", ErrMessageTooLong
	}
	return trimmed, nil
}

// NewPresenceMessage builds the ENTER/EXIT event broadcast when a party's presence flips.
func NewPresenceMessage(conversationID, senderID int64, kind Kind, now time.Time) Message {
	if now.IsZero() {
		now = time.Now()
	}
	return Message{
		Kind:           kind,
		ConversationID: conversationID,
		SenderID:       senderID,
		CreatedAt:      now.UTC(),
	}
}

// Payload encodes the message in its wire shape.
func (m Message) Payload() ([]byte, error) {
	return json.Marshal(m)
}
