package chat

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversation(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	c, err := NewConversation(1, 2, now)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, c.CreatedAt.Location())
	assert.Equal(t, c.CreatedAt, c.LastActivityAt)
	assert.Equal(t, LifecycleOpen, c.Lifecycle())

	_, err = NewConversation(3, 3, now)
	assert.ErrorIs(t, err, ErrSelfConversation)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = NewConversation(0, 3, now)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestPairKeyIgnoresOrder(t *testing.T) {
	lo, hi := PairKey(9, 4)
	assert.Equal(t, int64(4), lo)
	assert.Equal(t, int64(9), hi)

	c := Conversation{MentorID: 9, MenteeID: 4}
	lo2, hi2 := c.PairKey()
	assert.Equal(t, lo, lo2)
	assert.Equal(t, hi, hi2)
}

func TestLifecyclePrecedence(t *testing.T) {
	c := Conversation{}
	assert.Equal(t, LifecycleOpen, c.Lifecycle())
	c.Flagged = true
	assert.Equal(t, LifecycleFlagged, c.Lifecycle())
	c.Status = StatusClosed
	assert.Equal(t, LifecycleClosed, c.Lifecycle())
	assert.True(t, c.IsClosed())
}

func TestSideOf(t *testing.T) {
	c := &Conversation{ID: 1, MentorID: 10, MenteeID: 20}

	side, err := c.SideOf(10)
	require.NoError(t, err)
	assert.Equal(t, SideMentor, side)
	assert.Equal(t, SideMentee, side.Other())
	assert.Equal(t, int64(20), c.PartyID(side.Other()))

	side, err = c.SideOf(20)
	require.NoError(t, err)
	assert.Equal(t, SideMentee, side)

	_, err = c.SideOf(30)
	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.ErrorIs(t, err, ErrForbidden)

	var missing *Conversation
	_, err = missing.SideOf(10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetPresentReportsChange(t *testing.T) {
	c := &Conversation{}
	assert.True(t, c.SetPresent(SideMentee, true))
	assert.False(t, c.SetPresent(SideMentee, true))
	assert.True(t, c.IsPresent(SideMentee))
	assert.False(t, c.IsPresent(SideMentor))
	assert.True(t, c.SetPresent(SideMentee, false))
}

func TestPostMessage(t *testing.T) {
	c := &Conversation{ID: 5, MentorID: 10, MenteeID: 20}

	msg, side, err := c.PostMessage(10, " hi ", 0)
	require.NoError(t, err)
	assert.Equal(t, SideMentor, side)
	assert.Equal(t, "hi", *msg.Text)
	assert.False(t, msg.Read)

	c.MenteeIn = true
	msg, _, err = c.PostMessage(10, "hi", 0)
	require.NoError(t, err)
	assert.True(t, msg.Read)

	_, _, err = c.PostMessage(30, "hi", 0)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = c.PostMessage(10, "\n\t ", 0)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, _, err = c.PostMessage(10, strings.Repeat("é", 5), 4)
	assert.ErrorIs(t, err, ErrMessageTooLong)

	c.Status = StatusClosed
	_, _, err = c.PostMessage(10, "hi", 0)
	assert.ErrorIs(t, err, ErrConversationClosed)
}

func TestMessagePayloadShape(t *testing.T) {
	text := "hello"
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	m := Message{ID: 3, Kind: KindText, ConversationID: 7, SenderID: 10, Text: &text, CreatedAt: at, Read: true}

	b, err := m.Payload()
	require.NoError(t, err)
	assert.JSONEq(t, `{"messageId":3,"kind":"TEXT","conversationId":7,"senderId":10,"text":"hello","createdAt":"2024-05-06T07:08:09Z","read":true}`, string(b))

	enter := NewPresenceMessage(7, 10, KindEnter, at)
	b, err = enter.Payload()
	require.NoError(t, err)
	assert.JSONEq(t, `{"messageId":0,"kind":"ENTER","conversationId":7,"senderId":10,"text":null,"createdAt":"2024-05-06T07:08:09Z","read":false}`, string(b))

	var back Message
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, KindEnter, back.Kind)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"SHOUT"}`), &back))
}

func TestCallerRoles(t *testing.T) {
	r, err := ParseRole(" Mentor ")
	require.NoError(t, err)
	assert.Equal(t, RoleMentor, r)
	assert.Equal(t, SideMentor, r.Side())

	_, err = ParseRole("admin")
	assert.ErrorIs(t, err, ErrInvalid)

	mentorID, menteeID := Caller{UserID: 1, Role: RoleMentee}.Pair(2)
	assert.Equal(t, int64(2), mentorID)
	assert.Equal(t, int64(1), menteeID)

	assert.Error(t, Caller{UserID: 1}.Validate())
	assert.Error(t, Caller{Role: RoleMentor}.Validate())
	assert.NoError(t, Caller{UserID: 1, Role: RoleMentor}.Validate())

	assert.Equal(t, "room/42", Topic(42))
	id, ok := ParseTopic("room/42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	_, ok = ParseTopic("lobby/42")
	assert.False(t, ok)
	_, ok = ParseTopic("room/x")
	assert.False(t, ok)
}
