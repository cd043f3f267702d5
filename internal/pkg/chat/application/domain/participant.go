package chat

import (
	"fmt"
	"strings"
)

// Side tags which seat of a conversation a party occupies.
// 0 = mentor (party A), 1 = mentee (party B)
type Side int16

const (
	SideMentor Side = 0
	SideMentee Side = 1
)

// Other returns the counterparty side.
func (s Side) Other() Side {
	if s == SideMentor {
		return SideMentee
	}
	return SideMentor
}

func (s Side) String() string {
	if s == SideMentor {
		return "mentor"
	}
	return "mentee"
}

// Role is the account role resolved by the identity collaborator.
type Role string

const (
	RoleMentor Role = "mentor"
	RoleMentee Role = "mentee"
)

// ParseRole accepts the role strings sent by the auth layer, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleMentor:
		return RoleMentor, nil
	case RoleMentee:
		return RoleMentee, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalid, s)
	}
}

// Side maps a role onto the conversation seat it occupies.
func (r Role) Side() Side {
	if r == RoleMentor {
		return SideMentor
	}
	return SideMentee
}

// Caller is an already-authenticated party.
type Caller struct {
	UserID int64
	Role   Role
}

// Validate checks the caller carries a usable identity.
func (c Caller) Validate() error {
	if c.UserID <= 0 {
		return fmt.Errorf("%w: caller id is required", ErrInvalid)
	}
	if c.Role != RoleMentor && c.Role != RoleMentee {
		return fmt.Errorf("%w: caller role is required", ErrInvalid)
	}
	return nil
}

// Pair orders the caller and a counterpart into (mentor, mentee) using the caller's role.
func (c Caller) Pair(counterpartID int64) (mentorID, menteeID int64) {
	if c.Role == RoleMentor {
		return c.UserID, counterpartID
	}
	return counterpartID, c.UserID
}
