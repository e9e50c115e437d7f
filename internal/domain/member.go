package domain

import (
	"bytes"
	"fmt"
	"strings"
)

type Membership string

const (
	MembershipInvite Membership = "invite"
	MembershipJoin   Membership = "join"
	MembershipLeave  Membership = "leave"
	MembershipBan    Membership = "ban"
	MembershipKnock  Membership = "knock"
)

// ParseMembership accepts the wire values in any letter case.
func ParseMembership(s string) (Membership, error) {
	m := Membership(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown membership %q", ErrInvalidArgument, s)
	}
	return m, nil
}

func (m Membership) Valid() bool {
	switch m {
	case MembershipInvite, MembershipJoin, MembershipLeave, MembershipBan, MembershipKnock:
		return true
	}
	return false
}

// MembershipEvent is one immutable entry of a room's membership history.
// Content is an opaque application payload and is never inspected here.
type MembershipEvent struct {
	SequenceID uint64
	RoomID     RoomID
	MemberID   MemberID
	Membership Membership
	Content    []byte
}

// Clone returns a copy that shares no memory with e.
func (e MembershipEvent) Clone() MembershipEvent {
	e.Content = bytes.Clone(e.Content)
	return e
}

// ValidateAppend reports whether an event with these fields may be appended.
func ValidateAppend(room RoomID, member MemberID, membership Membership) error {
	if err := room.validate(); err != nil {
		return err
	}
	if err := member.validate(); err != nil {
		return err
	}
	if !membership.Valid() {
		return fmt.Errorf("%w: unknown membership %q", ErrInvalidArgument, membership)
	}
	return nil
}
