package core

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/dkeye/Membership/internal/domain"
)

// EventLog is an append-only, globally ordered store of membership events.
// Implementations must hand out strictly increasing sequence ids under
// concurrent appends and make an event visible to every scan that starts
// after Append returns.
type EventLog interface {
	// Append stores one event and returns its sequence id. Invalid arguments
	// fail with domain.ErrInvalidArgument before the medium is touched; medium
	// errors fail with domain.ErrStorageFailure and consume no id.
	Append(ctx context.Context, room domain.RoomID, member domain.MemberID, membership domain.Membership, content []byte) (uint64, error)
	// Scan yields the room's events in ascending sequence order. An error
	// ends the iteration.
	Scan(ctx context.Context, room domain.RoomID) iter.Seq2[domain.MembershipEvent, error]
	// ScanAll yields every event of every room in ascending sequence order.
	ScanAll(ctx context.Context) iter.Seq2[domain.MembershipEvent, error]
}

// DomainFunc extracts the network domain from a member id.
type DomainFunc func(domain.MemberID) string

// EventDTO is the wire view of a membership event.
type EventDTO struct {
	SequenceID uint64            `json:"sequence_id"`
	RoomID     domain.RoomID     `json:"room_id"`
	MemberID   domain.MemberID   `json:"member_id"`
	Membership domain.Membership `json:"membership"`
	Content    json.RawMessage   `json:"content,omitempty"`
}

// NewEventDTO passes JSON content through as-is. Anything else is sent as a
// base64 string.
func NewEventDTO(e domain.MembershipEvent) EventDTO {
	dto := EventDTO{
		SequenceID: e.SequenceID,
		RoomID:     e.RoomID,
		MemberID:   e.MemberID,
		Membership: e.Membership,
	}
	switch {
	case len(e.Content) == 0:
	case json.Valid(e.Content):
		dto.Content = json.RawMessage(e.Content)
	default:
		dto.Content, _ = json.Marshal(e.Content)
	}
	return dto
}
