package app

import (
	"bytes"
	"context"
	"sync"

	"github.com/dkeye/Membership/internal/core"
	"github.com/dkeye/Membership/internal/domain"
	"github.com/rs/zerolog/log"
)

// Service is the caller-facing membership API. Writes go to Log, reads go
// through Projector, and every stored event is published on Hub. Appends
// made through one Service reach subscribers in sequence order.
type Service struct {
	Log       core.EventLog
	Projector *core.Projector
	Hub       *Hub

	// appendMu spans Append and Publish so ids are published in the order
	// they were assigned.
	appendMu sync.Mutex
}

func NewService(l core.EventLog, hub *Hub) *Service {
	return &Service{
		Log:       l,
		Projector: core.NewProjector(l, nil),
		Hub:       hub,
	}
}

func (s *Service) AppendMembership(ctx context.Context, room domain.RoomID, member domain.MemberID, membership domain.Membership, content []byte) (uint64, error) {
	content = bytes.Clone(content)
	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	seq, err := s.Log.Append(ctx, room, member, membership, content)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.service").Str("room", string(room)).Str("member", string(member)).Msg("append membership failed")
		return 0, err
	}
	log.Info().Str("module", "app.service").Uint64("seq", seq).Str("room", string(room)).Str("member", string(member)).Str("membership", string(membership)).Msg("membership appended")
	if s.Hub != nil {
		s.Hub.Publish(domain.MembershipEvent{
			SequenceID: seq,
			RoomID:     room,
			MemberID:   member,
			Membership: membership,
			Content:    content,
		})
	}
	return seq, nil
}

func (s *Service) GetMembership(ctx context.Context, room domain.RoomID, member domain.MemberID) (domain.MembershipEvent, bool, error) {
	return s.Projector.CurrentMember(ctx, room, member)
}

func (s *Service) ListMembers(ctx context.Context, room domain.RoomID, filter *domain.Membership) ([]domain.MembershipEvent, error) {
	return s.Projector.CurrentMembers(ctx, room, filter)
}

func (s *Service) ListJoinedDomains(ctx context.Context, room domain.RoomID) ([]string, error) {
	return s.Projector.JoinedDomains(ctx, room)
}

func (s *Service) ListMemberRooms(ctx context.Context, member domain.MemberID, filter *domain.Membership) ([]domain.MembershipEvent, error) {
	return s.Projector.MemberRooms(ctx, member, filter)
}
