package core

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/dkeye/Membership/internal/domain"
	"github.com/rs/zerolog/log"
)

// Projector resolves current membership state from an EventLog. The current
// state of a (room, member) pair is its event with the highest sequence id.
// Every query rescans the log; nothing is cached between calls.
type Projector struct {
	log      EventLog
	domainOf DomainFunc
}

// NewProjector uses domain.MemberID.Domain when domainOf is nil.
func NewProjector(l EventLog, domainOf DomainFunc) *Projector {
	if domainOf == nil {
		domainOf = domain.MemberID.Domain
	}
	return &Projector{log: l, domainOf: domainOf}
}

// CurrentMember returns the latest event for member in room. ok is false when
// the member has no recorded state there.
func (p *Projector) CurrentMember(ctx context.Context, room domain.RoomID, member domain.MemberID) (domain.MembershipEvent, bool, error) {
	latest, err := fold(p.log.Scan(ctx, room), func(e domain.MembershipEvent) (domain.MemberID, bool) {
		return e.MemberID, e.MemberID == member
	})
	if err != nil {
		return domain.MembershipEvent{}, false, err
	}
	e, ok := latest[member]
	return e, ok, nil
}

// CurrentMembers returns one event per member that has any history in room,
// each being that member's latest. With a filter, only members whose latest
// membership equals it are kept. Results are ordered by sequence id.
func (p *Projector) CurrentMembers(ctx context.Context, room domain.RoomID, filter *domain.Membership) ([]domain.MembershipEvent, error) {
	latest, err := fold(p.log.Scan(ctx, room), func(e domain.MembershipEvent) (domain.MemberID, bool) {
		return e.MemberID, true
	})
	if err != nil {
		return nil, err
	}
	return collect(latest, filter), nil
}

// JoinedDomains returns the distinct domains of members currently joined to
// room, sorted.
func (p *Projector) JoinedDomains(ctx context.Context, room domain.RoomID) ([]string, error) {
	join := domain.MembershipJoin
	joined, err := p.CurrentMembers(ctx, room, &join)
	if err != nil {
		return nil, err
	}
	hosts := make(map[string]struct{}, len(joined))
	for _, e := range joined {
		if h := p.domainOf(e.MemberID); h != "" {
			hosts[h] = struct{}{}
		}
	}
	out := make([]string, 0, len(hosts))
	for h := range hosts {
		out = append(out, h)
	}
	slices.Sort(out)
	log.Debug().Str("module", "core.projector").Str("room", string(room)).Strs("domains", out).Int("joined", len(joined)).Msg("joined domains")
	return out, nil
}

// MemberRooms returns member's latest event in every room where it has
// history, optionally filtered by membership.
func (p *Projector) MemberRooms(ctx context.Context, member domain.MemberID, filter *domain.Membership) ([]domain.MembershipEvent, error) {
	latest, err := fold(p.log.ScanAll(ctx), func(e domain.MembershipEvent) (domain.RoomID, bool) {
		return e.RoomID, e.MemberID == member
	})
	if err != nil {
		return nil, err
	}
	return collect(latest, filter), nil
}

// fold reduces a scan to the latest event per key. Events for which key
// reports false are skipped. Any scan error aborts the whole fold, and so
// does a sequence id that does not ascend, since that means the log handed
// out a duplicate or reordered id.
func fold[K comparable](events iter.Seq2[domain.MembershipEvent, error], key func(domain.MembershipEvent) (K, bool)) (map[K]domain.MembershipEvent, error) {
	latest := make(map[K]domain.MembershipEvent)
	var last uint64
	for e, err := range events {
		if err != nil {
			return nil, err
		}
		if e.SequenceID <= last {
			return nil, fmt.Errorf("%w: sequence id %d does not follow %d", domain.ErrStorageFailure, e.SequenceID, last)
		}
		last = e.SequenceID
		k, ok := key(e)
		if !ok {
			continue
		}
		if cur, seen := latest[k]; !seen || e.SequenceID > cur.SequenceID {
			latest[k] = e
		}
	}
	return latest, nil
}

func collect[K comparable](latest map[K]domain.MembershipEvent, filter *domain.Membership) []domain.MembershipEvent {
	out := make([]domain.MembershipEvent, 0, len(latest))
	for _, e := range latest {
		if filter != nil && e.Membership != *filter {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b domain.MembershipEvent) int {
		return cmp.Compare(a.SequenceID, b.SequenceID)
	})
	return out
}
