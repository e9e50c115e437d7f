//go:build property
// +build property

package core_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dkeye/Membership/internal/adapters/memlog"
	"github.com/dkeye/Membership/internal/core"
	"github.com/dkeye/Membership/internal/domain"
)

var allMemberships = []domain.Membership{
	domain.MembershipInvite,
	domain.MembershipJoin,
	domain.MembershipLeave,
	domain.MembershipBan,
	domain.MembershipKnock,
}

type step struct {
	member     domain.MemberID
	membership domain.Membership
}

// genSteps encodes each step as one int: member index times the number of
// memberships plus the membership index.
func genSteps() gopter.Gen {
	n := len(allMemberships)
	return gen.SliceOf(gen.IntRange(0, 6*n-1)).Map(func(raw []int) []step {
		out := make([]step, len(raw))
		for i, v := range raw {
			member := v / n
			out[i] = step{
				member:     domain.MemberID(fmt.Sprintf("@u%d:h%d.org", member, member%2)),
				membership: allMemberships[v%n],
			}
		}
		return out
	})
}

// replayLatest is the reference model: the last step per member wins.
func replayLatest(steps []step) map[domain.MemberID]domain.Membership {
	out := make(map[domain.MemberID]domain.Membership)
	for _, s := range steps {
		out[s.member] = s.membership
	}
	return out
}

func TestProjectionMatchesLastWriteModel(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("current members equal the last write per member", prop.ForAll(
		func(steps []step) bool {
			ctx := context.Background()
			l := memlog.New()
			for _, s := range steps {
				if _, err := l.Append(ctx, "!r", s.member, s.membership, nil); err != nil {
					return false
				}
			}
			p := core.NewProjector(l, nil)
			got, err := p.CurrentMembers(ctx, "!r", nil)
			if err != nil {
				return false
			}
			want := replayLatest(steps)
			if len(got) != len(want) {
				return false
			}
			for _, e := range got {
				if want[e.MemberID] != e.Membership {
					return false
				}
			}
			return true
		},
		genSteps(),
	))

	properties.Property("join filter keeps exactly the currently joined", prop.ForAll(
		func(steps []step) bool {
			ctx := context.Background()
			l := memlog.New()
			for _, s := range steps {
				if _, err := l.Append(ctx, "!r", s.member, s.membership, nil); err != nil {
					return false
				}
			}
			join := domain.MembershipJoin
			got, err := core.NewProjector(l, nil).CurrentMembers(ctx, "!r", &join)
			if err != nil {
				return false
			}
			joined := 0
			for _, m := range replayLatest(steps) {
				if m == domain.MembershipJoin {
					joined++
				}
			}
			for _, e := range got {
				if e.Membership != domain.MembershipJoin {
					return false
				}
			}
			return len(got) == joined
		},
		genSteps(),
	))

	properties.Property("joined domains have no duplicates", prop.ForAll(
		func(steps []step) bool {
			ctx := context.Background()
			l := memlog.New()
			for _, s := range steps {
				if _, err := l.Append(ctx, "!r", s.member, s.membership, nil); err != nil {
					return false
				}
			}
			domains, err := core.NewProjector(l, nil).JoinedDomains(ctx, "!r")
			if err != nil {
				return false
			}
			seen := make(map[string]bool)
			for _, d := range domains {
				if seen[d] {
					return false
				}
				seen[d] = true
			}
			return len(domains) <= 2
		},
		genSteps(),
	))

	properties.TestingRun(t)
}
