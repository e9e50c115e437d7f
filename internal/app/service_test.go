package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"testing"

	"github.com/dkeye/Membership/internal/adapters/memlog"
	"github.com/dkeye/Membership/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestServiceScenario(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(nil)
	watcher := &fakeSub{limit: 10}
	hub.Subscribe("!r", watcher)
	svc := NewService(memlog.New(), hub)

	seq, err := svc.AppendMembership(ctx, "!r", "@alice:a.org", domain.MembershipInvite, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
	seq, err = svc.AppendMembership(ctx, "!r", "@alice:a.org", domain.MembershipJoin, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
	seq, err = svc.AppendMembership(ctx, "!r", "@bob:b.org", domain.MembershipJoin, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)

	alice, ok, err := svc.GetMembership(ctx, "!r", "@alice:a.org")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), alice.SequenceID)
	assert.Equal(t, domain.MembershipJoin, alice.Membership)

	join := domain.MembershipJoin
	joined, err := svc.ListMembers(ctx, "!r", &join)
	require.NoError(t, err)
	assert.Len(t, joined, 2)

	domains, err := svc.ListJoinedDomains(ctx, "!r")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.org", "b.org"}, domains)

	seq, err = svc.AppendMembership(ctx, "!r", "@alice:a.org", domain.MembershipLeave, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq)

	domains, err = svc.ListJoinedDomains(ctx, "!r")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.org"}, domains)

	rooms, err := svc.ListMemberRooms(ctx, "@bob:b.org", &join)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, domain.RoomID("!r"), rooms[0].RoomID)

	published := watcher.events()
	require.Len(t, published, 4)
	for i, e := range published {
		assert.Equal(t, uint64(i+1), e.SequenceID)
	}

	_, ok, err = svc.GetMembership(ctx, "!r", "@carol:c.org")
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingLog struct{}

func (failingLog) Append(context.Context, domain.RoomID, domain.MemberID, domain.Membership, []byte) (uint64, error) {
	return 0, errors.Join(domain.ErrStorageFailure, errors.New("disk full"))
}

func (failingLog) Scan(context.Context, domain.RoomID) iter.Seq2[domain.MembershipEvent, error] {
	return func(func(domain.MembershipEvent, error) bool) {}
}

func (failingLog) ScanAll(context.Context) iter.Seq2[domain.MembershipEvent, error] {
	return func(func(domain.MembershipEvent, error) bool) {}
}

func TestServiceFailedAppendIsNotPublished(t *testing.T) {
	hub := NewHub(nil)
	watcher := &fakeSub{limit: 10}
	hub.Subscribe("!r", watcher)
	svc := NewService(failingLog{}, hub)

	_, err := svc.AppendMembership(context.Background(), "!r", "@alice:a.org", domain.MembershipJoin, nil)
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.Empty(t, watcher.events())
}

func TestServiceInvalidArgument(t *testing.T) {
	svc := NewService(memlog.New(), nil)
	_, err := svc.AppendMembership(context.Background(), "!r", "", domain.MembershipJoin, nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestServicePublishesInSequenceOrder(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(nil)
	watcher := &fakeSub{limit: 1000}
	hub.Subscribe("!r", watcher)
	svc := NewService(memlog.New(), hub)

	const writers, perWriter = 8, 25
	var g errgroup.Group
	for w := range writers {
		g.Go(func() error {
			for range perWriter {
				if _, err := svc.AppendMembership(ctx, "!r", domain.MemberID(fmt.Sprintf("@w%d:a.org", w)), domain.MembershipJoin, nil); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	published := watcher.events()
	require.Len(t, published, writers*perWriter)
	for i, e := range published {
		assert.Equal(t, uint64(i+1), e.SequenceID)
	}
}
