// Package memlog is a process-local EventLog. It is not durable across
// restarts and is meant for development and tests.
package memlog

import (
	"bytes"
	"context"
	"iter"
	"sync"

	"github.com/dkeye/Membership/internal/core"
	"github.com/dkeye/Membership/internal/domain"
	"github.com/rs/zerolog/log"
)

var _ core.EventLog = (*Log)(nil)

// Log keeps every event twice: once in global order and once per room.
// Both slices only grow, so a prefix captured under the lock stays valid
// after the lock is released.
type Log struct {
	mu     sync.RWMutex
	lastID uint64
	all    []domain.MembershipEvent
	byRoom map[domain.RoomID][]domain.MembershipEvent
}

func New() *Log {
	return &Log{byRoom: make(map[domain.RoomID][]domain.MembershipEvent)}
}

func (l *Log) Append(ctx context.Context, room domain.RoomID, member domain.MemberID, membership domain.Membership, content []byte) (uint64, error) {
	if err := domain.ValidateAppend(room, member, membership); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e := domain.MembershipEvent{
		RoomID:     room,
		MemberID:   member,
		Membership: membership,
		Content:    bytes.Clone(content),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastID++
	e.SequenceID = l.lastID
	l.all = append(l.all, e)
	l.byRoom[room] = append(l.byRoom[room], e)
	log.Debug().Str("module", "adapters.memlog").Uint64("seq", e.SequenceID).Str("room", string(room)).Str("member", string(member)).Str("membership", string(membership)).Msg("event appended")
	return e.SequenceID, nil
}

func (l *Log) Scan(ctx context.Context, room domain.RoomID) iter.Seq2[domain.MembershipEvent, error] {
	return func(yield func(domain.MembershipEvent, error) bool) {
		l.mu.RLock()
		events := l.byRoom[room]
		l.mu.RUnlock()
		each(ctx, events, yield)
	}
}

func (l *Log) ScanAll(ctx context.Context) iter.Seq2[domain.MembershipEvent, error] {
	return func(yield func(domain.MembershipEvent, error) bool) {
		l.mu.RLock()
		events := l.all
		l.mu.RUnlock()
		each(ctx, events, yield)
	}
}

// Len reports how many events have been appended.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.all)
}

func each(ctx context.Context, events []domain.MembershipEvent, yield func(domain.MembershipEvent, error) bool) {
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			yield(domain.MembershipEvent{}, err)
			return
		}
		if !yield(e.Clone(), nil) {
			return
		}
	}
}
