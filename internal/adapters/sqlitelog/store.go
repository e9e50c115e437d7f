// Package sqlitelog provides a SQLite-backed membership EventLog.
package sqlitelog

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dkeye/Membership/internal/adapters/sqlitelog/migrations"
	"github.com/dkeye/Membership/internal/core"
	"github.com/dkeye/Membership/internal/domain"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var _ core.EventLog = (*Store)(nil)

const selectColumns = `SELECT id, room_id, member_id, membership, content FROM membership_events`

// Store persists membership events in SQLite. Sequence ids are the table's
// AUTOINCREMENT rowids, so they are never reused, and a failed insert does
// not consume one.
type Store struct {
	sqlDB *sql.DB
	// appendMu serializes id assignment within the process. Other processes
	// are serialized by SQLite's write lock and busy timeout.
	appendMu sync.Mutex
}

// Open opens a SQLite membership log at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Str("module", "adapters.sqlitelog").Str("path", path).Msg("membership log opened")
	return &Store{sqlDB: sqlDB}, nil
}

// NewWithDB wraps an already migrated database handle.
func NewWithDB(sqlDB *sql.DB) *Store {
	return &Store{sqlDB: sqlDB}
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Append(ctx context.Context, room domain.RoomID, member domain.MemberID, membership domain.Membership, content []byte) (uint64, error) {
	if err := domain.ValidateAppend(room, member, membership); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("%w: storage is not configured", domain.ErrStorageFailure)
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO membership_events (room_id, member_id, membership, content) VALUES (?, ?, ?, ?)`,
		string(room), string(member), string(membership), content,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: append event: %w", domain.ErrStorageFailure, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: read event id: %w", domain.ErrStorageFailure, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: invalid event id %d", domain.ErrStorageFailure, id)
	}
	log.Debug().Str("module", "adapters.sqlitelog").Int64("seq", id).Str("room", string(room)).Str("member", string(member)).Str("membership", string(membership)).Msg("event appended")
	return uint64(id), nil
}

func (s *Store) Scan(ctx context.Context, room domain.RoomID) iter.Seq2[domain.MembershipEvent, error] {
	return s.query(ctx, selectColumns+` WHERE room_id = ? ORDER BY id ASC`, string(room))
}

func (s *Store) ScanAll(ctx context.Context) iter.Seq2[domain.MembershipEvent, error] {
	return s.query(ctx, selectColumns+` ORDER BY id ASC`)
}

func (s *Store) query(ctx context.Context, query string, args ...any) iter.Seq2[domain.MembershipEvent, error] {
	return func(yield func(domain.MembershipEvent, error) bool) {
		if s == nil || s.sqlDB == nil {
			yield(domain.MembershipEvent{}, fmt.Errorf("%w: storage is not configured", domain.ErrStorageFailure))
			return
		}
		rows, err := s.sqlDB.QueryContext(ctx, query, args...)
		if err != nil {
			yield(domain.MembershipEvent{}, fmt.Errorf("%w: scan events: %w", domain.ErrStorageFailure, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id                           int64
				roomID, memberID, membership string
				content                      []byte
			)
			if err := rows.Scan(&id, &roomID, &memberID, &membership, &content); err != nil {
				yield(domain.MembershipEvent{}, fmt.Errorf("%w: read event row: %w", domain.ErrStorageFailure, err))
				return
			}
			e, err := decodeRow(id, roomID, memberID, membership, content)
			if err != nil {
				yield(domain.MembershipEvent{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.MembershipEvent{}, fmt.Errorf("%w: iterate events: %w", domain.ErrStorageFailure, err))
		}
	}
}

// decodeRow maps one stored row to an event, rejecting rows no valid append
// could have produced.
func decodeRow(id int64, roomID, memberID, membership string, content []byte) (domain.MembershipEvent, error) {
	if id <= 0 {
		return domain.MembershipEvent{}, fmt.Errorf("%w: malformed row: id %d", domain.ErrStorageFailure, id)
	}
	e := domain.MembershipEvent{
		SequenceID: uint64(id),
		RoomID:     domain.RoomID(roomID),
		MemberID:   domain.MemberID(memberID),
		Membership: domain.Membership(membership),
		Content:    content,
	}
	if err := domain.ValidateAppend(e.RoomID, e.MemberID, e.Membership); err != nil {
		return domain.MembershipEvent{}, fmt.Errorf("%w: malformed row %d: %v", domain.ErrStorageFailure, id, err)
	}
	return e, nil
}
