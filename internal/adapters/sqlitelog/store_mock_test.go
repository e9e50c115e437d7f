package sqlitelog

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dkeye/Membership/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventColumns = []string{"id", "room_id", "member_id", "membership", "content"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestAppendSurfacesStorageFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO membership_events").
		WithArgs("!r", "@alice:a.org", "join", sqlmock.AnyArg()).
		WillReturnError(errors.New("disk I/O error"))

	_, err := store.Append(context.Background(), "!r", "@alice:a.org", domain.MembershipJoin, nil)
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.Contains(t, err.Error(), "disk I/O error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendReturnsInsertedID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO membership_events").
		WithArgs("!r", "@alice:a.org", "invite", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := store.Append(context.Background(), "!r", "@alice:a.org", domain.MembershipInvite, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidAppendNeverTouchesDatabase(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.Append(context.Background(), "", "@alice:a.org", domain.MembershipJoin, nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanQueryFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectColumns + ` WHERE room_id = ?`)).
		WithArgs("!r").
		WillReturnError(errors.New("database is locked"))

	var gotErr error
	for _, err := range store.Scan(context.Background(), "!r") {
		gotErr = err
	}
	require.ErrorIs(t, gotErr, domain.ErrStorageFailure)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanRowErrorEndsIteration(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows(eventColumns).
		AddRow(1, "!r", "@alice:a.org", "join", nil).
		AddRow(2, "!r", "@bob:b.org", "join", nil).
		RowError(1, errors.New("short read"))
	mock.ExpectQuery(regexp.QuoteMeta(selectColumns + ` WHERE room_id = ?`)).
		WithArgs("!r").
		WillReturnRows(rows)

	var (
		events []domain.MembershipEvent
		gotErr error
	)
	for e, err := range store.Scan(context.Background(), "!r") {
		if err != nil {
			gotErr = err
			break
		}
		events = append(events, e)
	}
	require.ErrorIs(t, gotErr, domain.ErrStorageFailure)
	assert.Len(t, events, 1)
}

func TestScanRejectsMalformedRow(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows(eventColumns).
		AddRow(1, "!r", "@alice:a.org", "lurk", nil)
	mock.ExpectQuery(regexp.QuoteMeta(selectColumns + ` ORDER BY id ASC`)).
		WillReturnRows(rows)

	var gotErr error
	for _, err := range store.ScanAll(context.Background()) {
		gotErr = err
	}
	require.ErrorIs(t, gotErr, domain.ErrStorageFailure)
	assert.NotErrorIs(t, gotErr, domain.ErrInvalidArgument)
}

func TestDecodeRow(t *testing.T) {
	e, err := decodeRow(3, "!r", "@alice:a.org", "ban", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), e.SequenceID)
	assert.Equal(t, domain.MembershipBan, e.Membership)

	_, err = decodeRow(0, "!r", "@alice:a.org", "ban", nil)
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	_, err = decodeRow(4, "", "@alice:a.org", "ban", nil)
	require.ErrorIs(t, err, domain.ErrStorageFailure)
}
