package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbonatakis/testqueue/internal/queue"
	"github.com/jbonatakis/testqueue/internal/report"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestInTxRollsBackWhenUpdateFails(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(updateReportSQL).
		WithArgs("CANDIDATE", "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg(), nil, "r1").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	pending := report.VendorReviewPending
	r := report.Report{ID: "r1", Status: report.StatusDraft}
	report.ApplyStatus(&r, report.StatusCandidate, t0, 0)
	assert.Equal(t, pending, *r.VendorReviewStatus)

	err := s.InTx(context.Background(), func(tx queue.Tx) error {
		return tx.UpdateReport(context.Background(), r)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update report")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackWhenCallbackFails(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(updateReportSQL).
		WithArgs("RECOMMENDED", nil, nil, nil, sqlmock.AnyArg(), "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	gate := errors.New("Cannot finalize test plan report due to conflicts")
	err := s.InTx(context.Background(), func(tx queue.Tx) error {
		r := report.Report{ID: "r1", Status: report.StatusDraft}
		report.ApplyStatus(&r, report.StatusRecommended, t0, 0)
		if err := tx.UpdateReport(context.Background(), r); err != nil {
			return err
		}
		return gate
	})
	assert.ErrorIs(t, err, gate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxCommits(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(updateReportSQL).
		WithArgs("DRAFT", nil, nil, nil, nil, "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx queue.Tx) error {
		return tx.UpdateReport(context.Background(), report.Report{ID: "r1", Status: report.StatusDraft})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxBeginFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	called := false
	err := s.InTx(context.Background(), func(queue.Tx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}
