package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matching-workers/internal/common/logger"
	"matching-workers/internal/matching"
	"matching-workers/internal/models"
)

var created = time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func candidateRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "first_name", "middle_name", "last_name", "phone_number", "created_at",
		"a_id", "country", "state", "city", "neighborhood", "street_address", "postal_code",
	})
}

func TestGetQueryProfile(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewNoOpLogger())

	mock.ExpectQuery(`FROM search_profiles sp`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "first_name", "middle_name", "last_name", "created_at",
			"a_id", "country", "state", "city", "neighborhood", "street_address", "postal_code",
		}).AddRow(5, 11, "Juan", "", "Garcia", created, 3, "Colombia", "Antioquia", "Medellín", nil, nil, nil))

	p, err := store.GetQueryProfile(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(11), p.OwnerID)
	assert.Equal(t, "Garcia", p.LastName)
	require.NotNil(t, p.Address)
	assert.Equal(t, "Medellín", p.Address.City)
	assert.Empty(t, p.Address.Neighborhood)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetQueryProfile_NoAddress(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewNoOpLogger())

	mock.ExpectQuery(`FROM search_profiles sp`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "first_name", "middle_name", "last_name", "created_at",
			"a_id", "country", "state", "city", "neighborhood", "street_address", "postal_code",
		}).AddRow(5, 11, "Juan", "", "Garcia", created, nil, nil, nil, nil, nil, nil, nil))

	p, err := store.GetQueryProfile(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, p.Address)
}

func TestGetQueryProfile_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewNoOpLogger())

	mock.ExpectQuery(`FROM search_profiles sp`).WithArgs(int64(404)).WillReturnError(sql.ErrNoRows)

	_, err := store.GetQueryProfile(context.Background(), 404)
	assert.ErrorIs(t, err, matching.ErrQueryProfileNotFound)
}

func TestFindCandidatesExact(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewNoOpLogger())

	mock.ExpectQuery(`LOWER\(pi.first_name\) = LOWER\(\$1\) AND LOWER\(pi.last_name\) = LOWER\(\$2\) AND pi.user_id <> \$3`).
		WithArgs("Juan", "Garcia", int64(11)).
		WillReturnRows(candidateRows().
			AddRow(1, 20, "Juan", "", "Garcia", "", created, nil, nil, nil, nil, nil, nil, nil).
			AddRow(2, 21, "juan", "Carlos", "garcia", "3001234567", created, 9, "Colombia", nil, "Cali", nil, nil, nil))

	got, err := store.FindCandidatesExact(context.Background(), "Juan", "Garcia", 11)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Address)
	assert.Equal(t, int64(21), got[1].AccountID)
	assert.Equal(t, "3001234567", got[1].PhoneNumber)
	assert.Equal(t, "Cali", got[1].Address.City)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidatesFuzzy(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		db, mock := setupMockDB(t)
		store := NewStore(db, logger.NewNoOpLogger())

		mock.ExpectQuery(`FROM pg_extension WHERE extname = 'pg_trgm'`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(`similarity\(pi.first_name, \$1\) > \$4 OR similarity\(pi.last_name, \$2\) > \$4`).
			WithArgs("Juan", "Garcia", int64(11), 0.6).
			WillReturnRows(candidateRows().AddRow(3, 30, "Juana", "", "Garcia", "", created, nil, nil, nil, nil, nil, nil, nil))

		res, err := store.FindCandidatesFuzzy(context.Background(), "Juan", "Garcia", 11, 0.6)
		require.NoError(t, err)
		assert.Equal(t, matching.Available, res.Availability)
		require.Len(t, res.Candidates, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("extension missing", func(t *testing.T) {
		db, mock := setupMockDB(t)
		store := NewStore(db, logger.NewNoOpLogger())

		mock.ExpectQuery(`FROM pg_extension`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		res, err := store.FindCandidatesFuzzy(context.Background(), "Juan", "Garcia", 11, 0.6)
		require.NoError(t, err)
		assert.Equal(t, matching.Unavailable, res.Availability)
		assert.Empty(t, res.Candidates)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("undefined function", func(t *testing.T) {
		db, mock := setupMockDB(t)
		store := NewStore(db, logger.NewNoOpLogger())

		mock.ExpectQuery(`FROM pg_extension`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(`similarity`).
			WillReturnError(&pq.Error{Code: "42883", Message: "function similarity(text, unknown) does not exist"})

		res, err := store.FindCandidatesFuzzy(context.Background(), "Juan", "Garcia", 11, 0.6)
		require.NoError(t, err)
		assert.Equal(t, matching.Unavailable, res.Availability)
		assert.Contains(t, res.Reason, "similarity")
	})

	t.Run("other errors propagate", func(t *testing.T) {
		db, mock := setupMockDB(t)
		store := NewStore(db, logger.NewNoOpLogger())

		mock.ExpectQuery(`FROM pg_extension`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(`similarity`).WillReturnError(errors.New("connection reset by peer"))

		_, err := store.FindCandidatesFuzzy(context.Background(), "Juan", "Garcia", 11, 0.6)
		assert.Error(t, err)
	})
}

func TestFindCandidatesPartial(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewNoOpLogger())

	mock.ExpectQuery(`LOWER\(pi.first_name\) = LOWER\(\$1\) OR LOWER\(pi.last_name\) = LOWER\(\$2\)`).
		WithArgs("Juan", "Garcia", int64(11), 50).
		WillReturnRows(candidateRows())

	got, err := store.FindCandidatesPartial(context.Background(), "Juan", "Garcia", 11, 50)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCandidate(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewNoOpLogger())

	mock.ExpectQuery(`WHERE pi.user_id = \$1`).WithArgs(int64(30)).
		WillReturnRows(candidateRows().AddRow(3, 30, "Juana", "", "Garcia", "", created, nil, nil, nil, nil, nil, nil, nil))
	mock.ExpectQuery(`WHERE pi.user_id = \$1`).WithArgs(int64(31)).WillReturnRows(candidateRows())

	c, err := store.GetCandidate(context.Background(), 30)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Juana", c.FirstName)

	c, err = store.GetCandidate(context.Background(), 31)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestClearMatches(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewNoOpLogger())

	mock.ExpectExec(`DELETE FROM matches WHERE search_profile_id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.ClearMatches(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestBulkInsertMatches(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewNoOpLogger())
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := []models.MatchResult{
		{QueryProfileID: 5, MatchedUserID: 20, SimilarityScore: 0.695, CreatedAt: ts, UpdatedAt: ts},
		{QueryProfileID: 5, MatchedUserID: 21, SimilarityScore: 0.31, CreatedAt: ts, UpdatedAt: ts},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO matches .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\), \(\$7, \$8, \$9, \$10, \$11, \$12\) ON CONFLICT \(search_profile_id, matched_user_id\) DO NOTHING`).
		WithArgs(int64(5), int64(20), 0.695, false, ts, ts, int64(5), int64(21), 0.31, false, ts, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := store.BulkInsertMatches(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "conflicting pair is skipped")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsertMatches_RollsBackOnError(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewNoOpLogger())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO matches`).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := store.BulkInsertMatches(context.Background(), []models.MatchResult{{QueryProfileID: 1, MatchedUserID: 2}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsertMatches_Empty(t *testing.T) {
	db, mock := setupMockDB(t)
	n, err := NewStore(db, logger.NewNoOpLogger()).BulkInsertMatches(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildInsert_Chunks(t *testing.T) {
	rows := make([]models.MatchResult, 3)
	query, args := buildInsert(rows)
	assert.Len(t, args, 18)
	assert.Contains(t, query, "($13, $14, $15, $16, $17, $18)")
}

func TestStatusReporter(t *testing.T) {
	db, mock := setupMockDB(t)
	r := NewStatusReporter(db)
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE search_profiles SET match_status = \$2, updated_at = NOW\(\) WHERE id = \$1`).
		WithArgs(int64(5), 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET match_status = \$2, match_count = \$3, last_matched_at = \$4`).
		WithArgs(int64(5), 2, 3, at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE search_profiles SET match_status = \$2`).
		WithArgs(int64(6), 3).WillReturnError(errors.New("read-only transaction"))

	require.NoError(t, r.MarkProcessing(context.Background(), 5))
	require.NoError(t, r.MarkCompleted(context.Background(), 5, 3, at))
	assert.Error(t, r.MarkFailed(context.Background(), 6, errors.New("boom")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfilesNeedingMatching(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, logger.NewNoOpLogger())
	cutoff := time.Date(2024, 5, 25, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT DISTINCT sp.id .* WHERE m.id IS NULL OR m.created_at < \$1 .* LIMIT \$2`).
		WithArgs(cutoff, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(8))

	ids, err := store.ProfilesNeedingMatching(context.Background(), cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 8}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
