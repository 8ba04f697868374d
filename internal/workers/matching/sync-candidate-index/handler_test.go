package synccandidateindex

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matching-workers/internal/common/errors"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/models"
	"matching-workers/internal/store/postgres"
	"matching-workers/internal/store/search"
)

type fakeLoader struct {
	rec *models.CandidateRecord
	err error
}

func (f *fakeLoader) GetCandidate(context.Context, int64) (*models.CandidateRecord, error) {
	return f.rec, f.err
}

type fakeIndexer struct {
	indexed []models.CandidateRecord
	deleted []int64
	err     error
}

func (f *fakeIndexer) IndexCandidate(_ context.Context, rec models.CandidateRecord) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, rec)
	return nil
}

func (f *fakeIndexer) DeleteCandidate(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestHandler(t *testing.T, loader CandidateLoader, indexer CandidateIndexer) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Loader:       loader,
		Indexer:      indexer,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	_, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig(), Loader: &fakeLoader{}})
	assert.ErrorContains(t, err, "loader and indexer are required")
}

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, &fakeLoader{}, &fakeIndexer{})

	job := func(vars string) entities.Job {
		return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Retries: 3, Variables: vars}}
	}

	input, err := h.parseInput(job(`{"accountId": 20}`))
	require.NoError(t, err)
	assert.Equal(t, int64(20), input.AccountID)

	for _, vars := range []string{`{}`, `{"accountId": -3}`, `{"accountId": "20"}`} {
		_, err := h.parseInput(job(vars))
		assert.Equal(t, errors.ErrCodeInvalidJobInput, errors.FromMatchingError(err).Code, vars)
	}
}

func TestHandler_Execute(t *testing.T) {
	rec := &models.CandidateRecord{ID: 1, AccountID: 20, FirstName: "Juan", LastName: "Garcia"}

	t.Run("indexes existing candidate", func(t *testing.T) {
		indexer := &fakeIndexer{}
		out, err := newTestHandler(t, &fakeLoader{rec: rec}, indexer).Execute(context.Background(), &Input{AccountID: 20})
		require.NoError(t, err)
		assert.Equal(t, &Output{AccountID: 20, Action: ActionIndexed}, out)
		require.Len(t, indexer.indexed, 1)
		assert.Equal(t, "Juan", indexer.indexed[0].FirstName)
	})

	t.Run("deletes missing candidate", func(t *testing.T) {
		indexer := &fakeIndexer{}
		out, err := newTestHandler(t, &fakeLoader{}, indexer).Execute(context.Background(), &Input{AccountID: 20})
		require.NoError(t, err)
		assert.Equal(t, ActionDeleted, out.Action)
		assert.Equal(t, []int64{20}, indexer.deleted)
	})

	t.Run("index failure is retryable", func(t *testing.T) {
		indexer := &fakeIndexer{err: stderrors.New("cluster_block_exception")}
		_, err := newTestHandler(t, &fakeLoader{rec: rec}, indexer).Execute(context.Background(), &Input{AccountID: 20})
		stdErr := errors.FromMatchingError(err)
		assert.Equal(t, errors.ErrCodeSearchIndexFailed, stdErr.Code)
		assert.True(t, stdErr.Retryable)
	})

	t.Run("load failure", func(t *testing.T) {
		_, err := newTestHandler(t, &fakeLoader{err: stderrors.New("bad connection")}, &fakeIndexer{}).
			Execute(context.Background(), &Input{AccountID: 20})
		assert.Equal(t, errors.ErrCodeDataAccessFailed, errors.FromMatchingError(err).Code)
	})
}

func TestHandler_Execute_PostgresToElasticsearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE pi.user_id = \$1`).WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "first_name", "middle_name", "last_name", "phone_number", "created_at",
			"a_id", "country", "state", "city", "neighborhood", "street_address", "postal_code",
		}).AddRow(1, 20, "Juan", "", "Garcia", "", created, 5, "Colombia", "Antioquia", "Medellín", nil, nil, nil))

	var indexedPath string
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		indexedPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	h := newTestHandler(t,
		postgres.NewStore(db, logger.NewNoOpLogger()),
		search.NewIndex(es, "candidates", logger.NewNoOpLogger()),
	)

	out, err := h.Execute(context.Background(), &Input{AccountID: 20})
	require.NoError(t, err)
	assert.Equal(t, ActionIndexed, out.Action)
	assert.Equal(t, "/candidates/_doc/20", indexedPath)
	assert.Equal(t, "Medellín", body["address"].(map[string]interface{})["city"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
