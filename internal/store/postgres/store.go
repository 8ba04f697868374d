// Package postgres implements the matching data-access contract on the web
// application's PostgreSQL schema using lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"matching-workers/internal/common/logger"
	"matching-workers/internal/matching"
	"matching-workers/internal/models"
)

// pq error code for undefined_function, raised when similarity() is missing.
const undefinedFunction = "42883"

// maxInsertRows keeps a multi-row INSERT under the 65535 bind parameter limit.
const maxInsertRows = 1000

const candidateColumns = `
	pi.id, pi.user_id, pi.first_name, COALESCE(pi.middle_name, ''), pi.last_name,
	COALESCE(pi.phone_number, ''), pi.created_at,
	a.id, a.country, a.state, a.city, a.neighborhood, a.street_address, a.postal_code`

const candidateFrom = `
	FROM personal_infos pi
	LEFT JOIN LATERAL (
		SELECT id, country, state, city, neighborhood, street_address, postal_code
		FROM addresses
		WHERE user_id = pi.user_id AND search_profile_id IS NULL
		ORDER BY id
		LIMIT 1
	) a ON TRUE`

const (
	queryProfileSQL = `
	SELECT sp.id, sp.user_id, sp.first_name, COALESCE(sp.middle_name, ''), sp.last_name, sp.created_at,
		a.id, a.country, a.state, a.city, a.neighborhood, a.street_address, a.postal_code
	FROM search_profiles sp
	LEFT JOIN LATERAL (
		SELECT id, country, state, city, neighborhood, street_address, postal_code
		FROM addresses
		WHERE search_profile_id = sp.id
		ORDER BY id
		LIMIT 1
	) a ON TRUE
	WHERE sp.id = $1`

	exactSQL = `SELECT` + candidateColumns + candidateFrom + `
	WHERE LOWER(pi.first_name) = LOWER($1) AND LOWER(pi.last_name) = LOWER($2) AND pi.user_id <> $3
	ORDER BY pi.user_id`

	fuzzySQL = `SELECT` + candidateColumns + candidateFrom + `
	WHERE (similarity(pi.first_name, $1) > $4 OR similarity(pi.last_name, $2) > $4) AND pi.user_id <> $3
	ORDER BY pi.user_id`

	partialSQL = `SELECT` + candidateColumns + candidateFrom + `
	WHERE (LOWER(pi.first_name) = LOWER($1) OR LOWER(pi.last_name) = LOWER($2)) AND pi.user_id <> $3
	ORDER BY pi.user_id
	LIMIT $4`

	candidateByAccountSQL = `SELECT` + candidateColumns + candidateFrom + `
	WHERE pi.user_id = $1`

	trigramAvailableSQL = `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'pg_trgm')`

	clearMatchesSQL = `DELETE FROM matches WHERE search_profile_id = $1`

	insertMatchesPrefix = `INSERT INTO matches (search_profile_id, matched_user_id, similarity_score, is_verified, created_at, updated_at) VALUES `
	insertMatchesSuffix = ` ON CONFLICT (search_profile_id, matched_user_id) DO NOTHING`
)

// Store reads profiles and candidates and writes matches.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{db: db, logger: logger.ForComponent(log, "postgres-store")}
}

// GetQueryProfile returns matching.ErrQueryProfileNotFound when no row exists.
func (s *Store) GetQueryProfile(ctx context.Context, id int64) (*models.QueryProfile, error) {
	var (
		p    models.QueryProfile
		addr addressColumns
	)
	err := s.db.QueryRowContext(ctx, queryProfileSQL, id).Scan(
		&p.ID, &p.OwnerID, &p.FirstName, &p.MiddleName, &p.LastName, &p.CreatedAt,
		&addr.id, &addr.country, &addr.state, &addr.city, &addr.neighborhood, &addr.street, &addr.postal,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query profile %d: %w", id, matching.ErrQueryProfileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select query profile %d: %w", id, err)
	}
	p.Address = addr.toModel()
	return &p, nil
}

func (s *Store) FindCandidatesExact(ctx context.Context, first, last string, excludeAccount int64) ([]models.CandidateRecord, error) {
	return s.queryCandidates(ctx, "exact", exactSQL, first, last, excludeAccount)
}

// FindCandidatesFuzzy uses pg_trgm similarity(). A database without the
// extension yields an Unavailable result rather than an error.
func (s *Store) FindCandidatesFuzzy(ctx context.Context, first, last string, excludeAccount int64, threshold float64) (matching.FuzzyResult, error) {
	var installed bool
	if err := s.db.QueryRowContext(ctx, trigramAvailableSQL).Scan(&installed); err != nil {
		return matching.FuzzyResult{}, fmt.Errorf("check pg_trgm: %w", err)
	}
	if !installed {
		return matching.FuzzyUnavailable("pg_trgm extension not installed"), nil
	}

	records, err := s.queryCandidates(ctx, "fuzzy", fuzzySQL, first, last, excludeAccount, threshold)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == undefinedFunction {
			return matching.FuzzyUnavailable(pqErr.Message), nil
		}
		return matching.FuzzyResult{}, err
	}
	return matching.FuzzyResult{Availability: matching.Available, Candidates: records}, nil
}

func (s *Store) FindCandidatesPartial(ctx context.Context, first, last string, excludeAccount int64, limit int) ([]models.CandidateRecord, error) {
	return s.queryCandidates(ctx, "partial", partialSQL, first, last, excludeAccount, limit)
}

// GetCandidate loads the person record owned by accountID. It returns
// (nil, nil) when the account has no personal info.
func (s *Store) GetCandidate(ctx context.Context, accountID int64) (*models.CandidateRecord, error) {
	records, err := s.queryCandidates(ctx, "by-account", candidateByAccountSQL, accountID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (s *Store) queryCandidates(ctx context.Context, tier, query string, args ...interface{}) ([]models.CandidateRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s candidates: %w", tier, err)
	}
	defer rows.Close()

	var out []models.CandidateRecord
	for rows.Next() {
		var (
			c    models.CandidateRecord
			addr addressColumns
		)
		if err := rows.Scan(
			&c.ID, &c.AccountID, &c.FirstName, &c.MiddleName, &c.LastName, &c.PhoneNumber, &c.CreatedAt,
			&addr.id, &addr.country, &addr.state, &addr.city, &addr.neighborhood, &addr.street, &addr.postal,
		); err != nil {
			return nil, fmt.Errorf("scan %s candidate: %w", tier, err)
		}
		c.Address = addr.toModel()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s candidates: %w", tier, err)
	}
	return out, nil
}

func (s *Store) ClearMatches(ctx context.Context, queryProfileID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, clearMatchesSQL, queryProfileID)
	if err != nil {
		return 0, fmt.Errorf("delete matches for query profile %d: %w", queryProfileID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// BulkInsertMatches writes all rows in one transaction. Pairs that already
// exist are skipped by the unique index; the return value counts only new rows.
func (s *Store) BulkInsertMatches(ctx context.Context, matches []models.MatchResult) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert matches: %w", err)
	}
	defer tx.Rollback()

	var inserted int64
	for start := 0; start < len(matches); start += maxInsertRows {
		end := start + maxInsertRows
		if end > len(matches) {
			end = len(matches)
		}
		query, args := buildInsert(matches[start:end])
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert matches: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert matches: %w", err)
	}
	return int(inserted), nil
}

func buildInsert(rows []models.MatchResult) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(insertMatchesPrefix)
	args := make([]interface{}, 0, len(rows)*6)
	for i, m := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * 6
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, m.QueryProfileID, m.MatchedUserID, m.SimilarityScore, m.IsVerified, m.CreatedAt, m.UpdatedAt)
	}
	b.WriteString(insertMatchesSuffix)
	return b.String(), args
}

type addressColumns struct {
	id                                 sql.NullInt64
	country, state, city, neighborhood sql.NullString
	street, postal                     sql.NullString
}

func (a addressColumns) toModel() *models.Address {
	if !a.id.Valid {
		return nil
	}
	return &models.Address{
		Country:       a.country.String,
		State:         a.state.String,
		City:          a.city.String,
		Neighborhood:  a.neighborhood.String,
		StreetAddress: a.street.String,
		PostalCode:    a.postal.String,
	}
}

var _ matching.Store = (*Store)(nil)
