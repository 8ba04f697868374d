package postgres

import (
	"context"
	"fmt"
	"time"
)

// Profiles with no matches at all, or with at least one match created before
// the staleness cutoff.
const profilesNeedingMatchingSQL = `
	SELECT DISTINCT sp.id
	FROM search_profiles sp
	LEFT JOIN matches m ON m.search_profile_id = sp.id
	WHERE m.id IS NULL OR m.created_at < $1
	ORDER BY sp.id
	LIMIT $2`

// ProfilesNeedingMatching returns up to limit query profile ids due for a run.
func (s *Store) ProfilesNeedingMatching(ctx context.Context, staleBefore time.Time, limit int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, profilesNeedingMatchingSQL, staleBefore.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("select profiles needing matching: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan profile id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
