package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matching-workers/internal/matching"
	"matching-workers/internal/matching/candidates"
	"matching-workers/internal/models"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newEngine(settings matching.Settings) *Engine {
	return NewEngine(settings, WithClock(func() time.Time { return fixedNow }))
}

func daysAgo(d int) time.Time {
	return fixedNow.Add(-time.Duration(d) * 24 * time.Hour)
}

func cand(account int64, first, last string, tier models.MatchType, created time.Time, addr *models.Address) candidates.Candidate {
	return candidates.Candidate{
		Record: models.CandidateRecord{
			ID: account, AccountID: account, FirstName: first, LastName: last,
			CreatedAt: created, Address: addr,
		},
		MatchType: tier,
	}
}

func TestScore_ExactRecentNoAddress(t *testing.T) {
	q := &models.QueryProfile{ID: 1, OwnerID: 50, FirstName: "Juan", LastName: "Garcia"}
	c := cand(7, "Juan", "Garcia", models.MatchTypeExact, daysAgo(5), nil)

	out := newEngine(matching.DefaultSettings()).Score(q, []candidates.Candidate{c})
	require.Len(t, out, 1)

	assert.InDelta(t, 0.47, out[0].Score, 1e-9)
	assert.Equal(t, 1.0, out[0].Breakdown[FactorName])
	assert.Equal(t, 1.0, out[0].Breakdown[FactorTemporal])
	assert.Equal(t, 0.0, out[0].Breakdown[FactorPhone])
	_, hasLoc := out[0].Breakdown[FactorLocation]
	assert.False(t, hasLoc)
}

func TestScore_ExactWithAccentOnlyCityDifference(t *testing.T) {
	qa := &models.Address{Country: "Colombia", State: "Antioquia", City: "Medellin", Neighborhood: "Laureles"}
	ca := &models.Address{Country: "Colombia", State: "Antioquia", City: "Medellín", Neighborhood: "Laureles"}
	q := &models.QueryProfile{ID: 1, OwnerID: 50, FirstName: "Juan", LastName: "Garcia", Address: qa}
	c := cand(7, "juan", "garcia", models.MatchTypeExact, daysAgo(5), ca)

	out := newEngine(matching.DefaultSettings()).Score(q, []candidates.Candidate{c})
	require.Len(t, out, 1)
	assert.InDelta(t, 1.0, out[0].Breakdown[FactorLocation], 1e-9)
	assert.InDelta(t, 0.45+0.25+0.02, out[0].Score, 1e-9)
}

func TestScore_FuzzyNameWeighting(t *testing.T) {
	q := &models.QueryProfile{ID: 1, OwnerID: 50, FirstName: "Juan", LastName: "Garcia"}
	// last name identical, first name shares nothing
	c := cand(7, "Pedro", "Garcia", models.MatchTypePartial, daysAgo(400), nil)

	out := newEngine(matching.DefaultSettings()).Score(q, []candidates.Candidate{c})
	require.Len(t, out, 1)

	name := out[0].Breakdown[FactorName]
	assert.GreaterOrEqual(t, name, 0.6)
	assert.Less(t, name, 0.7)
	assert.InDelta(t, name*0.25+0.1*0.02, out[0].Score, 1e-9)
}

func TestTemporalScore(t *testing.T) {
	tests := []struct {
		days int
		want float64
	}{
		{0, 1}, {30, 1}, {31, 0.5}, {365, 0.5}, {366, 0.1}, {1825, 0.1}, {1826, 0}, {-3, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TemporalScore(daysAgo(tt.days), fixedNow), "days=%d", tt.days)
	}
}

func TestScore_OrderAndTieBreak(t *testing.T) {
	q := &models.QueryProfile{ID: 1, OwnerID: 50, FirstName: "Juan", LastName: "Garcia"}
	in := []candidates.Candidate{
		cand(30, "Juan", "Garcia", models.MatchTypeExact, daysAgo(5), nil),
		cand(10, "Juan", "Garcia", models.MatchTypeExact, daysAgo(5), nil),
		cand(20, "Juan", "Perez", models.MatchTypePartial, daysAgo(5), nil),
		cand(5, "Juan", "Garcia", models.MatchTypeExact, daysAgo(3000), nil),
	}

	out := newEngine(matching.DefaultSettings()).Score(q, in)
	require.Len(t, out, 4)

	ids := []int64{out[0].AccountID(), out[1].AccountID(), out[2].AccountID(), out[3].AccountID()}
	assert.Equal(t, []int64{10, 30, 5, 20}, ids)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
	}
}

func TestScore_MaxResults(t *testing.T) {
	settings := matching.DefaultSettings()
	settings.MaxResults = 2
	q := &models.QueryProfile{ID: 1, OwnerID: 50, FirstName: "Juan", LastName: "Garcia"}
	in := []candidates.Candidate{
		cand(1, "Juan", "Garcia", models.MatchTypeExact, daysAgo(1), nil),
		cand(2, "Juan", "Garcia", models.MatchTypeExact, daysAgo(1), nil),
		cand(3, "Juan", "Garcia", models.MatchTypeExact, daysAgo(1), nil),
	}

	assert.Len(t, newEngine(settings).Score(q, in), 2)
}

func TestScore_AlwaysWithinUnitInterval(t *testing.T) {
	settings := matching.DefaultSettings()
	// inflated weights must still be capped at 1
	settings.Weights = matching.Weights{ExactName: 1, FuzzyName: 1, Location: 1, Phone: 1, Temporal: 1}
	engine := newEngine(settings)

	names := []string{"", "Juan", "Juana", "Garcia", "García", "Lopez", "Ana María"}
	cities := []string{"", "Bogotá", "Bogota", "Cali", "Medellín"}
	tiers := []models.MatchType{models.MatchTypeExact, models.MatchTypeFuzzy, models.MatchTypePartial}
	r := rand.New(rand.NewSource(42))

	q := &models.QueryProfile{ID: 1, OwnerID: 1, FirstName: "Juan", LastName: "Garcia",
		Address: &models.Address{Country: "Colombia", City: "Bogota"}}
	var in []candidates.Candidate
	for i := 0; i < 200; i++ {
		addr := &models.Address{Country: "Colombia", City: cities[r.Intn(len(cities))]}
		if r.Intn(3) == 0 {
			addr = nil
		}
		in = append(in, cand(int64(i+2), names[r.Intn(len(names))], names[r.Intn(len(names))],
			tiers[r.Intn(len(tiers))], daysAgo(r.Intn(4000)-100), addr))
	}

	for _, sc := range engine.Score(q, in) {
		assert.GreaterOrEqual(t, sc.Score, 0.0)
		assert.LessOrEqual(t, sc.Score, 1.0)
	}
	for _, sc := range newEngine(matching.DefaultSettings()).Score(q, in) {
		assert.GreaterOrEqual(t, sc.Score, 0.0)
		assert.LessOrEqual(t, sc.Score, 1.0)
	}
}
