package responders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/haven-crisis-platform/internal/risk"
)

// Tuesday 14:00 UTC, inside the 09:00-17:00 windows used below.
var tuesdayAfternoon = time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)

func weekdaySchedule() Schedule {
	s := Schedule{}
	for d := time.Monday; d <= time.Friday; d++ {
		s[d] = []Window{{Start: "09:00", End: "17:00"}}
	}
	return s
}

func seedRepo(t *testing.T, pros ...*Professional) *InMemoryRepository {
	t.Helper()
	repo := NewInMemoryRepository()
	for _, p := range pros {
		require.NoError(t, repo.Upsert(context.Background(), p))
	}
	return repo
}

func fixedMatcher(repo Repository) *Matcher {
	m := NewMatcher(repo, nil, nil)
	m.now = func() time.Time { return tuesdayAfternoon }
	return m
}

func TestMatchRanksSpecialistFirst(t *testing.T) {
	specialist := &Professional{
		ID: "p1", Name: "Specialist", Specialties: []string{"suicide_prevention"},
		Languages: []string{"en"}, Region: "us-east", Schedule: weekdaySchedule(),
		MaxCases: 5, CrisisRating: 9, Rating: 4.8,
		Status: StatusActive, Availability: AvailabilityAvailable,
	}
	generalist := &Professional{
		ID: "p2", Name: "Generalist", Specialties: []string{"general_counseling"},
		Languages: []string{"en"}, Region: "us-east", Schedule: weekdaySchedule(),
		MaxCases: 5, CrisisRating: 6, Rating: 4.0,
		Status: StatusActive, Availability: AvailabilityAvailable,
	}
	m := fixedMatcher(seedRepo(t, generalist, specialist))

	matches, err := m.Match(context.Background(), Criteria{
		Specialties: []string{"suicide_prevention"},
		Languages:   []string{"en"},
		Region:      "us-east",
		Severity:    risk.SeverityHigh,
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "p1", matches[0].Professional.ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestMatchExcludesFullCaseloads(t *testing.T) {
	full := &Professional{
		ID: "p1", Name: "Full", Languages: []string{"en"}, Schedule: weekdaySchedule(),
		CurrentCases: 3, MaxCases: 3,
		Status: StatusActive, Availability: AvailabilityAvailable,
	}
	free := &Professional{
		ID: "p2", Name: "Free", Languages: []string{"en"}, Schedule: weekdaySchedule(),
		CurrentCases: 0, MaxCases: 3,
		Status: StatusActive, Availability: AvailabilityAvailable,
	}
	m := fixedMatcher(seedRepo(t, full, free))

	matches, err := m.Match(context.Background(), Criteria{Severity: risk.SeverityMedium})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "p2", matches[0].Professional.ID)
	for _, match := range matches {
		assert.Less(t, match.Professional.CurrentCases, match.Professional.MaxCases)
	}
}

func TestMatchExcludesInactiveAndOffline(t *testing.T) {
	suspended := &Professional{
		ID: "p1", Schedule: weekdaySchedule(), MaxCases: 3,
		Status: StatusSuspended, Availability: AvailabilityAvailable,
	}
	offline := &Professional{
		ID: "p2", Schedule: weekdaySchedule(), MaxCases: 3,
		Status: StatusActive, Availability: AvailabilityOffline,
	}
	m := fixedMatcher(seedRepo(t, suspended, offline))

	_, err := m.Match(context.Background(), Criteria{Severity: risk.SeverityLow})
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestMatchSortedByScoreThenResponseTime(t *testing.T) {
	var pros []*Professional
	for i, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		pros = append(pros, &Professional{
			ID: id, Languages: []string{"en"}, Region: "us-east",
			Schedule: weekdaySchedule(), MaxCases: 5, CrisisRating: float64(4 + i),
			Status: StatusActive, Availability: AvailabilityAvailable,
		})
	}
	m := fixedMatcher(seedRepo(t, pros...))

	matches, err := m.Match(context.Background(), Criteria{Languages: []string{"en"}, Region: "us-east"})
	require.NoError(t, err)
	assert.Len(t, matches, 5, "returns at most five matches")

	for i := 1; i < len(matches); i++ {
		prev, cur := matches[i-1], matches[i]
		ok := prev.Score > cur.Score ||
			(prev.Score == cur.Score && prev.EstimatedResponse <= cur.EstimatedResponse)
		assert.True(t, ok, "matches must be sorted by score desc then response time asc")
	}
}

func TestCriticalSeverityCapsResponseTime(t *testing.T) {
	remote := &Professional{
		ID: "p1", Languages: []string{"fr"}, Region: "eu-west",
		Schedule: weekdaySchedule(), MaxCases: 3, Rating: 4.5,
		Status: StatusActive, Availability: AvailabilityAvailable,
	}
	m := fixedMatcher(seedRepo(t, remote))

	matches, err := m.Match(context.Background(), Criteria{
		Languages: []string{"en"},
		Region:    "us-east",
		Severity:  risk.SeverityCritical,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.LessOrEqual(t, matches[0].EstimatedResponse, 3*time.Minute)
}

func TestResponseTimePenalties(t *testing.T) {
	local := &Professional{
		ID: "p1", Languages: []string{"en"}, Region: "us-east",
		Schedule: weekdaySchedule(), MaxCases: 3,
		Status: StatusActive, Availability: AvailabilityAvailable,
	}
	mismatched := &Professional{
		ID: "p2", Languages: []string{"fr"}, Region: "eu-west",
		Schedule: weekdaySchedule(), MaxCases: 3,
		Status: StatusActive, Availability: AvailabilityAvailable,
	}
	m := fixedMatcher(seedRepo(t, local, mismatched))

	matches, err := m.Match(context.Background(), Criteria{Languages: []string{"en"}, Region: "us-east"})
	require.NoError(t, err)
	require.Len(t, matches, 2)

	byID := map[string]Match{}
	for _, match := range matches {
		byID[match.Professional.ID] = match
	}
	assert.Equal(t, 5*time.Minute, byID["p1"].EstimatedResponse)
	// base 5m + language 10m + region 15m
	assert.Equal(t, 30*time.Minute, byID["p2"].EstimatedResponse)
	assert.True(t, byID["p1"].ImmediatelyAvailable)
}

func TestBusyResponderAccruesWait(t *testing.T) {
	busy := &Professional{
		ID: "p1", Languages: []string{"en"}, Region: "us-east",
		Schedule: weekdaySchedule(), MaxCases: 3,
		Status: StatusActive, Availability: AvailabilityBusy,
	}
	m := fixedMatcher(seedRepo(t, busy))

	matches, err := m.Match(context.Background(), Criteria{Languages: []string{"en"}, Region: "us-east"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.False(t, matches[0].ImmediatelyAvailable)
	assert.Greater(t, matches[0].EstimatedResponse, 5*time.Minute)
}

func TestAssignNeverExceedsMaxCases(t *testing.T) {
	repo := seedRepo(t, &Professional{
		ID: "p1", MaxCases: 10, Status: StatusActive, Availability: AvailabilityAvailable,
	})

	const attempts = 100
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Assign(context.Background(), "p1")
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrAtCapacity)
		}
	}
	assert.Equal(t, 10, succeeded)

	p, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.CurrentCases)
	assert.LessOrEqual(t, p.CurrentCases, p.MaxCases)
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	repo := seedRepo(t, &Professional{ID: "p1", MaxCases: 3, Status: StatusActive})

	require.NoError(t, repo.Assign(context.Background(), "p1"))
	require.NoError(t, repo.Release(context.Background(), "p1"))
	require.NoError(t, repo.Release(context.Background(), "p1"))

	p, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentCases)
}

func TestInSchedule(t *testing.T) {
	p := &Professional{Schedule: weekdaySchedule()}

	assert.True(t, p.InSchedule(tuesdayAfternoon))
	assert.False(t, p.InSchedule(time.Date(2026, 8, 25, 20, 0, 0, 0, time.UTC)))
	// Saturday has no windows.
	assert.False(t, p.InSchedule(time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)))
}
