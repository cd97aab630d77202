package responders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/haven-crisis-platform/internal/observability/metrics"
	"github.com/wolfman30/haven-crisis-platform/internal/risk"
	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

var matcherTracer = otel.Tracer("haven/responder-matcher")

// Scoring weights, out of 100. Critical severity additionally adds the
// responder's overall rating on top.
const (
	specialtyWeight    = 40.0
	languageWeight     = 20.0
	geographyWeight    = 15.0
	crisisRatingWeight = 10.0
	capacityWeight     = 10.0
	emergencyBonus     = 5.0

	baseResponseTime     = 5 * time.Minute
	languagePenalty      = 10 * time.Minute
	timezonePenalty      = 5 * time.Minute
	regionPenalty        = 15 * time.Minute
	criticalResponseCap  = 3 * time.Minute
	defaultNextSlotWait  = 15 * time.Minute
	maxMatches           = 5
)

// Criteria describes what the crisis needs from a responder.
type Criteria struct {
	Specialties []string      `json:"specialties"`
	Languages   []string      `json:"languages"`
	Region      string        `json:"region"`
	Timezone    string        `json:"timezone"`
	Severity    risk.Severity `json:"severity"`
}

// Match is an ephemeral ranking result; it is never persisted.
type Match struct {
	Professional         *Professional `json:"professional"`
	Score                float64       `json:"score"`
	EstimatedResponse    time.Duration `json:"estimated_response"`
	Reasoning            []string      `json:"reasoning"`
	ImmediatelyAvailable bool          `json:"immediately_available"`
	NextAvailable        time.Time     `json:"next_available,omitempty"`
}

// Matcher ranks available responders against crisis criteria.
type Matcher struct {
	repo    Repository
	metrics *metrics.CrisisMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewMatcher creates a matcher over the responder repository.
func NewMatcher(repo Repository, m *metrics.CrisisMetrics, logger *logging.Logger) *Matcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Matcher{
		repo:    repo,
		metrics: m,
		logger:  logger.WithComponent("responders"),
		now:     time.Now,
	}
}

// Match returns up to five responders ranked by (score desc, response time
// asc). Candidates without spare capacity are never returned. Returns
// ErrNoCandidates when the pool is empty after filtering.
func (m *Matcher) Match(ctx context.Context, criteria Criteria) ([]Match, error) {
	ctx, span := matcherTracer.Start(ctx, "responders.match")
	defer span.End()
	started := m.now()

	pros, err := m.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("responders: list candidates: %w", err)
	}

	var matches []Match
	for _, p := range pros {
		if !p.HasCapacity() || p.Availability == AvailabilityOffline {
			continue
		}
		matches = append(matches, m.score(p, criteria))
	}
	if len(matches) == 0 {
		return nil, ErrNoCandidates
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].EstimatedResponse < matches[j].EstimatedResponse
	})
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}

	elapsed := m.now().Sub(started)
	m.metrics.ObserveMatchLatency(elapsed.Seconds())
	span.SetAttributes(
		attribute.Int("match.candidates", len(pros)),
		attribute.Int("match.results", len(matches)),
		attribute.String("match.severity", string(criteria.Severity)),
	)
	m.logger.Info("responder match complete",
		"candidates", len(pros),
		"results", len(matches),
		"severity", criteria.Severity,
		"top_score", matches[0].Score,
	)
	return matches, nil
}

func (m *Matcher) score(p *Professional, criteria Criteria) Match {
	now := m.now()
	var (
		score     float64
		reasoning []string
		eta       = baseResponseTime
	)

	if frac := overlapFraction(criteria.Specialties, p.Specialties); frac > 0 || len(criteria.Specialties) == 0 {
		pts := specialtyWeight
		if len(criteria.Specialties) > 0 {
			pts = frac * specialtyWeight
		}
		score += pts
		if pts > 0 {
			reasoning = append(reasoning, fmt.Sprintf("specialty match %.0f/%.0f", pts, specialtyWeight))
		}
	}

	if len(criteria.Languages) == 0 || overlapFraction(criteria.Languages, p.Languages) > 0 {
		pts := languageWeight
		if len(criteria.Languages) > 0 {
			pts = overlapFraction(criteria.Languages, p.Languages) * languageWeight
		}
		score += pts
		reasoning = append(reasoning, "language covered")
	} else {
		eta += languagePenalty
		reasoning = append(reasoning, "language mismatch, interpreter delay")
	}

	switch {
	case criteria.Region == "" || strings.EqualFold(criteria.Region, p.Region):
		score += geographyWeight
		reasoning = append(reasoning, "same region")
	case criteria.Timezone != "" && strings.EqualFold(criteria.Timezone, p.Timezone):
		score += geographyWeight * 2 / 3
		eta += timezonePenalty
		reasoning = append(reasoning, "same timezone")
	default:
		eta += regionPenalty
		reasoning = append(reasoning, "remote region")
	}

	score += (p.CrisisRating / 10.0) * crisisRatingWeight
	if p.MaxCases > 0 {
		spare := float64(p.MaxCases-p.CurrentCases) / float64(p.MaxCases)
		score += spare * capacityWeight
	}
	if p.EmergencyContact {
		score += emergencyBonus
		reasoning = append(reasoning, "emergency contact")
	}

	immediate := p.Availability == AvailabilityAvailable && p.InSchedule(now)
	var nextAvailable time.Time
	if !immediate {
		nextAvailable = p.NextWindowStart(now)
		wait := defaultNextSlotWait
		if !nextAvailable.IsZero() {
			wait = nextAvailable.Sub(now)
		}
		eta += wait
		reasoning = append(reasoning, "not immediately available")
	}

	if criteria.Severity == risk.SeverityCritical {
		score += p.Rating
		if eta > criticalResponseCap {
			eta = criticalResponseCap
		}
		reasoning = append(reasoning, "critical response path")
	}

	if score > 100 {
		score = 100
	}
	return Match{
		Professional:         p,
		Score:                score,
		EstimatedResponse:    eta,
		Reasoning:            reasoning,
		ImmediatelyAvailable: immediate,
		NextAvailable:        nextAvailable,
	}
}

func overlapFraction(needed, have []string) float64 {
	if len(needed) == 0 {
		return 0
	}
	haveSet := make(map[string]struct{}, len(have))
	for _, h := range have {
		haveSet[strings.ToLower(h)] = struct{}{}
	}
	covered := 0
	for _, n := range needed {
		if _, ok := haveSet[strings.ToLower(n)]; ok {
			covered++
		}
	}
	return float64(covered) / float64(len(needed))
}
