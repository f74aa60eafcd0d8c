package assignment

import (
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultTieEpsilon is the score difference under which two candidates are tied.
const DefaultTieEpsilon = 0.01

// missingDistance ranks candidates with an unknown distance after every known one.
var missingDistance = math.MaxFloat64

// TieRule compares two tied candidates. A negative result ranks a first.
type TieRule struct {
	Name    string
	Compare func(a, b ScoredEngineer) int
}

// DefaultTieRules is the tie-break cascade, evaluated in order.
var DefaultTieRules = []TieRule{
	{Name: "lower_workload", Compare: func(a, b ScoredEngineer) int {
		return compareInt(a.Workload, b.Workload)
	}},
	{Name: "higher_stock", Compare: func(a, b ScoredEngineer) int {
		return compareInt(b.Stock, a.Stock)
	}},
	{Name: "shorter_distance", Compare: func(a, b ScoredEngineer) int {
		return compareFloat(distanceOrMax(a.DistanceKM), distanceOrMax(b.DistanceKM))
	}},
	{Name: "longest_waiting", Compare: func(a, b ScoredEngineer) int {
		ta, tb := lastOrEpoch(a.LastAssignedAt), lastOrEpoch(b.LastAssignedAt)
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		}
		return 0
	}},
	{Name: "engineer_id", Compare: func(a, b ScoredEngineer) int {
		return strings.Compare(a.Engineer.ID, b.Engineer.ID)
	}},
}

// TieBreaker orders candidates by score, falling back to Rules when two
// scores are within Epsilon.
type TieBreaker struct {
	Epsilon float64
	Rules   []TieRule
}

// NewTieBreaker returns a TieBreaker using the default cascade.
func NewTieBreaker(epsilon float64) TieBreaker {
	return TieBreaker{Epsilon: epsilon, Rules: DefaultTieRules}
}

// Compare returns a negative value when a ranks before b. The epsilon
// window is not transitive, so ordering a slice must go through Rank.
func (t TieBreaker) Compare(a, b ScoredEngineer) int {
	if diff := a.Total - b.Total; math.Abs(diff) > t.Epsilon {
		if diff > 0 {
			return -1
		}
		return 1
	}
	return t.compareRules(a, b)
}

// Rank sorts candidates best first. Candidates are grouped from the top
// score down: a group holds every candidate within Epsilon of its highest
// score and is ordered by Rules. The result does not depend on input order.
func (t TieBreaker) Rank(cands []ScoredEngineer) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Total != cands[j].Total {
			return cands[i].Total > cands[j].Total
		}
		return t.compareRules(cands[i], cands[j]) < 0
	})
	for start := 0; start < len(cands); {
		end := start + 1
		for end < len(cands) && cands[start].Total-cands[end].Total <= t.Epsilon {
			end++
		}
		group := cands[start:end]
		sort.SliceStable(group, func(i, j int) bool {
			return t.compareRules(group[i], group[j]) < 0
		})
		start = end
	}
}

func (t TieBreaker) compareRules(a, b ScoredEngineer) int {
	for _, r := range t.Rules {
		if c := r.Compare(a, b); c != 0 {
			return c
		}
	}
	return 0
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func distanceOrMax(d *float64) float64 {
	if d == nil {
		return missingDistance
	}
	return *d
}

func lastOrEpoch(t *time.Time) time.Time {
	if t == nil {
		return time.Unix(0, 0)
	}
	return *t
}
