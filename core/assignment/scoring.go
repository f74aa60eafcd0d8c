package assignment

import (
	"math"
	"time"

	"github.com/kilianp07/fieldassign/core/geo"
	"github.com/kilianp07/fieldassign/core/model"
)

// neutralProximity is the proximity score when a distance cannot be computed.
const neutralProximity = 50.0

// Scorer computes the four sub-scores of a (call, engineer) pair.
type Scorer struct {
	Resolver            geo.LocationResolver
	MaxDistanceKM       float64
	MaxCallsPerEngineer int
	IdealStock          int
	OverdueBoost        float64
	TodayBoost          float64
}

// NewScorer builds a scorer from the configuration.
func NewScorer(cfg Config) Scorer {
	overdue, today := cfg.Boosts()
	return Scorer{
		Resolver:            cfg.Resolver(),
		MaxDistanceKM:       cfg.MaxDistanceKM,
		MaxCallsPerEngineer: cfg.MaxCallsPerEngineer,
		IdealStock:          cfg.IdealStock,
		OverdueBoost:        overdue,
		TodayBoost:          today,
	}
}

// Score evaluates engineer e for call against the simulated state.
func (s Scorer) Score(call model.Call, e model.Engineer, st *SimulatedState, w Weights, now time.Time) ScoredEngineer {
	var dist *float64
	if s.Resolver != nil {
		if d, ok := geo.Distance(call.Location, s.Resolver.ResolveEngineerLocation(e, now)); ok {
			dist = &d
		}
	}
	workload := st.Workload(e.ID)
	stock := st.Stock(e.ID, call.BankID)
	sub := SubScores{
		Proximity: ProximityScore(dist, s.MaxDistanceKM),
		Priority:  PriorityScore(call, now, s.OverdueBoost, s.TodayBoost),
		Workload:  WorkloadScore(workload, s.MaxCallsPerEngineer),
		Stock:     StockScore(call.Type, stock, s.IdealStock),
	}
	se := ScoredEngineer{
		Engineer:   e,
		Scores:     sub,
		Total:      sub.Total(w),
		DistanceKM: dist,
		Workload:   workload,
		Stock:      stock,
	}
	if t, ok := st.LastAssigned(e.ID); ok {
		se.LastAssignedAt = &t
	}
	return se
}

// ProximityScore decays linearly from 100 at the site to 0 at maxKM.
func ProximityScore(distanceKM *float64, maxKM float64) float64 {
	if distanceKM == nil {
		return neutralProximity
	}
	if maxKM <= 0 {
		return 0
	}
	return math.Max(0, 100*(1-*distanceKM/maxKM))
}

// PriorityScore maps the priority onto 25..100 and boosts calls scheduled
// for today or earlier, capped at 100.
func PriorityScore(call model.Call, now time.Time, overdueBoost, todayBoost float64) float64 {
	score := float64(call.Priority.Weight()) / 4 * 100
	if call.ScheduledDate != nil {
		switch day := compareDay(*call.ScheduledDate, now); {
		case day < 0:
			score += overdueBoost
		case day == 0:
			score += todayBoost
		}
	}
	return math.Min(100, score)
}

// WorkloadScore decays linearly from 100 with no active calls to 0 at the cap.
func WorkloadScore(activeCalls, maxCalls int) float64 {
	if maxCalls <= 0 {
		return 0
	}
	return math.Max(0, 100*(1-float64(activeCalls)/float64(maxCalls)))
}

// StockScore is 100 for call types that need no device; otherwise it grows
// linearly with stock and saturates at the ideal level.
func StockScore(t model.CallType, stock, ideal int) float64 {
	if !t.RequiresDevice() {
		return 100
	}
	if stock <= 0 {
		return 0
	}
	if ideal <= 0 || stock >= ideal {
		return 100
	}
	return 100 * float64(stock) / float64(ideal)
}

// compareDay compares the calendar days of a and b in b's location.
func compareDay(a, b time.Time) int {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	switch {
	case da.Before(db):
		return -1
	case da.After(db):
		return 1
	}
	return 0
}
