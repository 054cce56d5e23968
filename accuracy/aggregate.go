package accuracy

import (
	"math"
	"sort"
	"time"

	models "forecast-backtest/database/models_pkg"
)

// Observation is one evaluated snapshot: a forecast with its realized actual.
type Observation struct {
	Model      string
	LeadDays   int
	TargetDate time.Time
	Forecast   float64
	Actual     float64
}

// GroupStats holds error statistics for one (model, group) cell.
// MAE and MAPE are nil when no qualifying observations exist: a group with
// zero snapshots reports null, never zero.
type GroupStats struct {
	Model string   `json:"model"`
	Group string   `json:"group"`
	N     int      `json:"n"`
	MAE   *float64 `json:"mae"`
	MAPE  *float64 `json:"mape"`
}

// FromSnapshots converts evaluated snapshots into observations. Snapshots
// without an actual are skipped; callers normally filter those at the query
// already.
func FromSnapshots(snaps []models.ForecastSnapshot) []Observation {
	obs := make([]Observation, 0, len(snaps))
	for _, s := range snaps {
		if s.Actual == nil {
			continue
		}
		obs = append(obs, Observation{
			Model:      s.Model,
			LeadDays:   s.LeadDays,
			TargetDate: s.TargetDate,
			Forecast:   s.Forecast,
			Actual:     *s.Actual,
		})
	}
	return obs
}

// ByBracket groups observations by lead-time bracket and computes per
// (model, bracket) statistics, ordered by model then bracket.
func ByBracket(obs []Observation) []GroupStats {
	return aggregate(obs, func(o Observation) string {
		return BracketFor(o.LeadDays)
	}, compareBrackets)
}

// ByWeekday groups observations by the target date's day of week.
func ByWeekday(obs []Observation) []GroupStats {
	return aggregate(obs, func(o Observation) string {
		return o.TargetDate.Weekday().String()
	}, compareWeekdays)
}

// ByMonth groups observations by the target date's month.
func ByMonth(obs []Observation) []GroupStats {
	return aggregate(obs, func(o Observation) string {
		return o.TargetDate.Month().String()
	}, compareMonths)
}

// Overall computes one statistics cell per model across every observation.
func Overall(obs []Observation) []GroupStats {
	return aggregate(obs, func(o Observation) string { return "all" }, func(a, b string) bool { return a < b })
}

type cell struct {
	n         int
	sumAbsErr float64
	nPct      int
	sumPctErr float64
}

func aggregate(obs []Observation, groupOf func(Observation) string, groupLess func(a, b string) bool) []GroupStats {
	cells := make(map[string]map[string]*cell) // model -> group -> cell
	for _, o := range obs {
		group := groupOf(o)
		byGroup, ok := cells[o.Model]
		if !ok {
			byGroup = make(map[string]*cell)
			cells[o.Model] = byGroup
		}
		c, ok := byGroup[group]
		if !ok {
			c = &cell{}
			byGroup[group] = c
		}

		absErr := math.Abs(o.Actual - o.Forecast)
		c.n++
		c.sumAbsErr += absErr
		// Percentage error is undefined against a zero actual
		if o.Actual != 0 {
			c.nPct++
			c.sumPctErr += absErr / math.Abs(o.Actual)
		}
	}

	var stats []GroupStats
	for model, byGroup := range cells {
		for group, c := range byGroup {
			s := GroupStats{Model: model, Group: group, N: c.n}
			if c.n > 0 {
				mae := c.sumAbsErr / float64(c.n)
				s.MAE = &mae
			}
			if c.nPct > 0 {
				mape := c.sumPctErr / float64(c.nPct) * 100
				s.MAPE = &mape
			}
			stats = append(stats, s)
		}
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Model != stats[j].Model {
			return stats[i].Model < stats[j].Model
		}
		return groupLess(stats[i].Group, stats[j].Group)
	})
	return stats
}

func compareBrackets(a, b string) bool {
	ai, errA := BracketIndex(a)
	bi, errB := BracketIndex(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return ai < bi
}

func compareWeekdays(a, b string) bool {
	return weekdayOrder(a) < weekdayOrder(b)
}

func weekdayOrder(name string) int {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d.String() == name {
			return int(d)
		}
	}
	return 7
}

func compareMonths(a, b string) bool {
	return monthOrder(a) < monthOrder(b)
}

func monthOrder(name string) int {
	for m := time.January; m <= time.December; m++ {
		if m.String() == name {
			return int(m)
		}
	}
	return 13
}
