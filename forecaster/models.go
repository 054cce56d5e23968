package forecaster

import (
	"fmt"
	"time"
)

// SeasonalNaive forecasts each stay date with the realized value from 52
// weeks earlier, preserving the day of week. Falls back to the trailing
// 28-day mean when last year's date is missing from history.
type SeasonalNaive struct {
	name string
}

func (f *SeasonalNaive) Name() string { return f.name }

func (f *SeasonalNaive) Forecast(history []Point, perception time.Time, targets []time.Time) ([]float64, error) {
	if err := validateInputs(history, targets); err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}

	idx := indexHistory(history)
	fallback, hasFallback := trailingMean(history, perception, 28)

	out := make([]float64, len(targets))
	for i, target := range targets {
		anchor := target.AddDate(0, 0, -364) // 52 weeks keeps the weekday
		if v, ok := lookupNear(idx, anchor, 6); ok {
			out[i] = v
			continue
		}
		if !hasFallback {
			return nil, fmt.Errorf("%s: no history near %s and no trailing window", f.name, anchor.Format("2006-01-02"))
		}
		out[i] = fallback
	}
	return out, nil
}

// MovingAverage forecasts each stay date with the mean of the same weekday
// over the eight weeks before perception.
type MovingAverage struct {
	name string
}

func (f *MovingAverage) Name() string { return f.name }

func (f *MovingAverage) Forecast(history []Point, perception time.Time, targets []time.Time) ([]float64, error) {
	if err := validateInputs(history, targets); err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}

	// Per-weekday means over the trailing 8 weeks
	sums := make(map[time.Weekday]float64)
	counts := make(map[time.Weekday]int)
	cutoff := perception.AddDate(0, 0, -56)
	for _, p := range history {
		if p.Date.Before(cutoff) || !p.Date.Before(perception) {
			continue
		}
		sums[p.Date.Weekday()] += p.Value
		counts[p.Date.Weekday()]++
	}

	fallback, hasFallback := trailingMean(history, perception, 28)

	out := make([]float64, len(targets))
	for i, target := range targets {
		if n := counts[target.Weekday()]; n > 0 {
			out[i] = sums[target.Weekday()] / float64(n)
			continue
		}
		if !hasFallback {
			return nil, fmt.Errorf("%s: no weekday history before %s", f.name, perception.Format("2006-01-02"))
		}
		out[i] = fallback
	}
	return out, nil
}

// Pickup forecasts pace metrics: last year's value for the stay date scaled
// by the current booking pace, approximated as the ratio of the trailing
// 28-day level to the same window one year earlier. Valid for pace metrics
// only; the registry enforces that.
type Pickup struct {
	name string
}

func (f *Pickup) Name() string { return f.name }

func (f *Pickup) Forecast(history []Point, perception time.Time, targets []time.Time) ([]float64, error) {
	if err := validateInputs(history, targets); err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}

	idx := indexHistory(history)

	pace := 1.0
	recent, okRecent := trailingMean(history, perception, 28)
	lastYear, okLastYear := trailingMean(history, perception.AddDate(0, 0, -364), 28)
	if okRecent && okLastYear && lastYear > 0 {
		pace = recent / lastYear
	}

	fallback, hasFallback := trailingMean(history, perception, 28)

	out := make([]float64, len(targets))
	for i, target := range targets {
		anchor := target.AddDate(0, 0, -364)
		if v, ok := lookupNear(idx, anchor, 6); ok {
			out[i] = v * pace
			continue
		}
		if !hasFallback {
			return nil, fmt.Errorf("%s: no history near %s", f.name, anchor.Format("2006-01-02"))
		}
		out[i] = fallback
	}
	return out, nil
}

// Blended combines child model forecasts with the production weight set.
// A child missing from the weight map contributes nothing; only when no
// child has a usable weight does the blend degrade to a plain average.
type Blended struct {
	name     string
	children []Forecaster
	weights  map[string]float64
}

func (f *Blended) Name() string { return f.name }

func (f *Blended) Forecast(history []Point, perception time.Time, targets []time.Time) ([]float64, error) {
	if err := validateInputs(history, targets); err != nil {
		return nil, fmt.Errorf("%s: %w", f.name, err)
	}
	if len(f.children) == 0 {
		return nil, fmt.Errorf("%s: no child models", f.name)
	}

	childValues := make([][]float64, len(f.children))
	childWeights := make([]float64, len(f.children))
	weightSum := 0.0
	for i, child := range f.children {
		values, err := child.Forecast(history, perception, targets)
		if err != nil {
			return nil, fmt.Errorf("%s: child %s: %w", f.name, child.Name(), err)
		}
		childValues[i] = values

		w, ok := f.weights[child.Name()]
		if !ok || w <= 0 {
			w = 0
		}
		childWeights[i] = w
		weightSum += w
	}

	// Equal weights when the calculator has nothing for these children yet
	if weightSum == 0 {
		for i := range childWeights {
			childWeights[i] = 1
		}
		weightSum = float64(len(f.children))
	}

	out := make([]float64, len(targets))
	for t := range targets {
		v := 0.0
		for i := range f.children {
			v += childValues[i][t] * childWeights[i]
		}
		out[t] = v / weightSum
	}
	return out, nil
}

// lookupNear finds a history value on the anchor date or up to maxBack days
// earlier, covering gaps from closures or missing extracts.
func lookupNear(idx map[string]float64, anchor time.Time, maxBack int) (float64, bool) {
	for back := 0; back <= maxBack; back++ {
		if v, ok := idx[dayKey(anchor.AddDate(0, 0, -back))]; ok {
			return v, true
		}
	}
	return 0, false
}
