package accuracy

import (
	"math"
	"testing"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestBracketWeightsSumToOne(t *testing.T) {
	stats := []GroupStats{
		{Model: "seasonal_naive", Group: "0-7", N: 40, MAPE: floatPtr(4.0)},
		{Model: "moving_average", Group: "0-7", N: 40, MAPE: floatPtr(6.0)},
		{Model: "pickup", Group: "0-7", N: 40, MAPE: floatPtr(3.0)},
		{Model: "seasonal_naive", Group: "8-14", N: 35, MAPE: floatPtr(5.0)},
		{Model: "moving_average", Group: "8-14", N: 35, MAPE: floatPtr(5.0)},
	}

	weights := BracketWeights(stats)

	sums := make(map[string]float64)
	for _, w := range weights {
		sums[w.Bracket] += w.Weight
	}
	for bracket, sum := range sums {
		if math.Abs(sum-1.0) > 1e-6 {
			t.Errorf("bracket %s weights sum to %v, want 1.0", bracket, sum)
		}
	}

	// Lower MAPE must earn the higher weight
	byModel := make(map[string]float64)
	for _, w := range weights {
		if w.Bracket == "0-7" {
			byModel[w.Model] = w.Weight
		}
	}
	if byModel["pickup"] <= byModel["seasonal_naive"] || byModel["seasonal_naive"] <= byModel["moving_average"] {
		t.Errorf("expected pickup > seasonal_naive > moving_average in 0-7, got %v", byModel)
	}
}

func TestBracketWeightsExcludeNullAndZeroMape(t *testing.T) {
	stats := []GroupStats{
		{Model: "good", Group: "0-7", N: 10, MAPE: floatPtr(5.0)},
		{Model: "perfect", Group: "0-7", N: 10, MAPE: floatPtr(0.0)}, // zero mape: excluded
		{Model: "empty", Group: "0-7", N: 0, MAPE: nil},              // no data: excluded
	}

	weights := BracketWeights(stats)
	if len(weights) != 1 {
		t.Fatalf("expected 1 weight entry, got %d", len(weights))
	}
	if weights[0].Model != "good" {
		t.Errorf("expected only 'good' in the weight set, got %s", weights[0].Model)
	}
	if math.Abs(weights[0].Weight-1.0) > 1e-6 {
		t.Errorf("sole model should carry weight 1.0, got %v", weights[0].Weight)
	}
}

func TestBracketWeightsAbsentModelAbsentFromBracket(t *testing.T) {
	stats := []GroupStats{
		{Model: "a", Group: "0-7", N: 10, MAPE: floatPtr(4.0)},
		{Model: "b", Group: "0-7", N: 10, MAPE: floatPtr(4.0)},
		{Model: "a", Group: "90+", N: 5, MAPE: floatPtr(8.0)},
	}

	weights := BracketWeights(stats)
	for _, w := range weights {
		if w.Bracket == "90+" && w.Model == "b" {
			t.Errorf("model b has no snapshots in 90+ and must not appear there")
		}
	}
}

func TestProductionWeights(t *testing.T) {
	obs := []Observation{
		// model a: errors 10/100 -> mape 10
		{Model: "a", LeadDays: 5, Forecast: 110, Actual: 100},
		// model b: errors 5/100 -> mape 5
		{Model: "b", LeadDays: 5, Forecast: 105, Actual: 100},
	}

	set := ProductionWeights("rooms_sold", true, obs)

	if !set.IsPaceMetric {
		t.Error("expected pace metric flag carried through")
	}
	if set.TotalSamples != 2 {
		t.Errorf("expected total_samples 2, got %d", set.TotalSamples)
	}

	sum := 0.0
	for _, w := range set.Models {
		sum += w.Weight
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("production weights sum to %v, want 1.0", sum)
	}

	// b is twice as accurate as a: weight_b = (1/5)/(1/5+1/10) = 2/3
	if math.Abs(set.Models["b"].Weight-2.0/3.0) > 1e-9 {
		t.Errorf("expected weight 2/3 for b, got %v", set.Models["b"].Weight)
	}
	if set.Models["a"].SampleCount != 1 {
		t.Errorf("expected sample_count 1 for a, got %d", set.Models["a"].SampleCount)
	}
}

func TestProductionWeightsEmpty(t *testing.T) {
	set := ProductionWeights("revenue", true, nil)
	if len(set.Models) != 0 {
		t.Errorf("expected empty model map, got %d entries", len(set.Models))
	}
	if set.TotalSamples != 0 {
		t.Errorf("expected 0 total samples, got %d", set.TotalSamples)
	}
}
