package accuracy

import "sort"

// ModelWeight is one model's share of the ensemble blend within a bracket,
// derived from inverse-MAPE normalization.
type ModelWeight struct {
	Model   string  `json:"model"`
	Bracket string  `json:"lead_bracket"`
	MAPE    float64 `json:"mape"`
	Weight  float64 `json:"weight"`
}

// ProductionWeight is one model's entry in the single production-wide weight
// set for a metric.
type ProductionWeight struct {
	MAPE        float64 `json:"mape"`
	Weight      float64 `json:"weight"`
	SampleCount int     `json:"sample_count"`
}

// ProductionWeightSet is the non-bracketed weight set for a metric.
type ProductionWeightSet struct {
	MetricCode   string                      `json:"metric_code"`
	IsPaceMetric bool                        `json:"is_pace_metric"`
	Models       map[string]ProductionWeight `json:"models"`
	TotalSamples int                         `json:"total_samples"`
}

// BracketWeights derives per-bracket blend weights from bracketed accuracy
// statistics. Within each bracket, weight_i = (1/mape_i) / Σ(1/mape_j) over
// the models present. Models with null or zero MAPE are excluded from the
// normalization entirely rather than given an undefined weight; a model with
// no qualifying snapshots in a bracket does not appear in that bracket's set.
func BracketWeights(stats []GroupStats) []ModelWeight {
	invSums := make(map[string]float64)
	for _, s := range stats {
		if s.MAPE == nil || *s.MAPE <= 0 {
			continue
		}
		invSums[s.Group] += 1 / *s.MAPE
	}

	var weights []ModelWeight
	for _, s := range stats {
		if s.MAPE == nil || *s.MAPE <= 0 {
			continue
		}
		weights = append(weights, ModelWeight{
			Model:   s.Model,
			Bracket: s.Group,
			MAPE:    *s.MAPE,
			Weight:  (1 / *s.MAPE) / invSums[s.Group],
		})
	}

	sort.Slice(weights, func(i, j int) bool {
		if weights[i].Bracket != weights[j].Bracket {
			return compareBrackets(weights[i].Bracket, weights[j].Bracket)
		}
		return weights[i].Model < weights[j].Model
	})
	return weights
}

// ProductionWeights derives the single production-wide weight set for a
// metric from all of its observations, without bracket segmentation.
func ProductionWeights(metricCode string, isPace bool, obs []Observation) ProductionWeightSet {
	set := ProductionWeightSet{
		MetricCode:   metricCode,
		IsPaceMetric: isPace,
		Models:       make(map[string]ProductionWeight),
	}

	overall := Overall(obs)
	invSum := 0.0
	for _, s := range overall {
		set.TotalSamples += s.N
		if s.MAPE != nil && *s.MAPE > 0 {
			invSum += 1 / *s.MAPE
		}
	}
	if invSum == 0 {
		return set
	}

	for _, s := range overall {
		if s.MAPE == nil || *s.MAPE <= 0 {
			continue
		}
		set.Models[s.Model] = ProductionWeight{
			MAPE:        *s.MAPE,
			Weight:      (1 / *s.MAPE) / invSum,
			SampleCount: s.N,
		}
	}
	return set
}

// WeightsByModel flattens a production weight set into a model→weight map,
// the shape the blended forecaster consumes.
func WeightsByModel(set ProductionWeightSet) map[string]float64 {
	out := make(map[string]float64, len(set.Models))
	for model, w := range set.Models {
		out[model] = w.Weight
	}
	return out
}
