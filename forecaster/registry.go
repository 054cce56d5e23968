package forecaster

import (
	"fmt"
	"sort"
	"strings"
)

// PostCovidSuffix marks model variants trained without covid-period history.
// A suffixed variant is a distinct model identifier with its own snapshots,
// accuracy rows, and weights, exactly as the dashboards treat it.
const PostCovidSuffix = "_postcovid"

// Spec describes a resolved model identifier.
type Spec struct {
	Name      string // full identifier, suffix included
	Base      string // identifier without the postcovid suffix
	PostCovid bool   // train on post-covid-window history only
	PaceOnly  bool   // valid for pace metrics only
}

var baseModels = map[string]struct{ paceOnly bool }{
	"seasonal_naive": {paceOnly: false},
	"moving_average": {paceOnly: false},
	"pickup":         {paceOnly: true},
	"blended":        {paceOnly: false},
}

// ModelNames lists every registered model identifier, postcovid variants
// included, sorted.
func ModelNames() []string {
	names := make([]string, 0, len(baseModels)*2)
	for base := range baseModels {
		names = append(names, base, base+PostCovidSuffix)
	}
	sort.Strings(names)
	return names
}

// Resolve validates a model identifier against a metric and returns its spec.
// Pickup-based models against a non-pace metric are a validation error, not a
// silent no-op.
func Resolve(name string, metric Metric) (Spec, error) {
	base := strings.TrimSuffix(name, PostCovidSuffix)
	entry, ok := baseModels[base]
	if !ok {
		return Spec{}, fmt.Errorf("unknown model %q", name)
	}
	if entry.paceOnly && !metric.IsPace {
		return Spec{}, fmt.Errorf("model %q requires a pace metric, %q is not one", name, metric.Code)
	}
	return Spec{
		Name:      name,
		Base:      base,
		PostCovid: strings.HasSuffix(name, PostCovidSuffix),
		PaceOnly:  entry.paceOnly,
	}, nil
}

// New constructs the forecaster for a resolved spec. The weights map feeds
// the blended model; plain models ignore it.
func New(spec Spec, metric Metric, weights map[string]float64) (Forecaster, error) {
	switch spec.Base {
	case "seasonal_naive":
		return &SeasonalNaive{name: spec.Name}, nil
	case "moving_average":
		return &MovingAverage{name: spec.Name}, nil
	case "pickup":
		return &Pickup{name: spec.Name}, nil
	case "blended":
		children := []Forecaster{
			&SeasonalNaive{name: childName("seasonal_naive", spec)},
			&MovingAverage{name: childName("moving_average", spec)},
		}
		if metric.IsPace {
			children = append(children, &Pickup{name: childName("pickup", spec)})
		}
		return &Blended{name: spec.Name, children: children, weights: weights}, nil
	default:
		return nil, fmt.Errorf("unknown model %q", spec.Name)
	}
}

// childName carries the postcovid suffix down so child forecasts line up
// with the weight set computed for the suffixed identifiers.
func childName(base string, spec Spec) string {
	if spec.PostCovid {
		return base + PostCovidSuffix
	}
	return base
}
