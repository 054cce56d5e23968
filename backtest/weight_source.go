package backtest

import (
	"forecast-backtest/accuracy"
	models "forecast-backtest/database/models_pkg"
	"forecast-backtest/forecaster"
)

// EvaluatedReader fetches snapshots that already carry actuals.
type EvaluatedReader interface {
	GetEvaluated(metricCode, model string) ([]models.ForecastSnapshot, error)
}

// SnapshotWeightSource derives the production weight map for the blended
// model from evaluated snapshots on demand.
type SnapshotWeightSource struct {
	reader EvaluatedReader
}

// NewSnapshotWeightSource creates a weight source over the snapshot store
func NewSnapshotWeightSource(reader EvaluatedReader) *SnapshotWeightSource {
	return &SnapshotWeightSource{reader: reader}
}

// ProductionWeightMap computes model→weight for a metric from every
// evaluated snapshot, the same inverse-MAPE normalization the API serves.
func (s *SnapshotWeightSource) ProductionWeightMap(metricCode string) (map[string]float64, error) {
	snaps, err := s.reader.GetEvaluated(metricCode, "")
	if err != nil {
		return nil, err
	}

	metric, err := forecaster.MetricByCode(metricCode)
	if err != nil {
		return nil, err
	}

	set := accuracy.ProductionWeights(metricCode, metric.IsPace, accuracy.FromSnapshots(snaps))
	return accuracy.WeightsByModel(set), nil
}
