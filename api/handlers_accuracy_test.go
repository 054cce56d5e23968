package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccuracyRowSerialization(t *testing.T) {
	mae, mape := 3.0, 3.5
	row := bracketRow{
		accuracyRow: accuracyRow{Model: "seasonal_naive", Group: "0-7", N: 2, MAE: &mae, MAPE: &mape},
		LeadBracket: "0-7",
	}

	data, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, float64(2), decoded["n"])
	assert.Equal(t, "0-7", decoded["lead_bracket"])
	assert.Equal(t, 3.0, decoded["mae"])
	assert.Equal(t, 3.5, decoded["mape"])
	assert.NotContains(t, decoded, "sample_count")
	assert.NotContains(t, decoded, "Group")
}

func TestAccuracyRowNullStats(t *testing.T) {
	row := monthRow{
		accuracyRow: accuracyRow{Model: "pickup", Group: "March", N: 1},
		Month:       "March",
	}

	data, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Undefined statistics serialize as explicit nulls, not zeros
	assert.Contains(t, decoded, "mape")
	assert.Nil(t, decoded["mape"])
	assert.Equal(t, "March", decoded["month"])
}
