package accuracy

import (
	"math"
	"testing"
	"time"

	models "forecast-backtest/database/models_pkg"
)

func TestBracketFor(t *testing.T) {
	tests := []struct {
		leadDays int
		expected string
	}{
		{0, "0-7"},
		{7, "0-7"},
		{8, "8-14"},
		{14, "8-14"},
		{15, "15-30"},
		{30, "15-30"},
		{31, "31-60"},
		{60, "31-60"},
		{61, "61-90"},
		{90, "61-90"},
		{91, "90+"},
		{365, "90+"},
	}

	for _, tt := range tests {
		if got := BracketFor(tt.leadDays); got != tt.expected {
			t.Errorf("BracketFor(%d) = %s, want %s", tt.leadDays, got, tt.expected)
		}
	}
}

func TestByBracketWorkedExample(t *testing.T) {
	// Errors of 2 and 4 against actuals 100 and 80 in the 0-7 bracket:
	// mae = 3.0, mape = ((2/100)+(4/80))/2*100 = 3.5
	obs := []Observation{
		{Model: "seasonal_naive", LeadDays: 3, Forecast: 98, Actual: 100},
		{Model: "seasonal_naive", LeadDays: 5, Forecast: 84, Actual: 80},
	}

	stats := ByBracket(obs)
	if len(stats) != 1 {
		t.Fatalf("expected 1 group, got %d", len(stats))
	}

	s := stats[0]
	if s.Group != "0-7" {
		t.Errorf("expected bracket 0-7, got %s", s.Group)
	}
	if s.N != 2 {
		t.Errorf("expected n=2, got %d", s.N)
	}
	if s.MAE == nil || math.Abs(*s.MAE-3.0) > 1e-9 {
		t.Errorf("expected mae 3.0, got %v", s.MAE)
	}
	if s.MAPE == nil || math.Abs(*s.MAPE-3.5) > 1e-9 {
		t.Errorf("expected mape 3.5, got %v", s.MAPE)
	}
}

func TestByBracketZeroActual(t *testing.T) {
	// A zero actual contributes to n and mae but not to mape
	obs := []Observation{
		{Model: "m", LeadDays: 2, Forecast: 10, Actual: 0},
	}

	stats := ByBracket(obs)
	if len(stats) != 1 {
		t.Fatalf("expected 1 group, got %d", len(stats))
	}
	if stats[0].N != 1 {
		t.Errorf("expected n=1, got %d", stats[0].N)
	}
	if stats[0].MAE == nil || *stats[0].MAE != 10 {
		t.Errorf("expected mae 10, got %v", stats[0].MAE)
	}
	if stats[0].MAPE != nil {
		t.Errorf("expected nil mape against zero actuals, got %v", *stats[0].MAPE)
	}
}

func TestByBracketNonNegative(t *testing.T) {
	obs := []Observation{
		{Model: "a", LeadDays: 1, Forecast: 120, Actual: 100},
		{Model: "a", LeadDays: 12, Forecast: 80, Actual: 100},
		{Model: "b", LeadDays: 45, Forecast: 100, Actual: 100},
	}

	for _, s := range ByBracket(obs) {
		if s.MAE != nil && *s.MAE < 0 {
			t.Errorf("negative mae for %s/%s", s.Model, s.Group)
		}
		if s.MAPE != nil && *s.MAPE < 0 {
			t.Errorf("negative mape for %s/%s", s.Model, s.Group)
		}
	}
}

func TestByWeekdayAndMonthGrouping(t *testing.T) {
	// 2026-03-02 is a Monday, 2026-03-07 a Saturday
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	obs := []Observation{
		{Model: "m", TargetDate: monday, Forecast: 95, Actual: 100},
		{Model: "m", TargetDate: saturday, Forecast: 90, Actual: 100},
		{Model: "m", TargetDate: april, Forecast: 100, Actual: 100},
	}

	byDay := ByWeekday(obs)
	if len(byDay) != 3 {
		t.Fatalf("expected 3 weekday groups, got %d", len(byDay))
	}
	// Sunday-first weekday order: Monday before Friday before Saturday
	if byDay[0].Group != "Monday" || byDay[2].Group != "Saturday" {
		t.Errorf("expected weekday order Monday..Saturday, got %s then %s", byDay[0].Group, byDay[2].Group)
	}

	byMonth := ByMonth(obs)
	if len(byMonth) != 2 {
		t.Fatalf("expected 2 month groups, got %d", len(byMonth))
	}
	if byMonth[0].Group != "March" || byMonth[1].Group != "April" {
		t.Errorf("expected calendar month order, got %s then %s", byMonth[0].Group, byMonth[1].Group)
	}
	if byMonth[0].N != 2 {
		t.Errorf("expected n=2 for March, got %d", byMonth[0].N)
	}
}

func TestFromSnapshotsSkipsMissingActuals(t *testing.T) {
	actual := 100.0
	snaps := []models.ForecastSnapshot{
		{Model: "m", LeadDays: 3, Forecast: 95, Actual: &actual},
		{Model: "m", LeadDays: 4, Forecast: 90, Actual: nil},
	}

	obs := FromSnapshots(snaps)
	if len(obs) != 1 {
		t.Fatalf("expected only the evaluated snapshot, got %d observations", len(obs))
	}
	if obs[0].Actual != actual {
		t.Errorf("expected actual %v, got %v", actual, obs[0].Actual)
	}
}
