package quality

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

func nominalReading() *models.RawReading {
	return &models.RawReading{
		Timestamp:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Power:       1500,
		Voltage:     120,
		Current:     12.5,
		Frequency:   60.0,
		PowerFactor: 0.95,
		Consumption: 0.025,
		MeterID:     "mtr-1",
		DeviceID:    "dev-1",
	}
}

func TestScore_Nominal(t *testing.T) {
	r := nominalReading()
	if got := Score(r); got != 100 {
		t.Errorf("Expected score 100 for nominal reading, got %d", got)
	}
	if cat := Categorize(Score(r)); cat != models.QualityExcellent {
		t.Errorf("Expected excellent, got %s", cat)
	}
}

func TestScore_VoltagePenaltyOnly(t *testing.T) {
	// voltage=105 is outside [110,130] (-20); frequency and power factor
	// nominal. Score 80 maps to "good".
	r := nominalReading()
	r.Voltage = 105
	r.Frequency = 60.0
	r.PowerFactor = 0.9

	score := Score(r)
	if score != 80 {
		t.Errorf("Expected score 80, got %d", score)
	}
	if cat := Categorize(score); cat != models.QualityGood {
		t.Errorf("Expected good, got %s", cat)
	}
}

func TestScore_Bands(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.RawReading)
		expected int
	}{
		{"voltage outer band", func(r *models.RawReading) { r.Voltage = 132 }, 80},
		{"voltage inner band", func(r *models.RawReading) { r.Voltage = 126 }, 90},
		{"frequency outer band", func(r *models.RawReading) { r.Frequency = 60.3 }, 80},
		{"frequency inner band", func(r *models.RawReading) { r.Frequency = 60.15 }, 90},
		{"power factor below fair", func(r *models.RawReading) { r.PowerFactor = 0.65 }, 80},
		{"power factor below good", func(r *models.RawReading) { r.PowerFactor = 0.75 }, 90},
		{
			"all penalties stack",
			func(r *models.RawReading) { r.Voltage = 105; r.Frequency = 60.3; r.PowerFactor = 0.6 },
			40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := nominalReading()
			tt.mutate(r)
			if got := Score(r); got != tt.expected {
				t.Errorf("Expected score %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestCategorize_Boundaries(t *testing.T) {
	tests := []struct {
		score    int
		expected models.QualityCategory
	}{
		{100, models.QualityExcellent},
		{90, models.QualityExcellent},
		{89, models.QualityGood},
		{75, models.QualityGood},
		{74, models.QualityFair},
		{60, models.QualityFair},
		{59, models.QualityPoor},
		{0, models.QualityPoor},
	}
	for _, tt := range tests {
		if got := Categorize(tt.score); got != tt.expected {
			t.Errorf("Categorize(%d) = %s, expected %s", tt.score, got, tt.expected)
		}
	}
}

func TestTags(t *testing.T) {
	r := nominalReading()
	if tags := Tags(r); len(tags) != 0 {
		t.Errorf("Expected no tags for nominal reading, got %v", tags)
	}

	r.Voltage = 95
	r.Frequency = 58.5
	r.PowerFactor = 0.4
	r.Power = 12000

	tags := Tags(r)
	expected := []string{
		models.TagVoltageOutOfRange,
		models.TagFrequencyAnomaly,
		models.TagPoorPowerFactor,
		models.TagHighPowerConsumption,
	}
	if len(tags) != len(expected) {
		t.Fatalf("Expected %d tags, got %v", len(expected), tags)
	}
	for i, tag := range expected {
		if tags[i] != tag {
			t.Errorf("Expected tag %s at %d, got %s", tag, i, tags[i])
		}
	}
}

func TestTags_IndependentOfScore(t *testing.T) {
	// voltage=105 degrades the score but is not anomalous (>=100)
	r := nominalReading()
	r.Voltage = 105
	if tags := Tags(r); len(tags) != 0 {
		t.Errorf("Expected no anomaly tags at voltage 105, got %v", tags)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.RawReading)
	}{
		{"missing meter", func(r *models.RawReading) { r.MeterID = "" }},
		{"zero timestamp", func(r *models.RawReading) { r.Timestamp = time.Time{} }},
		{"negative power", func(r *models.RawReading) { r.Power = -1 }},
		{"NaN voltage", func(r *models.RawReading) { r.Voltage = math.NaN() }},
		{"power factor above one", func(r *models.RawReading) { r.PowerFactor = 1.2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := nominalReading()
			tt.mutate(r)
			err := Validate(r)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Expected ValidationError, got %T", err)
			}
		})
	}

	if err := Validate(nominalReading()); err != nil {
		t.Errorf("Expected nominal reading to validate, got %v", err)
	}
}

func TestAssess(t *testing.T) {
	raw := nominalReading()
	raw.Voltage = 105

	reading, err := Assess(raw)
	if err != nil {
		t.Fatalf("Failed to assess reading: %v", err)
	}
	if reading.Quality != models.QualityGood {
		t.Errorf("Expected good quality, got %s", reading.Quality)
	}
	if reading.ID == "" {
		t.Error("Expected derived reading identity")
	}

	// Identity is deterministic for replay deduplication
	again, _ := Assess(raw)
	if again.ID != reading.ID {
		t.Error("Expected identical identity for identical reading")
	}

	raw.MeterID = ""
	if _, err := Assess(raw); err == nil {
		t.Error("Expected assess to propagate validation error")
	}
}
