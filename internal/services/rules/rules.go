// Package rules evaluates alert conditions against accepted readings.
// Conditions are plain data so they can come from per-meter configuration
// or from a rules file; evaluation is pure and side-effect free.
package rules

import (
	"fmt"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// Field names a reading attribute a condition tests.
type Field string

const (
	FieldPower       Field = "power"
	FieldVoltage     Field = "voltage"
	FieldCurrent     Field = "current"
	FieldFrequency   Field = "frequency"
	FieldPowerFactor Field = "powerFactor"
	FieldConsumption Field = "consumption"
)

// Op is the comparison a condition applies.
type Op string

const (
	OpGreaterThan Op = ">"
	OpLessThan    Op = "<"
	OpAtLeast     Op = ">="
	OpAtMost      Op = "<="
)

// Condition is one alert trigger: a named comparison of a reading field
// against a threshold.
type Condition struct {
	Name      string  `yaml:"name" json:"name"`
	Field     Field   `yaml:"field" json:"field"`
	Op        Op      `yaml:"op" json:"op"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// Holds reports whether the condition triggers for the reading. An unknown
// field or operator never triggers.
func (c Condition) Holds(r *models.Reading) bool {
	value, ok := fieldValue(r, c.Field)
	if !ok {
		return false
	}
	switch c.Op {
	case OpGreaterThan:
		return value > c.Threshold
	case OpLessThan:
		return value < c.Threshold
	case OpAtLeast:
		return value >= c.Threshold
	case OpAtMost:
		return value <= c.Threshold
	default:
		return false
	}
}

// Violation records a triggered condition and the value that tripped it.
type Violation struct {
	Condition Condition
	Value     float64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s %s %g (observed %g)",
		v.Condition.Name, v.Condition.Field, v.Condition.Op, v.Condition.Threshold, v.Value)
}

// Evaluate checks every condition against the reading and returns the
// violations in condition order.
func Evaluate(conditions []Condition, r *models.Reading) []Violation {
	var violations []Violation
	for _, c := range conditions {
		if c.Holds(r) {
			value, _ := fieldValue(r, c.Field)
			violations = append(violations, Violation{Condition: c, Value: value})
		}
	}
	return violations
}

// FromThresholds translates a meter's alert thresholds into conditions.
// Zero-valued thresholds are disabled and produce no condition.
func FromThresholds(t models.AlertThresholds) []Condition {
	var conditions []Condition
	if t.HighUsage > 0 {
		conditions = append(conditions, Condition{
			Name: "high usage", Field: FieldPower, Op: OpGreaterThan, Threshold: t.HighUsage,
		})
	}
	if t.LowVoltage > 0 {
		conditions = append(conditions, Condition{
			Name: "low voltage", Field: FieldVoltage, Op: OpLessThan, Threshold: t.LowVoltage,
		})
	}
	if t.HighVoltage > 0 {
		conditions = append(conditions, Condition{
			Name: "high voltage", Field: FieldVoltage, Op: OpGreaterThan, Threshold: t.HighVoltage,
		})
	}
	if t.PowerFactor > 0 {
		conditions = append(conditions, Condition{
			Name: "poor power factor", Field: FieldPowerFactor, Op: OpLessThan, Threshold: t.PowerFactor,
		})
	}
	return conditions
}

func fieldValue(r *models.Reading, f Field) (float64, bool) {
	switch f {
	case FieldPower:
		return r.Power, true
	case FieldVoltage:
		return r.Voltage, true
	case FieldCurrent:
		return r.Current, true
	case FieldFrequency:
		return r.Frequency, true
	case FieldPowerFactor:
		return r.PowerFactor, true
	case FieldConsumption:
		return r.Consumption, true
	default:
		return 0, false
	}
}
