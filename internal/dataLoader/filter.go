package dataloader

import (
	"hrloader/internal/config"
	"hrloader/internal/db"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Criteria selects records by salary range (inclusive) and minimum height
// (exclusive).
type Criteria struct {
	SalaryField string
	MinSalary   float64
	MaxSalary   float64
	HeightField string
	MinHeight   float64
}

func DefaultCriteria() Criteria {
	return CriteriaFromConfig(config.Default().Filter)
}

func CriteriaFromConfig(f config.Filter) Criteria {
	return Criteria(f)
}

func (c Criteria) Match(r db.Record) bool {
	salary := number(r, c.SalaryField)
	return salary >= c.MinSalary && salary <= c.MaxSalary &&
		number(r, c.HeightField) > c.MinHeight
}

// Apply returns the matching records in input order. The records are
// shared with the input, not copied.
func (c Criteria) Apply(records []db.Record, log logrus.FieldLogger) []db.Record {
	filtered := make([]db.Record, 0, len(records))
	for _, r := range records {
		if c.Match(r) {
			filtered = append(filtered, r)
		}
	}
	log.Infof("Filtered %d records from %d", len(filtered), len(records))
	return filtered
}

// number reads field as a float; absent or non-numeric values are 0.
func number(r db.Record, field string) float64 {
	v, ok := r[field]
	if !ok || v == nil {
		return 0
	}
	if _, isBool := v.(bool); isBool {
		return 0
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0
	}
	return f
}
