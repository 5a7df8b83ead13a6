package types

import (
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq    CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt    CommonFilterOperator = "lt"
	CommonFilterOperatorLte   CommonFilterOperator = "lte"
	CommonFilterOperatorGt    CommonFilterOperator = "gt"
	CommonFilterOperatorGte   CommonFilterOperator = "gte"
	CommonFilterOperatorRange CommonFilterOperator = "range"
	CommonFilterOperatorIn    CommonFilterOperator = "in"
	CommonFilterOperatorLike  CommonFilterOperator = "like"
)

var operators = []CommonFilterOperator{
	CommonFilterOperatorEq,
	CommonFilterOperatorNotEq,
	CommonFilterOperatorLt,
	CommonFilterOperatorLte,
	CommonFilterOperatorGt,
	CommonFilterOperatorGte,
	CommonFilterOperatorRange,
	CommonFilterOperatorIn,
	CommonFilterOperatorLike,
}

type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

// Build constructs a GORM expression. Column names are quoted by the dialect
// and values are always bound as parameters.
func (f *CommonFilter) Build(builder clause.Builder) {
	if len(f.Values) == 0 {
		return
	}

	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: clause.Column{Name: f.Field}, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: clause.Column{Name: f.Field}, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: clause.Column{Name: f.Field}, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: clause.Column{Name: f.Field}, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: clause.Column{Name: f.Field}, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: clause.Column{Name: f.Field}, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(
			clause.Gte{Column: clause.Column{Name: f.Field}, Value: f.Values[0]},
			clause.Lte{Column: clause.Column{Name: f.Field}, Value: f.Values[1]},
		).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: clause.Column{Name: f.Field}, Values: f.Values}.Build(builder)
	case CommonFilterOperatorLike:
		clause.Like{Column: clause.Column{Name: f.Field}, Value: fmt.Sprintf("%%%v%%", value)}.Build(builder)
	}
}

// Filters joins every filter with AND. An empty list matches everything.
type Filters []*CommonFilter

func (fs Filters) Build(builder clause.Builder) {
	fs = lo.Filter(fs, func(f *CommonFilter, _ int) bool { return f != nil && len(f.Values) > 0 })
	if len(fs) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, f := range fs {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		f.Build(builder)
	}
}

// Validate rejects filters on columns outside allowed and unknown operators.
func (fs Filters) Validate(allowed ...string) error {
	for _, f := range fs {
		if f == nil {
			continue
		}
		if !lo.Contains(allowed, f.Field) {
			return fmt.Errorf("filter field not allowed: %s", f.Field)
		}
		if !lo.Contains(operators, f.Operator) {
			return fmt.Errorf("unsupported filter operator: %s", f.Operator)
		}
		if f.Operator == CommonFilterOperatorRange && len(f.Values) < 2 {
			return fmt.Errorf("range filter on %s needs two values", f.Field)
		}
	}
	return nil
}
