package filter

import (
	"fmt"
	"math"
	"strings"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

// ValidationError names the offending condition.
type ValidationError struct {
	Cond   Condition
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid condition %s: %s", e.Cond.String(), e.Reason)
}

var fieldOps = map[Field]map[Op]bool{
	FieldPrice:    {OpEq: true, OpNe: true, OpLt: true, OpLte: true, OpGt: true, OpGte: true},
	FieldBrand:    {OpEq: true, OpNe: true},
	FieldCategory: {OpEq: true, OpNe: true},
	FieldStyle:    {OpEq: true, OpNe: true},
}

// Validate checks the predicate against the attribute schema.
func Validate(p *Predicate) error {
	if p == nil {
		return nil
	}
	switch p.Kind {
	case KindTrue:
		return nil
	case KindNot:
		if len(p.Args) != 1 {
			return fmt.Errorf("NOT takes exactly one operand, got %d", len(p.Args))
		}
		return Validate(p.Args[0])
	case KindAnd, KindOr:
		if len(p.Args) == 0 {
			return fmt.Errorf("empty boolean group")
		}
		for _, a := range p.Args {
			if err := Validate(a); err != nil {
				return err
			}
		}
		return nil
	case KindCond:
		return validateCond(p.Cond)
	}
	return fmt.Errorf("unknown predicate kind %d", p.Kind)
}

func validateCond(c Condition) error {
	ops, ok := fieldOps[c.Field]
	if !ok {
		return &ValidationError{Cond: c, Reason: "unknown field"}
	}
	if !ops[c.Op] {
		return &ValidationError{Cond: c, Reason: fmt.Sprintf("operator %s not allowed on %s", c.Op, c.Field)}
	}
	switch c.Field {
	case FieldPrice:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) || c.Number < 0 {
			return &ValidationError{Cond: c, Reason: "price must be a non-negative number"}
		}
	case FieldBrand:
		if strings.TrimSpace(c.Text) == "" {
			return &ValidationError{Cond: c, Reason: "brand must not be empty"}
		}
	case FieldCategory:
		if !fashion.Category(c.Text).Valid() {
			return &ValidationError{Cond: c, Reason: "category outside the closed set"}
		}
	case FieldStyle:
		if !fashion.Style(c.Text).Valid() {
			return &ValidationError{Cond: c, Reason: "style outside the vocabulary"}
		}
	}
	return nil
}
