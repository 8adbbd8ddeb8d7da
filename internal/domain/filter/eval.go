package filter

import (
	"strings"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

// Subject is the attribute view of a product a predicate is evaluated against.
type Subject struct {
	Price    float64
	Brand    string
	Category fashion.Category
	Styles   fashion.StyleSet
}

func SubjectOf(p fashion.Product) Subject {
	return Subject{Price: p.Price, Brand: p.Brand, Category: p.Category, Styles: p.Styles}
}

// Eval evaluates p in memory. Brand comparison is case-insensitive, matching
// the compiled graph query.
func (p *Predicate) Eval(s Subject) bool {
	if p == nil {
		return true
	}
	switch p.Kind {
	case KindTrue:
		return true
	case KindNot:
		return !p.Args[0].Eval(s)
	case KindAnd:
		for _, a := range p.Args {
			if !a.Eval(s) {
				return false
			}
		}
		return true
	case KindOr:
		for _, a := range p.Args {
			if a.Eval(s) {
				return true
			}
		}
		return false
	case KindCond:
		return p.Cond.eval(s)
	}
	return false
}

func (c Condition) eval(s Subject) bool {
	switch c.Field {
	case FieldPrice:
		return compareNum(s.Price, c.Op, c.Number)
	case FieldBrand:
		eq := strings.EqualFold(strings.TrimSpace(s.Brand), strings.TrimSpace(c.Text))
		return eqOp(eq, c.Op)
	case FieldCategory:
		return eqOp(string(s.Category) == c.Text, c.Op)
	case FieldStyle:
		return eqOp(s.Styles.Contains(fashion.Style(c.Text)), c.Op)
	}
	return false
}

func eqOp(eq bool, op Op) bool {
	if op == OpNe {
		return !eq
	}
	return eq
}

func compareNum(a float64, op Op, b float64) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	}
	return false
}
