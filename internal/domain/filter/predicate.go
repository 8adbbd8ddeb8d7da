// Package filter holds the structured query predicate produced by the
// translator and consumed by the graph stores.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

type Field string

const (
	FieldPrice    Field = "price"
	FieldBrand    Field = "brand"
	FieldCategory Field = "category"
	FieldStyle    Field = "style"
)

type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

type Kind int

const (
	KindTrue Kind = iota
	KindAnd
	KindOr
	KindNot
	KindCond
)

// Condition is one (field, operator, value) triple. Number is used for
// price, Text for every other field.
type Condition struct {
	Field  Field
	Op     Op
	Text   string
	Number float64
}

type Predicate struct {
	Kind Kind
	Args []*Predicate
	Cond Condition
}

func True() *Predicate { return &Predicate{Kind: KindTrue} }

func And(args ...*Predicate) *Predicate { return combine(KindAnd, args) }

func Or(args ...*Predicate) *Predicate { return combine(KindOr, args) }

func Not(p *Predicate) *Predicate { return &Predicate{Kind: KindNot, Args: []*Predicate{p}} }

func combine(kind Kind, args []*Predicate) *Predicate {
	flat := make([]*Predicate, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if a.Kind == kind {
			flat = append(flat, a.Args...)
			continue
		}
		if kind == KindAnd && a.Kind == KindTrue {
			continue
		}
		flat = append(flat, a)
	}
	switch len(flat) {
	case 0:
		return True()
	case 1:
		return flat[0]
	}
	return &Predicate{Kind: kind, Args: flat}
}

func Price(op Op, n float64) *Predicate {
	return &Predicate{Kind: KindCond, Cond: Condition{Field: FieldPrice, Op: op, Number: n}}
}

func Brand(op Op, name string) *Predicate {
	return &Predicate{Kind: KindCond, Cond: Condition{Field: FieldBrand, Op: op, Text: name}}
}

func CategoryIs(c fashion.Category) *Predicate {
	return &Predicate{Kind: KindCond, Cond: Condition{Field: FieldCategory, Op: OpEq, Text: string(c)}}
}

func StyleIs(s fashion.Style) *Predicate {
	return &Predicate{Kind: KindCond, Cond: Condition{Field: FieldStyle, Op: OpEq, Text: string(s)}}
}

// IsTrue reports whether p is the always-true predicate.
func (p *Predicate) IsTrue() bool {
	return p == nil || p.Kind == KindTrue
}

// Conditions returns every leaf condition in evaluation order.
func (p *Predicate) Conditions() []Condition {
	if p == nil {
		return nil
	}
	if p.Kind == KindCond {
		return []Condition{p.Cond}
	}
	var out []Condition
	for _, a := range p.Args {
		out = append(out, a.Conditions()...)
	}
	return out
}

// String renders a canonical single-line form, stable for cache keys.
func (p *Predicate) String() string {
	if p == nil {
		return "TRUE"
	}
	switch p.Kind {
	case KindTrue:
		return "TRUE"
	case KindCond:
		return p.Cond.String()
	case KindNot:
		return "NOT " + p.Args[0].group()
	case KindAnd, KindOr:
		sep := " AND "
		if p.Kind == KindOr {
			sep = " OR "
		}
		parts := make([]string, len(p.Args))
		for i, a := range p.Args {
			parts[i] = a.group()
		}
		return strings.Join(parts, sep)
	}
	return "TRUE"
}

func (p *Predicate) group() string {
	if p.Kind == KindAnd || p.Kind == KindOr {
		return "(" + p.String() + ")"
	}
	return p.String()
}

func (c Condition) String() string {
	if c.Field == FieldPrice {
		return fmt.Sprintf("%s %s %s", c.Field, c.Op, strconv.FormatFloat(c.Number, 'f', -1, 64))
	}
	return fmt.Sprintf("%s %s '%s'", c.Field, c.Op, strings.ReplaceAll(c.Text, "'", "\\'"))
}
