package graph

import (
	"fmt"
	"strings"

	"github.com/yungbote/outfitmatch-backend/internal/domain/filter"
)

// compiledFilter is a WHERE fragment over a product variable plus its
// parameters. Values only ever travel as parameters.
type compiledFilter struct {
	Where  string
	Params map[string]any
}

type filterCompiler struct {
	v      string
	params map[string]any
}

// compileFilter renders pred against the product bound to v.
func compileFilter(pred *filter.Predicate, v string) (compiledFilter, error) {
	if err := filter.Validate(pred); err != nil {
		return compiledFilter{}, err
	}
	c := &filterCompiler{v: v, params: map[string]any{}}
	where, err := c.compile(pred)
	if err != nil {
		return compiledFilter{}, err
	}
	return compiledFilter{Where: where, Params: c.params}, nil
}

func (c *filterCompiler) param(val any) string {
	name := fmt.Sprintf("f%d", len(c.params))
	c.params[name] = val
	return "$" + name
}

func (c *filterCompiler) compile(p *filter.Predicate) (string, error) {
	if p == nil {
		return "true", nil
	}
	switch p.Kind {
	case filter.KindTrue:
		return "true", nil
	case filter.KindNot:
		inner, err := c.compile(p.Args[0])
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case filter.KindAnd, filter.KindOr:
		sep := " AND "
		if p.Kind == filter.KindOr {
			sep = " OR "
		}
		parts := make([]string, 0, len(p.Args))
		for _, a := range p.Args {
			s, err := c.compile(a)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+s+")")
		}
		return strings.Join(parts, sep), nil
	case filter.KindCond:
		return c.cond(p.Cond)
	}
	return "", fmt.Errorf("graph: unknown predicate kind %d", p.Kind)
}

func (c *filterCompiler) cond(cond filter.Condition) (string, error) {
	switch cond.Field {
	case filter.FieldPrice:
		op, err := cypherOp(cond.Op)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s.price %s %s", c.v, op, c.param(cond.Number)), nil
	case filter.FieldBrand:
		exists := fmt.Sprintf("EXISTS { MATCH (%s)-[:%s]->(b:Brand) WHERE toLower(b.name) = toLower(%s) }", c.v, RelOfBrand, c.param(cond.Text))
		return negateIf(exists, cond.Op), nil
	case filter.FieldCategory:
		exists := fmt.Sprintf("EXISTS { MATCH (%s)-[:%s]->(:Category {name: %s}) }", c.v, RelInCategory, c.param(cond.Text))
		return negateIf(exists, cond.Op), nil
	case filter.FieldStyle:
		exists := fmt.Sprintf("EXISTS { MATCH (%s)-[:%s]->(:Style {name: %s}) }", c.v, RelHasStyle, c.param(cond.Text))
		return negateIf(exists, cond.Op), nil
	}
	return "", fmt.Errorf("graph: unsupported filter field %q", cond.Field)
}

func negateIf(expr string, op filter.Op) string {
	if op == filter.OpNe {
		return "NOT " + expr
	}
	return expr
}

func cypherOp(op filter.Op) (string, error) {
	switch op {
	case filter.OpEq:
		return "=", nil
	case filter.OpNe:
		return "<>", nil
	case filter.OpLt, filter.OpLte, filter.OpGt, filter.OpGte:
		return string(op), nil
	}
	return "", fmt.Errorf("graph: unsupported operator %q", op)
}
