package filter

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
)

// ParseError reports where a filter expression stopped making sense.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("filter parse error at %d: %s", e.Pos, e.Msg)
}

// Parse reads a single-line boolean expression such as
//
//	price < 2000 AND category = '上衣' AND (style = 'korean' OR style = '日系')
//
// Category and style values are normalized to vocabulary members and the
// result is validated before it is returned.
func Parse(input string) (*Predicate, error) {
	src := Clean(input)
	if src == "" {
		return nil, &ParseError{Pos: 0, Msg: "empty expression"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &ParseError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %q", tok.text)}
	}
	if err := Validate(pred); err != nil {
		return nil, err
	}
	return pred, nil
}

// Clean strips the wrapping models put around a one-line answer: code fences,
// language tags, answer prefixes and a trailing semicolon.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```", "\n")
	lines := make([]string, 0, 2)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "", "cypher", "sql", "filter", "text":
			continue
		}
		lines = append(lines, line)
	}
	s = strings.Join(lines, " ")
	for _, prefix := range []string{"答案：", "答案:", "Answer:", "answer:", "Filter:", "filter:", "WHERE ", "where "} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	return strings.TrimSpace(strings.TrimSuffix(s, ";"))
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokWord
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func lex(src string) ([]token, error) {
	rs := []rune(src)
	var out []token
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(' || r == '（':
			out = append(out, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')' || r == '）':
			out = append(out, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == '\'' || r == '"' || r == '「' || r == '‘' || r == '“':
			closing := map[rune]rune{'\'': '\'', '"': '"', '「': '」', '‘': '’', '“': '”'}[r]
			j := i + 1
			var b strings.Builder
			for j < len(rs) && rs[j] != closing {
				if rs[j] == '\\' && j+1 < len(rs) {
					j++
				}
				b.WriteRune(rs[j])
				j++
			}
			if j >= len(rs) {
				return nil, &ParseError{Pos: i, Msg: "unterminated string"}
			}
			out = append(out, token{kind: tokString, text: b.String(), pos: i})
			i = j + 1
		case isOpRune(r):
			j := i
			for j < len(rs) && isOpRune(rs[j]) {
				j++
			}
			out = append(out, token{kind: tokOp, text: string(rs[i:j]), pos: i})
			i = j
		default:
			j := i
			for j < len(rs) && !unicode.IsSpace(rs[j]) && !isOpRune(rs[j]) && !isDelim(rs[j]) {
				j++
			}
			out = append(out, token{kind: tokWord, text: string(rs[i:j]), pos: i})
			i = j
		}
	}
	return append(out, token{kind: tokEOF, pos: len(rs)}), nil
}

func isOpRune(r rune) bool {
	return strings.ContainsRune("=<>!&|", r)
}

func isDelim(r rune) bool {
	return strings.ContainsRune("()（）'\"「」‘’“”", r)
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) keyword(word string) bool {
	t := p.peek()
	if t.kind == tokWord && strings.EqualFold(t.text, word) {
		return true
	}
	switch word {
	case "AND":
		return t.kind == tokOp && t.text == "&&"
	case "OR":
		return t.kind == tokOp && t.text == "||"
	case "NOT":
		return t.kind == tokOp && t.text == "!"
	}
	return false
}

func (p *parser) parseOr() (*Predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	args := []*Predicate{left}
	for p.keyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	if len(args) == 1 {
		return left, nil
	}
	// TRUE absorbs a disjunction.
	for _, a := range args {
		if a.Kind == KindTrue {
			return True(), nil
		}
	}
	return Or(args...), nil
}

func (p *parser) parseAnd() (*Predicate, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	args := []*Predicate{left}
	for p.keyword("AND") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		args = append(args, right)
	}
	return And(args...), nil
}

func (p *parser) parseUnary() (*Predicate, error) {
	switch {
	case p.keyword("NOT"):
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	case p.keyword("TRUE"):
		p.next()
		return True(), nil
	case p.peek().kind == tokLParen:
		open := p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, &ParseError{Pos: open.pos, Msg: "unbalanced parenthesis"}
		}
		p.next()
		return inner, nil
	}
	return p.parseCond()
}

var fieldAliases = map[string]Field{
	"price":    FieldPrice,
	"p.price":  FieldPrice,
	"價格":       FieldPrice,
	"brand":    FieldBrand,
	"b.name":   FieldBrand,
	"品牌":       FieldBrand,
	"category": FieldCategory,
	"c.name":   FieldCategory,
	"類別":       FieldCategory,
	"style":    FieldStyle,
	"s.name":   FieldStyle,
	"風格":       FieldStyle,
}

var opAliases = map[string]Op{
	"=":  OpEq,
	"==": OpEq,
	"!=": OpNe,
	"<>": OpNe,
	"<":  OpLt,
	"<=": OpLte,
	">":  OpGt,
	">=": OpGte,
}

func (p *parser) parseCond() (*Predicate, error) {
	ft := p.next()
	if ft.kind != tokWord {
		return nil, &ParseError{Pos: ft.pos, Msg: fmt.Sprintf("expected field, got %q", ft.text)}
	}
	field, ok := fieldAliases[strings.ToLower(ft.text)]
	if !ok {
		return nil, &ParseError{Pos: ft.pos, Msg: fmt.Sprintf("unknown field %q", ft.text)}
	}
	ot := p.next()
	op, ok := opAliases[ot.text]
	if ot.kind != tokOp || !ok {
		return nil, &ParseError{Pos: ot.pos, Msg: fmt.Sprintf("expected comparison operator, got %q", ot.text)}
	}
	vt := p.next()
	if vt.kind != tokWord && vt.kind != tokString {
		return nil, &ParseError{Pos: vt.pos, Msg: "expected value"}
	}
	cond := Condition{Field: field, Op: op}
	switch field {
	case FieldPrice:
		n, err := strconv.ParseFloat(strings.ReplaceAll(vt.text, ",", ""), 64)
		if err != nil {
			return nil, &ParseError{Pos: vt.pos, Msg: fmt.Sprintf("price value %q is not a number", vt.text)}
		}
		cond.Number = n
	case FieldCategory:
		c, ok := fashion.ParseCategory(vt.text)
		if !ok {
			return nil, &ParseError{Pos: vt.pos, Msg: fmt.Sprintf("unknown category %q", vt.text)}
		}
		cond.Text = string(c)
	case FieldStyle:
		s, ok := fashion.ParseStyle(vt.text)
		if !ok {
			return nil, &ParseError{Pos: vt.pos, Msg: fmt.Sprintf("unknown style %q", vt.text)}
		}
		cond.Text = string(s)
	default:
		cond.Text = strings.TrimSpace(vt.text)
	}
	return &Predicate{Kind: KindCond, Cond: cond}, nil
}
