package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/feather-lang/foreign"
)

// SyntaxError reports a malformed statement.
type SyntaxError struct {
	Pos scanner.Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

type parser struct {
	s    scanner.Scanner
	tok  rune
	text string
	pos  scanner.Position
	errs []error
}

// Parse parses a single statement.
func Parse(src string) (Node, error) {
	p := &parser{}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanRawStrings
	p.s.Error = func(s *scanner.Scanner, msg string) {
		p.errs = append(p.errs, &SyntaxError{Pos: s.Position, Msg: msg})
	}
	p.next()

	n, err := p.statement()
	if err == nil && p.tok != scanner.EOF {
		err = p.errorf("unexpected %s", p.describe())
	}
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	return n, err
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()
	p.pos = p.s.Position
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) describe() string {
	if p.tok == scanner.EOF {
		return "end of input"
	}
	return strconv.Quote(p.text)
}

func (p *parser) expect(tok rune) error {
	if p.tok != tok {
		return p.errorf("expected %s, found %s", scanner.TokenString(tok), p.describe())
	}
	p.next()
	return nil
}

func (p *parser) ident() (string, error) {
	if p.tok != scanner.Ident {
		return "", p.errorf("expected name, found %s", p.describe())
	}
	name := p.text
	p.next()
	return name, nil
}

func (p *parser) statement() (Node, error) {
	if p.tok == scanner.Ident {
		switch p.text {
		case "with":
			return p.with()
		case "import":
			return p.importStmt()
		}
	}
	at := p.pos
	x, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.tok == '=' {
		id, ok := x.(*Ident)
		if !ok {
			return nil, p.errorf("cannot assign to expression")
		}
		p.next()
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &Assign{At: at, Name: id.Name, Value: v}, nil
	}
	return x, nil
}

// with parses with Ctx [as Name]: Body. Body is a single statement on the
// same line.
func (p *parser) with() (Node, error) {
	w := &With{At: p.pos}
	p.next()
	ctx, err := p.expr()
	if err != nil {
		return nil, err
	}
	w.Ctx = ctx
	if p.tok == scanner.Ident && p.text == "as" {
		p.next()
		if w.Name, err = p.ident(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(':'); err != nil {
		return nil, err
	}
	if w.Body, err = p.statement(); err != nil {
		return nil, err
	}
	return w, nil
}

func (p *parser) importStmt() (Node, error) {
	n := &Import{At: p.pos}
	p.next()
	for {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		n.Module = append(n.Module, name)
		if p.tok != '.' {
			break
		}
		p.next()
	}
	if p.tok == scanner.Ident && p.text == "as" {
		p.next()
		alias, err := p.ident()
		if err != nil {
			return nil, err
		}
		n.Alias = alias
	}
	return n, nil
}

func (p *parser) expr() (Node, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok {
		case '.':
			p.next()
			name, err := p.ident()
			if err != nil {
				return nil, err
			}
			x = &Attr{X: x, Name: name}
		case '(':
			call := &Call{Fn: x}
			if err := p.callArgs(call); err != nil {
				return nil, err
			}
			x = call
		default:
			return x, nil
		}
	}
}

func (p *parser) callArgs(call *Call) error {
	p.next()
	for p.tok != ')' {
		at := p.pos
		x, err := p.expr()
		if err != nil {
			return err
		}
		if id, ok := x.(*Ident); ok && p.tok == '=' {
			p.next()
			v, err := p.expr()
			if err != nil {
				return err
			}
			call.Kwargs = append(call.Kwargs, Kwarg{Name: id.Name, Value: v})
		} else {
			if len(call.Kwargs) > 0 {
				return &SyntaxError{Pos: at, Msg: "positional argument follows keyword argument"}
			}
			call.Args = append(call.Args, x)
		}
		if p.tok != ',' {
			break
		}
		p.next()
	}
	return p.expect(')')
}

func (p *parser) primary() (Node, error) {
	at := p.pos
	switch p.tok {
	case scanner.Int, scanner.Float:
		return p.number(at, false)
	case '-':
		p.next()
		if p.tok != scanner.Int && p.tok != scanner.Float {
			return nil, p.errorf("expected number after '-', found %s", p.describe())
		}
		return p.number(at, true)
	case scanner.String, scanner.RawString:
		s, err := strconv.Unquote(p.text)
		if err != nil {
			return nil, p.errorf("invalid string %s", p.text)
		}
		p.next()
		return &Literal{At: at, Value: foreign.String(s)}, nil
	case scanner.Ident:
		name := p.text
		p.next()
		switch name {
		case "None":
			return &Literal{At: at, Value: foreign.None()}, nil
		case "True":
			return &Literal{At: at, Value: foreign.Bool(true)}, nil
		case "False":
			return &Literal{At: at, Value: foreign.Bool(false)}, nil
		case "shape":
			if p.tok == '(' {
				return p.shape(at)
			}
		}
		return &Ident{At: at, Name: name}, nil
	case '[':
		p.next()
		items, err := p.exprList(']')
		if err != nil {
			return nil, err
		}
		return &ListLit{At: at, Items: items}, nil
	case '(':
		return p.paren(at)
	case '{':
		return p.dict(at)
	}
	return nil, p.errorf("unexpected %s", p.describe())
}

func (p *parser) number(at scanner.Position, neg bool) (Node, error) {
	text := p.text
	if neg {
		text = "-" + text
	}
	tok := p.tok
	p.next()
	if tok == scanner.Int {
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: at, Msg: err.Error()}
		}
		return &Literal{At: at, Value: foreign.Int(n)}, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, &SyntaxError{Pos: at, Msg: err.Error()}
	}
	return &Literal{At: at, Value: foreign.Double(f)}, nil
}

// exprList parses items up to and including the closing token. A trailing
// comma is allowed.
func (p *parser) exprList(closing rune) ([]Node, error) {
	var items []Node
	for p.tok != closing {
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		items = append(items, x)
		if p.tok != ',' {
			break
		}
		p.next()
	}
	return items, p.expect(closing)
}

func (p *parser) paren(at scanner.Position) (Node, error) {
	p.next()
	if p.tok == ')' {
		p.next()
		return &TupleLit{At: at}, nil
	}
	x, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.tok == ')' {
		p.next()
		return x, nil
	}
	if err := p.expect(','); err != nil {
		return nil, err
	}
	rest, err := p.exprList(')')
	if err != nil {
		return nil, err
	}
	return &TupleLit{At: at, Items: append([]Node{x}, rest...)}, nil
}

func (p *parser) dict(at scanner.Position) (Node, error) {
	d := &DictLit{At: at}
	p.next()
	for p.tok != '}' {
		k, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		d.Keys = append(d.Keys, k)
		d.Values = append(d.Values, v)
		if p.tok != ',' {
			break
		}
		p.next()
	}
	return d, p.expect('}')
}

func (p *parser) shape(at scanner.Position) (Node, error) {
	s := &ShapeLit{At: at}
	p.next()
	for p.tok != ')' {
		if p.tok == '?' {
			s.Dims = append(s.Dims, &Literal{At: p.pos, Value: foreign.None()})
			p.next()
		} else {
			x, err := p.expr()
			if err != nil {
				return nil, err
			}
			s.Dims = append(s.Dims, x)
		}
		if p.tok != ',' {
			break
		}
		p.next()
	}
	return s, p.expect(')')
}
