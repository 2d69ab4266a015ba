// Package parser parses the textual path notation and the literal
// constants that appear in stored default-value expressions.
//
// The grammar is deliberately small: an optional anchor (a type or alias
// name, a reserved anchor, or nothing for a partial path) followed by
// pointer steps (".name"), backlink steps (".<name"), link property
// steps ("@name"), and type filters ("[IS Name]") attached to the
// preceding pointer step. Literals are quoted strings, integers, and
// booleans.
package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/roach88/lumen/internal/ast"
)

// Parser parses expression text on demand.
type Parser struct {
	// Filename is recorded in source positions, "<query>" when empty.
	Filename string
}

// New returns a Parser.
func New() *Parser { return &Parser{} }

// ParseError reports a syntax error with its source position.
type ParseError struct {
	Message string
	Pos     ast.Pos
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: syntax error: %s", e.Pos, e.Message)
}

// ParseExpr parses a constant or a path expression.
func (p *Parser) ParseExpr(text string) (ast.Expr, error) {
	lx := newLexer(text, p.Filename)
	toks, err := lx.run()
	if err != nil {
		return nil, err
	}
	pr := &parse{toks: toks}
	expr, err := pr.expr()
	if err != nil {
		return nil, err
	}
	if !pr.atEOF() {
		return nil, pr.errorf("unexpected %q after expression", pr.peek().text)
	}
	return expr, nil
}

// ParsePath parses text that must be a path expression.
func (p *Parser) ParsePath(text string) (*ast.Path, error) {
	expr, err := p.ParseExpr(text)
	if err != nil {
		return nil, err
	}
	path, ok := expr.(*ast.Path)
	if !ok {
		return nil, &ParseError{Message: "expected a path expression", Pos: expr.Position()}
	}
	return path, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokString
	tokInt
	tokDot        // .
	tokDotLess    // .<
	tokAt         // @
	tokLBracket   // [
	tokRBracket   // ]
	tokModuleSep  // ::
)

type token struct {
	kind tokenKind
	text string
	pos  ast.Pos
}

type lexer struct {
	src      string
	filename string
	off      int
	line     int
	col      int
}

func newLexer(src, filename string) *lexer {
	return &lexer{src: src, filename: filename, line: 1, col: 1}
}

func (l *lexer) pos() ast.Pos {
	return ast.Pos{Filename: l.filename, Line: l.line, Column: l.col}
}

func (l *lexer) advance() byte {
	c := l.src[l.off]
	l.off++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *lexer) run() ([]token, error) {
	var toks []token
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.advance()

		case c == '.':
			pos := l.pos()
			l.advance()
			if l.off < len(l.src) && l.src[l.off] == '<' {
				l.advance()
				toks = append(toks, token{tokDotLess, ".<", pos})
			} else {
				toks = append(toks, token{tokDot, ".", pos})
			}

		case c == '@':
			pos := l.pos()
			l.advance()
			toks = append(toks, token{tokAt, "@", pos})

		case c == '[':
			pos := l.pos()
			l.advance()
			toks = append(toks, token{tokLBracket, "[", pos})

		case c == ']':
			pos := l.pos()
			l.advance()
			toks = append(toks, token{tokRBracket, "]", pos})

		case c == ':':
			pos := l.pos()
			l.advance()
			if l.off >= len(l.src) || l.src[l.off] != ':' {
				return nil, &ParseError{Message: "expected '::'", Pos: pos}
			}
			l.advance()
			toks = append(toks, token{tokModuleSep, "::", pos})

		case c == '\'' || c == '"':
			pos := l.pos()
			quote := l.advance()
			var b strings.Builder
			closed := false
			for l.off < len(l.src) {
				ch := l.advance()
				if ch == quote {
					closed = true
					break
				}
				b.WriteByte(ch)
			}
			if !closed {
				return nil, &ParseError{Message: "unterminated string literal", Pos: pos}
			}
			toks = append(toks, token{tokString, b.String(), pos})

		case c >= '0' && c <= '9':
			pos := l.pos()
			var b strings.Builder
			for l.off < len(l.src) && l.src[l.off] >= '0' && l.src[l.off] <= '9' {
				b.WriteByte(l.advance())
			}
			toks = append(toks, token{tokInt, b.String(), pos})

		case isNameStart(rune(c)):
			pos := l.pos()
			var b strings.Builder
			for l.off < len(l.src) && isNamePart(rune(l.src[l.off])) {
				b.WriteByte(l.advance())
			}
			toks = append(toks, token{tokName, b.String(), pos})

		default:
			return nil, &ParseError{
				Message: fmt.Sprintf("unexpected character %q", c),
				Pos:     l.pos(),
			}
		}
	}
	toks = append(toks, token{tokEOF, "", l.pos()})
	return toks, nil
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNamePart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type parse struct {
	toks []token
	idx  int
}

func (p *parse) peek() token { return p.toks[p.idx] }

// next consumes the current token. The cursor never moves past the
// trailing EOF token, so truncated input keeps yielding EOF instead of
// running off the slice.
func (p *parse) next() token {
	t := p.toks[p.idx]
	if t.kind != tokEOF {
		p.idx++
	}
	return t
}

func (p *parse) atEOF() bool { return p.peek().kind == tokEOF }

func (p *parse) errorf(format string, args ...any) error {
	return &ParseError{Message: fmt.Sprintf(format, args...), Pos: p.peek().pos}
}

func (p *parse) expr() (ast.Expr, error) {
	switch t := p.peek(); t.kind {
	case tokString:
		p.next()
		return &ast.Constant{Kind: ast.StringConstant, Value: t.text, Pos: t.pos}, nil
	case tokInt:
		p.next()
		return &ast.Constant{Kind: ast.IntConstant, Value: t.text, Pos: t.pos}, nil
	case tokName:
		if t.text == "true" || t.text == "false" {
			p.next()
			return &ast.Constant{Kind: ast.BoolConstant, Value: t.text, Pos: t.pos}, nil
		}
		return p.path()
	case tokDot, tokDotLess, tokAt:
		return p.path()
	default:
		return nil, p.errorf("unexpected %q", t.text)
	}
}

func (p *parse) path() (*ast.Path, error) {
	first := p.peek()
	path := &ast.Path{Pos: first.pos}

	if first.kind == tokName {
		ref := &ast.ObjectRef{Name: p.next().text, Pos: first.pos}
		if p.peek().kind == tokModuleSep {
			p.next()
			nameTok := p.next()
			if nameTok.kind != tokName {
				return nil, p.errorf("expected name after '::'")
			}
			ref.Module = ref.Name
			ref.Name = nameTok.text
		}
		switch ref.Name {
		case "__source__":
			path.Steps = append(path.Steps, &ast.Self{Pos: first.pos})
		case "__subject__":
			path.Steps = append(path.Steps, &ast.Subject{Pos: first.pos})
		default:
			path.Steps = append(path.Steps, ref)
		}
	} else {
		path.Partial = true
	}

	for {
		switch t := p.peek(); t.kind {
		case tokDot, tokDotLess, tokAt:
			p.next()
			nameTok := p.next()
			if nameTok.kind != tokName && nameTok.kind != tokInt {
				return nil, p.errorf("expected pointer name")
			}
			step := &ast.Ptr{
				Name:       nameTok.text,
				Inbound:    t.kind == tokDotLess,
				IsProperty: t.kind == tokAt,
				Pos:        t.pos,
			}
			path.Steps = append(path.Steps, step)

		case tokLBracket:
			if len(path.Steps) == 0 {
				return nil, p.errorf("type filter must follow a pointer step")
			}
			last, ok := path.Steps[len(path.Steps)-1].(*ast.Ptr)
			if !ok {
				return nil, p.errorf("type filter must follow a pointer step")
			}
			p.next()
			isTok := p.next()
			if isTok.kind != tokName || !strings.EqualFold(isTok.text, "IS") {
				return nil, p.errorf("expected 'IS' in type filter")
			}
			tn, err := p.typeName()
			if err != nil {
				return nil, err
			}
			if p.next().kind != tokRBracket {
				return nil, p.errorf("expected ']'")
			}
			last.Target = tn

		default:
			if len(path.Steps) == 0 && !path.Partial {
				return nil, p.errorf("empty path")
			}
			if path.Partial && len(path.Steps) == 0 {
				return nil, p.errorf("expected pointer step in partial path")
			}
			return path, nil
		}
	}
}

func (p *parse) typeName() (*ast.TypeName, error) {
	t := p.next()
	if t.kind != tokName {
		return nil, p.errorf("expected type name")
	}
	tn := &ast.TypeName{Name: t.text, Pos: t.pos}
	if p.peek().kind == tokModuleSep {
		p.next()
		nameTok := p.next()
		if nameTok.kind != tokName {
			return nil, p.errorf("expected name after '::'")
		}
		tn.Module = tn.Name
		tn.Name = nameTok.text
	}
	return tn, nil
}
