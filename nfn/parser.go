package nfn

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-nfn/nfnd/defn"
)

// SplitNFNName splits an Interest name ending in the NFN marker into the
// encoded expression string and the name prefix that precedes it. The
// expression ends at the component immediately before the trailing NFN
// marker: /prefix.../<expression>/NFN. A name argument inside the
// expression brings its own '/' separators, so the expression may span
// several components: it starts at the nearest component, walking back,
// at which its parentheses balance.
func SplitNFNName(name defn.Name) (exprStr string, prefix defn.Name, err error) {
	if !name.IsNFN() {
		return "", nil, fmt.Errorf("name %s does not end in NFN", name)
	}
	if len(name) < 2 {
		return "", nil, fmt.Errorf("name %s has no expression component", name)
	}
	last := len(name) - 1
	start, depth := last-1, 0
	for i := last - 1; i >= 0; i-- {
		s := name[i].String()
		depth += strings.Count(s, ")") - strings.Count(s, "(")
		if depth == 0 {
			start = i
			break
		}
	}
	parts := make([]string, 0, last-start)
	for _, c := range name[start:last] {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, "/"), name[:start].Clone(), nil
}

// tokenKind enumerates the lexer's token classes.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokString
	tokSlash
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	ival int64
}

// lexer tokenizes an expression string per the grammar:
//
//	expr   := call | name | literal
//	call   := ident '(' arglist? ')'
//	arglist:= expr (',' expr)*
//	name   := '/' ident ('/' ident)*
//	literal:= integer | quoted_string
type lexer struct {
	src []rune
	pos int
}

func newLexer(s string) *lexer { return &lexer{src: []rune(s)} }

func (l *lexer) peekRune() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *lexer) next() token {
	l.skipSpace()
	r, ok := l.peekRune()
	if !ok {
		return token{kind: tokEOF}
	}

	switch r {
	case '(':
		l.pos++
		return token{kind: tokLParen}
	case ')':
		l.pos++
		return token{kind: tokRParen}
	case ',':
		l.pos++
		return token{kind: tokComma}
	case '/':
		l.pos++
		return token{kind: tokSlash}
	case '"':
		return l.lexString()
	}

	if unicode.IsDigit(r) {
		return l.lexInt()
	}
	if isIdentStart(r) {
		return l.lexIdent()
	}

	l.pos++ // skip unrecognized rune rather than looping forever
	return token{kind: tokEOF}
}

func (l *lexer) skipSpace() {
	for {
		r, ok := l.peekRune()
		if !ok || !unicode.IsSpace(r) {
			return
		}
		l.pos++
	}
}

func (l *lexer) lexString() token {
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		r, ok := l.peekRune()
		if !ok {
			break
		}
		l.pos++
		if r == '"' {
			break
		}
		if r == '\\' {
			if esc, ok := l.peekRune(); ok {
				l.pos++
				sb.WriteRune(esc)
				continue
			}
		}
		sb.WriteRune(r)
	}
	return token{kind: tokString, text: sb.String()}
}

func (l *lexer) lexInt() token {
	start := l.pos
	for {
		r, ok := l.peekRune()
		if !ok || !unicode.IsDigit(r) {
			break
		}
		l.pos++
	}
	text := string(l.src[start:l.pos])
	n, _ := strconv.ParseInt(text, 10, 64)
	return token{kind: tokInt, text: text, ival: n}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}

func (l *lexer) lexIdent() token {
	start := l.pos
	for {
		r, ok := l.peekRune()
		if !ok || !isIdentRune(r) {
			break
		}
		l.pos++
	}
	return token{kind: tokIdent, text: string(l.src[start:l.pos])}
}

// Parser is a recursive-descent parser for the expression grammar.
type Parser struct {
	lex *lexer
	cur token
}

// Parse parses exprStr into an Expr tree.
func Parse(exprStr string) (Expr, error) {
	p := &Parser{lex: newLexer(exprStr)}
	p.advance()
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing input at %q", p.cur.text)
	}
	return e, nil
}

func (p *Parser) advance() { p.cur = p.lex.next() }

func (p *Parser) parseExpr() (Expr, error) {
	switch p.cur.kind {
	case tokSlash:
		return p.parseName()
	case tokInt:
		v := p.cur.ival
		p.advance()
		return &Literal{Int: v}, nil
	case tokString:
		s := p.cur.text
		p.advance()
		return &Literal{IsString: true, Str: s}, nil
	case tokIdent:
		return p.parseIdentLed()
	default:
		return nil, fmt.Errorf("unexpected token parsing expression")
	}
}

// parseIdentLed disambiguates ident(...) calls from a name starting
// without its leading slash - the grammar requires '/' for names, so a
// bare ident must begin a call.
func (p *Parser) parseIdentLed() (Expr, error) {
	fn := p.cur.text
	p.advance()
	if p.cur.kind != tokLParen {
		return nil, fmt.Errorf("expected '(' after %q", fn)
	}
	p.advance()

	var args []Expr
	if p.cur.kind != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur.kind != tokComma {
				break
			}
			p.advance()
		}
	}
	if p.cur.kind != tokRParen {
		return nil, fmt.Errorf("expected ')' closing call to %q", fn)
	}
	p.advance()
	return &Call{Fn: fn, Args: args}, nil
}

func (p *Parser) parseName() (Expr, error) {
	var comps []defn.Component
	for p.cur.kind == tokSlash {
		p.advance()
		if p.cur.kind != tokIdent && p.cur.kind != tokInt {
			return nil, fmt.Errorf("expected name component after '/'")
		}
		comps = append(comps, defn.Component(p.cur.text))
		p.advance()
	}
	if len(comps) == 0 {
		return nil, fmt.Errorf("empty name")
	}
	return &NameRef{Name: defn.Name(comps)}, nil
}
