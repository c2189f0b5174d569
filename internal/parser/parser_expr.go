package parser

import (
	"strings"

	"github.com/tinovyatkin/cribo/internal/ast"
	"github.com/tinovyatkin/cribo/internal/lexer"
	"github.com/tinovyatkin/cribo/internal/token"
)

// parseExprList parses a comma-separated expression list used as a whole
// assignment value, return value, or for-iter; a trailing/embedded comma
// produces a Tuple, a single bare expression is returned unwrapped.
func (p *Parser) parseExprList() ast.Expr {
	first := p.parseExprOrStar()
	if !p.at(token.COMMA) {
		return first
	}
	elts := []ast.Expr{first}
	pos := first.Position()
	for p.at(token.COMMA) {
		p.advance()
		if p.atExprListEnd() {
			break
		}
		elts = append(elts, p.parseExprOrStar())
	}
	return &ast.Tuple{Base: ast.Base{Pos: pos}, Elts: elts}
}

// atExprListEnd reports whether the current token cannot start an
// expression, meaning a preceding comma was a trailing one.
func (p *Parser) atExprListEnd() bool {
	switch p.cur().Kind {
	case token.NEWLINE, token.EOF, token.SEMI, token.COLON, token.ASSIGN,
		token.RPAREN, token.RBRACKET, token.RBRACE, token.IN:
		return true
	}
	return false
}

func (p *Parser) parseExprOrStar() ast.Expr {
	if p.at(token.STAR) {
		pos := p.cur().Pos
		p.advance()
		return &ast.Starred{Base: ast.Base{Pos: pos}, Value: p.parseExpr()}
	}
	return p.parseExpr()
}

// parseTarget parses a single assignment/for/with/del target: an atom with
// trailers, or a parenthesized/bracketed target list. It deliberately
// reuses the full expression grammar (rather than a restricted target
// grammar) since Name/Attribute/Subscript/Tuple/List/Starred are already
// valid expression productions and '=' never appears inside an expression.
func (p *Parser) parseTarget() ast.Expr {
	return p.parseExprOrStar()
}

// parseTargetList parses the target clause of a `for` header: one or more
// comma-separated targets up to (but not including) the `in` keyword. The
// header's own `in` (the first one outside brackets) is hidden from the
// comparison level while the targets are parsed, then restored for the caller.
func (p *Parser) parseTargetList() ast.Expr {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		switch k := p.toks[i].Kind; {
		case k == token.LPAREN || k == token.LBRACKET || k == token.LBRACE:
			depth++
		case k == token.RPAREN || k == token.RBRACKET || k == token.RBRACE:
			depth--
		case k == token.IN && depth == 0:
			p.toks[i].Kind = token.EOF
			defer func() { p.toks[i].Kind = token.IN }()
			return p.parseExprList()
		}
	}
	return p.parseExprList()
}

// parseExpr parses a full expression, starting at the ternary level.
func (p *Parser) parseExpr() ast.Expr {
	if p.at(token.LAMBDA) {
		return p.parseLambda()
	}
	if p.at(token.YIELD) {
		return p.parseYield()
	}
	return p.parseTernary()
}

func (p *Parser) parseLambda() ast.Expr {
	pos := p.cur().Pos
	p.advance()
	var params []ast.Param
	for !p.at(token.COLON) && !p.at(token.EOF) {
		var pm ast.Param
		switch p.cur().Kind {
		case token.STAR:
			p.advance()
			pm.Star = true
			if p.at(token.IDENT) {
				pm.Name = p.advance().Literal
			}
		case token.DOUBSTAR:
			p.advance()
			pm.DoubStar = true
			pm.Name = p.expect(token.IDENT).Literal
		default:
			pm.Name = p.expect(token.IDENT).Literal
		}
		if p.at(token.ASSIGN) {
			p.advance()
			pm.Default = p.parseTernary()
		}
		params = append(params, pm)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.COLON)
	body := p.parseExpr()
	return &ast.Lambda{Base: ast.Base{Pos: pos}, Params: params, Body: body}
}

func (p *Parser) parseYield() ast.Expr {
	pos := p.cur().Pos
	p.advance()
	if p.at(token.FROM) {
		p.advance()
		val := p.parseExpr()
		return &ast.Call{
			Base: ast.Base{Pos: pos},
			Func: &ast.Name{Base: ast.Base{Pos: pos}, Id: "__yield_from__"},
			Args: []ast.Expr{val},
		}
	}
	if p.atExprListEnd() {
		return &ast.Call{Base: ast.Base{Pos: pos}, Func: &ast.Name{Base: ast.Base{Pos: pos}, Id: "__yield__"}}
	}
	val := p.parseExprList()
	return &ast.Call{
		Base: ast.Base{Pos: pos},
		Func: &ast.Name{Base: ast.Base{Pos: pos}, Id: "__yield__"},
		Args: []ast.Expr{val},
	}
}

// parseTernary handles `body if test else orelse`.
func (p *Parser) parseTernary() ast.Expr {
	body := p.parseOr()
	if p.at(token.IF) {
		p.advance()
		test := p.parseOr()
		p.expect(token.ELSE)
		orelse := p.parseExpr()
		return &ast.IfExp{Base: ast.Base{Pos: body.Position()}, Test: test, Body: body, Orelse: orelse}
	}
	return body
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	if !p.at(token.OR) {
		return left
	}
	values := []ast.Expr{left}
	pos := left.Position()
	for p.at(token.OR) {
		p.advance()
		values = append(values, p.parseAnd())
	}
	return &ast.BoolOp{Base: ast.Base{Pos: pos}, Op: token.OR, Values: values}
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseNot()
	if !p.at(token.AND) {
		return left
	}
	values := []ast.Expr{left}
	pos := left.Position()
	for p.at(token.AND) {
		p.advance()
		values = append(values, p.parseNot())
	}
	return &ast.BoolOp{Base: ast.Base{Pos: pos}, Op: token.AND, Values: values}
}

func (p *Parser) parseNot() ast.Expr {
	if p.at(token.NOT) {
		pos := p.cur().Pos
		p.advance()
		operand := p.parseNot()
		return &ast.UnaryOp{Base: ast.Base{Pos: pos}, Op: token.NOT, Operand: operand}
	}
	return p.parseComparison()
}

var compareOps = map[token.Kind]bool{
	token.LT: true, token.GT: true, token.LE: true, token.GE: true,
	token.EQ: true, token.NEQ: true, token.IN: true, token.IS: true,
	token.NOTIN: true, token.ISNOT: true,
}

func (p *Parser) parseComparison() ast.Expr {
	left := p.parseBitOr()
	if !p.isComparisonStart() {
		return left
	}
	pos := left.Position()
	var ops []token.Kind
	var comps []ast.Expr
	for p.isComparisonStart() {
		op := p.consumeCompareOp()
		ops = append(ops, op)
		comps = append(comps, p.parseBitOr())
	}
	return &ast.Compare{Base: ast.Base{Pos: pos}, Left: left, Ops: ops, Comps: comps}
}

func (p *Parser) isComparisonStart() bool {
	switch p.cur().Kind {
	case token.LT, token.GT, token.LE, token.GE, token.EQ, token.NEQ, token.IN:
		return true
	case token.NOT:
		return p.peek(1).Kind == token.IN
	case token.IS:
		return true
	}
	return false
}

// consumeCompareOp consumes one comparison operator, synthesizing NOTIN/ISNOT
// from the two-keyword forms `not in` / `is not`.
func (p *Parser) consumeCompareOp() token.Kind {
	switch p.cur().Kind {
	case token.NOT:
		p.advance() // not
		p.expect(token.IN)
		return token.NOTIN
	case token.IS:
		p.advance()
		if p.at(token.NOT) {
			p.advance()
			return token.ISNOT
		}
		return token.IS
	default:
		return p.advance().Kind
	}
}

func (p *Parser) parseBitOr() ast.Expr {
	left := p.parseBitXor()
	for p.at(token.VBAR) {
		pos := p.cur().Pos
		p.advance()
		right := p.parseBitXor()
		left = &ast.BinOp{Base: ast.Base{Pos: pos}, Left: left, Op: token.VBAR, Right: right}
	}
	return left
}

func (p *Parser) parseBitXor() ast.Expr {
	left := p.parseBitAnd()
	for p.at(token.CARET) {
		pos := p.cur().Pos
		p.advance()
		right := p.parseBitAnd()
		left = &ast.BinOp{Base: ast.Base{Pos: pos}, Left: left, Op: token.CARET, Right: right}
	}
	return left
}

func (p *Parser) parseBitAnd() ast.Expr {
	left := p.parseShift()
	for p.at(token.AMP) {
		pos := p.cur().Pos
		p.advance()
		right := p.parseShift()
		left = &ast.BinOp{Base: ast.Base{Pos: pos}, Left: left, Op: token.AMP, Right: right}
	}
	return left
}

func (p *Parser) parseShift() ast.Expr {
	left := p.parseArith()
	for p.at(token.LSHIFT) || p.at(token.RSHIFT) {
		op := p.cur().Kind
		pos := p.cur().Pos
		p.advance()
		right := p.parseArith()
		left = &ast.BinOp{Base: ast.Base{Pos: pos}, Left: left, Op: op, Right: right}
	}
	return left
}

func (p *Parser) parseArith() ast.Expr {
	left := p.parseTerm()
	for p.at(token.PLUS) || p.at(token.MINUS) {
		op := p.cur().Kind
		pos := p.cur().Pos
		p.advance()
		right := p.parseTerm()
		left = &ast.BinOp{Base: ast.Base{Pos: pos}, Left: left, Op: op, Right: right}
	}
	return left
}

func (p *Parser) parseTerm() ast.Expr {
	left := p.parseFactor()
	for p.at(token.STAR) || p.at(token.SLASH) || p.at(token.DSLASH) || p.at(token.PERCENT) || p.at(token.AT) {
		op := p.cur().Kind
		pos := p.cur().Pos
		p.advance()
		right := p.parseFactor()
		left = &ast.BinOp{Base: ast.Base{Pos: pos}, Left: left, Op: op, Right: right}
	}
	return left
}

func (p *Parser) parseFactor() ast.Expr {
	switch p.cur().Kind {
	case token.PLUS, token.MINUS, token.TILDE:
		op := p.cur().Kind
		pos := p.cur().Pos
		p.advance()
		return &ast.UnaryOp{Base: ast.Base{Pos: pos}, Op: op, Operand: p.parseFactor()}
	}
	return p.parsePower()
}

func (p *Parser) parsePower() ast.Expr {
	left := p.parseAwait()
	if p.at(token.DOUBSTAR) {
		pos := p.cur().Pos
		p.advance()
		right := p.parseFactor() // right-associative
		return &ast.BinOp{Base: ast.Base{Pos: pos}, Left: left, Op: token.DOUBSTAR, Right: right}
	}
	return left
}

func (p *Parser) parseAwait() ast.Expr {
	if p.at(token.AWAIT) {
		pos := p.cur().Pos
		p.advance()
		operand := p.parseUnaryPostfix()
		return &ast.Call{Base: ast.Base{Pos: pos}, Func: &ast.Name{Base: ast.Base{Pos: pos}, Id: "__await__"}, Args: []ast.Expr{operand}}
	}
	return p.parseUnaryPostfix()
}

// parseUnaryPostfix parses an atom followed by any number of trailers:
// attribute access, subscription, and call.
func (p *Parser) parseUnaryPostfix() ast.Expr {
	e := p.parseAtom()
	for {
		switch p.cur().Kind {
		case token.DOT:
			p.advance()
			attr := p.expect(token.IDENT).Literal
			e = &ast.Attribute{Base: ast.Base{Pos: e.Position()}, Value: e, Attr: attr}
		case token.LPAREN:
			e = p.parseCallTrailer(e)
		case token.LBRACKET:
			p.advance()
			idx := p.parseSubscriptBody()
			p.expect(token.RBRACKET)
			e = &ast.Subscript{Base: ast.Base{Pos: e.Position()}, Value: e, Index: idx}
		default:
			return e
		}
	}
}

// parseSubscriptBody handles `a[i]`, `a[i:j]`, `a[i:j:k]` and comma-separated
// multi-index slices by building a synthetic Tuple of the slice pieces using
// Name("__slice__") calls, keeping the AST shape uniform with ordinary
// indexing rather than adding a dedicated Slice node.
func (p *Parser) parseSubscriptBody() ast.Expr {
	first := p.parseSliceItem()
	if !p.at(token.COMMA) {
		return first
	}
	elts := []ast.Expr{first}
	pos := first.Position()
	for p.at(token.COMMA) {
		p.advance()
		if p.at(token.RBRACKET) {
			break
		}
		elts = append(elts, p.parseSliceItem())
	}
	return &ast.Tuple{Base: ast.Base{Pos: pos}, Elts: elts}
}

func (p *Parser) parseSliceItem() ast.Expr {
	pos := p.cur().Pos
	var lower, upper, step ast.Expr
	if !p.at(token.COLON) && !p.at(token.RBRACKET) && !p.at(token.COMMA) {
		lower = p.parseExpr()
	}
	if !p.at(token.COLON) {
		return lower
	}
	p.advance()
	if !p.at(token.COLON) && !p.at(token.RBRACKET) && !p.at(token.COMMA) {
		upper = p.parseExpr()
	}
	if p.at(token.COLON) {
		p.advance()
		if !p.at(token.RBRACKET) && !p.at(token.COMMA) {
			step = p.parseExpr()
		}
	}
	args := []ast.Expr{nilOrNone(lower, pos), nilOrNone(upper, pos), nilOrNone(step, pos)}
	return &ast.Call{Base: ast.Base{Pos: pos}, Func: &ast.Name{Base: ast.Base{Pos: pos}, Id: "__slice__"}, Args: args}
}

func nilOrNone(e ast.Expr, pos token.Pos) ast.Expr {
	if e != nil {
		return e
	}
	return &ast.Constant{Base: ast.Base{Pos: pos}, Kind: ast.ConstNone, Value: "None"}
}

func (p *Parser) parseCallTrailer(fn ast.Expr) ast.Expr {
	pos := p.cur().Pos
	p.advance() // (
	call := &ast.Call{Base: ast.Base{Pos: fn.Position()}, Func: fn}
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		switch {
		case p.at(token.DOUBSTAR):
			p.advance()
			call.Keywords = append(call.Keywords, ast.Keyword{Name: "", Value: p.parseExpr()})
		case p.at(token.STAR):
			p.advance()
			call.Args = append(call.Args, &ast.Starred{Base: ast.Base{Pos: pos}, Value: p.parseExpr()})
		case p.at(token.IDENT) && p.peek(1).Kind == token.ASSIGN:
			name := p.advance().Literal
			p.advance() // =
			call.Keywords = append(call.Keywords, ast.Keyword{Name: name, Value: p.parseExpr()})
		default:
			e := p.parseExpr()
			if p.at(token.FOR) || (p.at(token.ASYNC) && p.peek(1).Kind == token.FOR) {
				// bare generator expression argument: f(x for x in y)
				e = p.parseComprehensionTail(e, e.Position(), ast.CompGenerator, nil)
			}
			call.Args = append(call.Args, e)
		}
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RPAREN)
	return call
}

// parseAtom parses a single primary expression: literal, name, parenthesized
// group/tuple/generator, list/set/dict display or comprehension.
func (p *Parser) parseAtom() ast.Expr {
	tok := p.cur()
	switch tok.Kind {
	case token.IDENT:
		p.advance()
		return &ast.Name{Base: ast.Base{Pos: tok.Pos}, Id: tok.Literal}
	case token.INT:
		p.advance()
		return &ast.Constant{Base: ast.Base{Pos: tok.Pos}, Kind: ast.ConstInt, Value: tok.Literal}
	case token.FLOAT:
		p.advance()
		return &ast.Constant{Base: ast.Base{Pos: tok.Pos}, Kind: ast.ConstFloat, Value: tok.Literal}
	case token.STRING:
		return p.parseStringRun(tok.Pos)
	case token.FSTRING:
		return p.parseStringRun(tok.Pos)
	case token.TRUE:
		p.advance()
		return &ast.Constant{Base: ast.Base{Pos: tok.Pos}, Kind: ast.ConstBool, Value: "True"}
	case token.FALSE:
		p.advance()
		return &ast.Constant{Base: ast.Base{Pos: tok.Pos}, Kind: ast.ConstBool, Value: "False"}
	case token.NONE:
		p.advance()
		return &ast.Constant{Base: ast.Base{Pos: tok.Pos}, Kind: ast.ConstNone, Value: "None"}
	case token.ELLIPSIS:
		p.advance()
		return &ast.Constant{Base: ast.Base{Pos: tok.Pos}, Kind: ast.ConstEllipsis, Value: "..."}
	case token.LPAREN:
		return p.parseParenForm()
	case token.LBRACKET:
		return p.parseBracketForm()
	case token.LBRACE:
		return p.parseBraceForm()
	default:
		p.errorf(tok.Pos, "unexpected token %s %q in expression", tok.Kind, tok.Literal)
		p.advance()
		return &ast.Constant{Base: ast.Base{Pos: tok.Pos}, Kind: ast.ConstNone, Value: "None"}
	}
}

// parseStringRun merges adjacent string/f-string literal tokens (implicit
// concatenation, e.g. `"a" "b"`) into one expression: a Constant when every
// piece is a plain string, otherwise a JoinedStr.
func (p *Parser) parseStringRun(pos token.Pos) ast.Expr {
	var parts []ast.Expr
	plain := true
	for p.at(token.STRING) || p.at(token.FSTRING) {
		tok := p.advance()
		if tok.Kind == token.STRING {
			parts = append(parts, &ast.Constant{Base: ast.Base{Pos: tok.Pos}, Kind: ast.ConstStr, Value: tok.Literal})
		} else {
			plain = false
			parts = append(parts, p.parseFString(tok)...)
		}
	}
	if plain && len(parts) == 1 {
		return parts[0]
	}
	if plain {
		var sb strings.Builder
		for _, pc := range parts {
			sb.WriteString(pc.(*ast.Constant).Value)
		}
		return &ast.Constant{Base: ast.Base{Pos: pos}, Kind: ast.ConstStr, Value: sb.String()}
	}
	return &ast.JoinedStr{Base: ast.Base{Pos: pos}, Values: parts}
}

// parseFString splits one f-string token's raw template body into literal
// text and FormattedValue pieces, recursively invoking a fresh parser over
// each `{expr[:spec]}` substring. Doubled braces `{{`/`}}` escape to a
// literal brace, same as the source language's string formatting rules.
func (p *Parser) parseFString(tok token.Token) []ast.Expr {
	body := tok.Literal
	var out []ast.Expr
	var lit strings.Builder
	flushLit := func() {
		if lit.Len() > 0 {
			out = append(out, &ast.Constant{Base: ast.Base{Pos: tok.Pos}, Kind: ast.ConstStr, Value: lit.String()})
			lit.Reset()
		}
	}
	i := 0
	for i < len(body) {
		c := body[i]
		switch c {
		case '{':
			if i+1 < len(body) && body[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			flushLit()
			depth := 1
			j := i + 1
			for j < len(body) && depth > 0 {
				switch body[j] {
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						goto found
					}
				}
				j++
			}
		found:
			inner := body[i+1 : j]
			exprText, spec := splitFormatSpec(inner)
			sub := New(lexer.New(exprText, tok.Pos.File))
			val := sub.parseExpr()
			out = append(out, &ast.FormattedValue{Base: ast.Base{Pos: tok.Pos}, Value: val, Spec: spec})
			i = j + 1
		case '}':
			if i+1 < len(body) && body[i+1] == '}' {
				lit.WriteByte('}')
				i += 2
				continue
			}
			lit.WriteByte('}')
			i++
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flushLit()
	if len(out) == 0 {
		out = append(out, &ast.Constant{Base: ast.Base{Pos: tok.Pos}, Kind: ast.ConstStr, Value: ""})
	}
	return out
}

// splitFormatSpec separates `expr!r:spec` into the expression text and the
// format-spec text, dropping a conversion flag (`!r`/`!s`/`!a`) if present.
// Only the first top-level ':' splits the spec — colons inside a nested
// slice or dict literal are skipped via bracket-depth tracking.
func splitFormatSpec(s string) (expr, spec string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ':':
			if depth == 0 {
				return trimConversion(s[:i]), s[i+1:]
			}
		}
	}
	return trimConversion(s), ""
}

func trimConversion(s string) string {
	if n := len(s); n >= 2 && s[n-2] == '!' {
		return s[:n-2]
	}
	return s
}

func (p *Parser) parseParenForm() ast.Expr {
	pos := p.cur().Pos
	p.advance()
	p.skipNewlines()
	if p.at(token.RPAREN) {
		p.advance()
		return &ast.Tuple{Base: ast.Base{Pos: pos}}
	}
	first := p.parseExprOrStar()
	p.skipNewlines()
	if p.at(token.FOR) || (p.at(token.ASYNC) && p.peek(1).Kind == token.FOR) {
		gen := p.parseComprehensionTail(first, pos, ast.CompGenerator, nil)
		p.skipNewlines()
		p.expect(token.RPAREN)
		return gen
	}
	if p.at(token.COMMA) {
		elts := []ast.Expr{first}
		for p.at(token.COMMA) {
			p.advance()
			p.skipNewlines()
			if p.at(token.RPAREN) {
				break
			}
			elts = append(elts, p.parseExprOrStar())
			p.skipNewlines()
		}
		p.expect(token.RPAREN)
		return &ast.Tuple{Base: ast.Base{Pos: pos}, Elts: elts}
	}
	p.skipNewlines()
	p.expect(token.RPAREN)
	return first
}

func (p *Parser) parseBracketForm() ast.Expr {
	pos := p.cur().Pos
	p.advance()
	p.skipNewlines()
	if p.at(token.RBRACKET) {
		p.advance()
		return &ast.List{Base: ast.Base{Pos: pos}}
	}
	first := p.parseExprOrStar()
	p.skipNewlines()
	if p.at(token.FOR) || (p.at(token.ASYNC) && p.peek(1).Kind == token.FOR) {
		comp := p.parseComprehensionTail(first, pos, ast.CompList, nil)
		p.skipNewlines()
		p.expect(token.RBRACKET)
		return comp
	}
	elts := []ast.Expr{first}
	for p.at(token.COMMA) {
		p.advance()
		p.skipNewlines()
		if p.at(token.RBRACKET) {
			break
		}
		elts = append(elts, p.parseExprOrStar())
		p.skipNewlines()
	}
	p.skipNewlines()
	p.expect(token.RBRACKET)
	return &ast.List{Base: ast.Base{Pos: pos}, Elts: elts}
}

func (p *Parser) parseBraceForm() ast.Expr {
	pos := p.cur().Pos
	p.advance()
	p.skipNewlines()
	if p.at(token.RBRACE) {
		p.advance()
		return &ast.Dict{Base: ast.Base{Pos: pos}}
	}
	if p.at(token.DOUBSTAR) {
		p.advance()
		val := p.parseOr()
		entries := []ast.DictEntry{{Key: nil, Value: val}}
		return p.finishDict(pos, entries)
	}
	first := p.parseExprOrStar()
	if p.at(token.COLON) {
		p.advance()
		val := p.parseExpr()
		p.skipNewlines()
		if p.at(token.FOR) || (p.at(token.ASYNC) && p.peek(1).Kind == token.FOR) {
			comp := p.parseComprehensionTail(first, pos, ast.CompDict, val)
			p.skipNewlines()
			p.expect(token.RBRACE)
			return comp
		}
		entries := []ast.DictEntry{{Key: first, Value: val}}
		return p.finishDict(pos, entries)
	}
	p.skipNewlines()
	if p.at(token.FOR) || (p.at(token.ASYNC) && p.peek(1).Kind == token.FOR) {
		comp := p.parseComprehensionTail(first, pos, ast.CompSet, nil)
		p.skipNewlines()
		p.expect(token.RBRACE)
		return comp
	}
	elts := []ast.Expr{first}
	for p.at(token.COMMA) {
		p.advance()
		p.skipNewlines()
		if p.at(token.RBRACE) {
			break
		}
		elts = append(elts, p.parseExprOrStar())
		p.skipNewlines()
	}
	p.skipNewlines()
	p.expect(token.RBRACE)
	return &ast.Set{Base: ast.Base{Pos: pos}, Elts: elts}
}

func (p *Parser) finishDict(pos token.Pos, entries []ast.DictEntry) ast.Expr {
	for p.at(token.COMMA) {
		p.advance()
		p.skipNewlines()
		if p.at(token.RBRACE) {
			break
		}
		if p.at(token.DOUBSTAR) {
			p.advance()
			entries = append(entries, ast.DictEntry{Key: nil, Value: p.parseOr()})
			continue
		}
		key := p.parseExpr()
		p.expect(token.COLON)
		val := p.parseExpr()
		entries = append(entries, ast.DictEntry{Key: key, Value: val})
		p.skipNewlines()
	}
	p.skipNewlines()
	p.expect(token.RBRACE)
	return &ast.Dict{Base: ast.Base{Pos: pos}, Entries: entries}
}

// parseComprehensionTail parses the `for target in iter [if cond]*
// [for target2 in iter2 ...]*` clauses following the already-parsed element
// expression, producing a Comp node of the given kind.
func (p *Parser) parseComprehensionTail(elt ast.Expr, pos token.Pos, kind ast.CompKind, valueElt ast.Expr) ast.Expr {
	var gens []ast.Comprehension
	for p.at(token.FOR) || (p.at(token.ASYNC) && p.peek(1).Kind == token.FOR) {
		if p.at(token.ASYNC) {
			p.advance()
		}
		p.advance() // for
		target := p.parseTargetList()
		p.expect(token.IN)
		iter := p.parseOr()
		var ifs []ast.Expr
		for p.at(token.IF) {
			p.advance()
			ifs = append(ifs, p.parseOrNoCondExpr())
		}
		gens = append(gens, ast.Comprehension{Target: target, Iter: iter, Ifs: ifs})
	}
	return &ast.Comp{Base: ast.Base{Pos: pos}, Kind: kind, Elt: elt, ValueElt: valueElt, Generators: gens}
}

// parseOrNoCondExpr parses a comprehension `if` guard: the ternary `if` form
// is ambiguous with the guard's own `if`, so guards bind at the `or` level,
// matching the grammar's conditional-expression-free comp_if production.
func (p *Parser) parseOrNoCondExpr() ast.Expr {
	return p.parseOr()
}
