// Package parser turns a token stream from internal/lexer into the AST
// defined by internal/ast, via straightforward recursive descent — the same
// shape as the teacher's hand-written parser, adapted to a Python-like
// statement/expression grammar instead of a functional one.
package parser

import (
	"fmt"

	"github.com/tinovyatkin/cribo/internal/ast"
	"github.com/tinovyatkin/cribo/internal/lexer"
	"github.com/tinovyatkin/cribo/internal/token"
)

// Parser consumes a pre-tokenized stream and builds an *ast.File.
type Parser struct {
	toks []token.Token
	pos  int
	file string
	errs []error
}

// New tokenizes the given lexer's input fully and returns a ready Parser.
func New(l *lexer.Lexer) *Parser {
	toks := l.Tokenize()
	p := &Parser{toks: toks}
	for _, err := range l.Errors() {
		p.errs = append(p.errs, err)
	}
	if len(toks) > 0 {
		p.file = toks[0].Pos.File
	}
	return p
}

// Errors returns every parse (and lexical) error accumulated so far.
func (p *Parser) Errors() []error { return p.errs }

func (p *Parser) errorf(pos token.Pos, format string, args ...any) {
	p.errs = append(p.errs, fmt.Errorf("%s: %s", pos, fmt.Sprintf(format, args...)))
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) peek(n int) token.Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind) token.Token {
	if !p.at(k) {
		p.errorf(p.cur().Pos, "expected %s, got %s %q", k, p.cur().Kind, p.cur().Literal)
		return p.cur()
	}
	return p.advance()
}

// skipNewlines consumes any run of blank NEWLINE tokens (blank lines between
// statements at the same nesting level).
func (p *Parser) skipNewlines() {
	for p.at(token.NEWLINE) {
		p.advance()
	}
}

// ParseFile parses the entire token stream as a module body.
func (p *Parser) ParseFile() *ast.File {
	f := &ast.File{}
	p.skipNewlines()
	if p.at(token.STRING) || p.at(token.FSTRING) {
		if lit := p.cur(); lit.Kind == token.STRING {
			if isDocstringPosition(p) {
				f.Docstring = lit.Literal
			}
		}
	}
	for !p.at(token.EOF) {
		p.skipNewlines()
		if p.at(token.EOF) {
			break
		}
		f.Body = append(f.Body, p.parseStatement())
		p.skipNewlines()
	}
	return f
}

// isDocstringPosition is a conservative check: true only when the string
// literal is immediately followed by a statement-ending NEWLINE, i.e. it is
// used as a bare expression statement rather than part of a larger expr.
func isDocstringPosition(p *Parser) bool {
	return p.peek(1).Kind == token.NEWLINE
}

// --- statements --------------------------------------------------------------

func (p *Parser) parseStatement() ast.Stmt {
	switch p.cur().Kind {
	case token.AT:
		return p.parseDecorated()
	case token.DEF:
		return p.parseFunctionDef(nil, false)
	case token.ASYNC:
		return p.parseAsync()
	case token.CLASS:
		return p.parseClassDef(nil)
	case token.IF:
		return p.parseIf()
	case token.FOR:
		return p.parseFor(false)
	case token.WHILE:
		return p.parseWhile()
	case token.WITH:
		return p.parseWith(false)
	case token.TRY:
		return p.parseTry()
	case token.IMPORT:
		return p.parseImport()
	case token.FROM:
		return p.parseImportFrom()
	default:
		return p.parseSimpleStatementLine()
	}
}

func (p *Parser) parseAsync() ast.Stmt {
	pos := p.cur().Pos
	p.advance() // async
	switch p.cur().Kind {
	case token.DEF:
		fn := p.parseFunctionDef(nil, true)
		return fn
	case token.FOR:
		return p.parseFor(true)
	case token.WITH:
		return p.parseWith(true)
	default:
		p.errorf(pos, "expected def/for/with after async")
		return &ast.Pass{}
	}
}

func (p *Parser) parseDecorated() ast.Stmt {
	var decorators []ast.Expr
	for p.at(token.AT) {
		p.advance()
		decorators = append(decorators, p.parseExpr())
		p.expectNewlineOrSemi()
	}
	if p.at(token.ASYNC) {
		p.advance()
		return p.parseFunctionDef(decorators, true)
	}
	if p.at(token.CLASS) {
		return p.parseClassDef(decorators)
	}
	return p.parseFunctionDef(decorators, false)
}

func (p *Parser) expectNewlineOrSemi() {
	p.skipNewlines()
}

func (p *Parser) parseParams() []ast.Param {
	p.expect(token.LPAREN)
	var params []ast.Param
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
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
		if p.at(token.COLON) {
			p.advance()
			p.parseExpr() // type annotation: parsed, not retained
		}
		if p.at(token.ASSIGN) {
			p.advance()
			pm.Default = p.parseExpr()
		}
		params = append(params, pm)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RPAREN)
	return params
}

func (p *Parser) parseFunctionDef(decorators []ast.Expr, isAsync bool) *ast.FunctionDef {
	pos := p.cur().Pos
	p.expect(token.DEF)
	name := p.expect(token.IDENT).Literal
	params := p.parseParams()
	if p.at(token.ARROW) {
		p.advance()
		p.parseExpr() // return annotation: parsed, not retained
	}
	p.expect(token.COLON)
	body, doc := p.parseBlockWithDocstring()
	return &ast.FunctionDef{
		Base:       ast.Base{Pos: pos},
		Name:       name,
		Params:     params,
		Decorators: decorators,
		Body:       body,
		Docstring:  doc,
		IsAsync:    isAsync,
	}
}

func (p *Parser) parseClassDef(decorators []ast.Expr) *ast.ClassDef {
	pos := p.cur().Pos
	p.expect(token.CLASS)
	name := p.expect(token.IDENT).Literal
	var bases []ast.Expr
	if p.at(token.LPAREN) {
		p.advance()
		for !p.at(token.RPAREN) && !p.at(token.EOF) {
			if p.at(token.IDENT) && p.peek(1).Kind == token.ASSIGN {
				// keyword base (e.g. metaclass=...): parse and discard name
				p.advance()
				p.advance()
				p.parseExpr()
			} else {
				bases = append(bases, p.parseExpr())
			}
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
		p.expect(token.RPAREN)
	}
	p.expect(token.COLON)
	body, doc := p.parseBlockWithDocstring()
	return &ast.ClassDef{Base: ast.Base{Pos: pos}, Name: name, Bases: bases, Decorators: decorators, Body: body, Docstring: doc}
}

// parseBlockWithDocstring parses an indented block and, if its first
// statement is a bare string-literal expression statement, extracts it as
// the block owner's docstring (still retained in Body for emission fidelity).
func (p *Parser) parseBlockWithDocstring() ([]ast.Stmt, string) {
	body := p.parseBlock()
	doc := ""
	if len(body) > 0 {
		if es, ok := body[0].(*ast.ExprStmt); ok {
			if c, ok := es.Value.(*ast.Constant); ok && c.Kind == ast.ConstStr {
				doc = c.Value
			}
		}
	}
	return body, doc
}

func (p *Parser) parseBlock() []ast.Stmt {
	p.skipNewlines()
	if !p.at(token.INDENT) {
		// single-line suite: `if x: y`
		var stmts []ast.Stmt
		stmts = append(stmts, p.parseSimpleStatementLine())
		return stmts
	}
	p.advance() // INDENT
	var body []ast.Stmt
	for !p.at(token.DEDENT) && !p.at(token.EOF) {
		p.skipNewlines()
		if p.at(token.DEDENT) || p.at(token.EOF) {
			break
		}
		body = append(body, p.parseStatement())
		p.skipNewlines()
	}
	if p.at(token.DEDENT) {
		p.advance()
	}
	return body
}

func (p *Parser) parseIf() *ast.If {
	pos := p.cur().Pos
	p.expect(token.IF)
	test := p.parseExpr()
	p.expect(token.COLON)
	body := p.parseBlock()
	node := &ast.If{Base: ast.Base{Pos: pos}, Test: test, Body: body}
	p.skipNewlines()
	switch p.cur().Kind {
	case token.ELIF:
		pos2 := p.cur().Pos
		p.advance()
		test2 := p.parseExpr()
		p.expect(token.COLON)
		body2 := p.parseBlock()
		nested := &ast.If{Base: ast.Base{Pos: pos2}, Test: test2, Body: body2}
		node.Orelse = []ast.Stmt{nested}
		p.skipNewlines()
		if p.at(token.ELIF) || p.at(token.ELSE) {
			rest := p.continueElifElse()
			nested.Orelse = rest
		}
	case token.ELSE:
		p.advance()
		p.expect(token.COLON)
		node.Orelse = p.parseBlock()
	}
	return node
}

// continueElifElse parses a chain of elif/else clauses recursively, used
// when an elif itself is followed by more elif/else.
func (p *Parser) continueElifElse() []ast.Stmt {
	switch p.cur().Kind {
	case token.ELIF:
		pos := p.cur().Pos
		p.advance()
		test := p.parseExpr()
		p.expect(token.COLON)
		body := p.parseBlock()
		nested := &ast.If{Base: ast.Base{Pos: pos}, Test: test, Body: body}
		p.skipNewlines()
		if p.at(token.ELIF) || p.at(token.ELSE) {
			nested.Orelse = p.continueElifElse()
		}
		return []ast.Stmt{nested}
	case token.ELSE:
		p.advance()
		p.expect(token.COLON)
		return p.parseBlock()
	}
	return nil
}

func (p *Parser) parseFor(isAsync bool) *ast.For {
	pos := p.cur().Pos
	p.expect(token.FOR)
	target := p.parseTargetList()
	p.expect(token.IN)
	iter := p.parseExprList()
	p.expect(token.COLON)
	body := p.parseBlock()
	node := &ast.For{Base: ast.Base{Pos: pos}, Target: target, Iter: iter, Body: body, IsAsync: isAsync}
	p.skipNewlines()
	if p.at(token.ELSE) {
		p.advance()
		p.expect(token.COLON)
		node.Orelse = p.parseBlock()
	}
	return node
}

func (p *Parser) parseWhile() *ast.While {
	pos := p.cur().Pos
	p.expect(token.WHILE)
	test := p.parseExpr()
	p.expect(token.COLON)
	body := p.parseBlock()
	node := &ast.While{Base: ast.Base{Pos: pos}, Test: test, Body: body}
	p.skipNewlines()
	if p.at(token.ELSE) {
		p.advance()
		p.expect(token.COLON)
		node.Orelse = p.parseBlock()
	}
	return node
}

func (p *Parser) parseWith(isAsync bool) *ast.With {
	pos := p.cur().Pos
	p.expect(token.WITH)
	var items []ast.WithItem
	for {
		ctx := p.parseExpr()
		var optional ast.Expr
		if p.at(token.AS) {
			p.advance()
			optional = p.parseTarget()
		}
		items = append(items, ast.WithItem{ContextExpr: ctx, OptionalVar: optional})
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.COLON)
	body := p.parseBlock()
	return &ast.With{Base: ast.Base{Pos: pos}, Items: items, Body: body, IsAsync: isAsync}
}

func (p *Parser) parseTry() *ast.Try {
	pos := p.cur().Pos
	p.expect(token.TRY)
	p.expect(token.COLON)
	body := p.parseBlock()
	node := &ast.Try{Base: ast.Base{Pos: pos}, Body: body}
	p.skipNewlines()
	for p.at(token.EXCEPT) {
		p.advance()
		var h ast.ExceptHandler
		if !p.at(token.COLON) {
			h.Type = p.parseExpr()
			if p.at(token.AS) {
				p.advance()
				h.Name = p.expect(token.IDENT).Literal
			}
		}
		p.expect(token.COLON)
		h.Body = p.parseBlock()
		node.Handlers = append(node.Handlers, h)
		p.skipNewlines()
	}
	if p.at(token.ELSE) {
		p.advance()
		p.expect(token.COLON)
		node.Orelse = p.parseBlock()
		p.skipNewlines()
	}
	if p.at(token.FINALLY) {
		p.advance()
		p.expect(token.COLON)
		node.Finally = p.parseBlock()
	}
	return node
}

// --- imports -------------------------------------------------------------

func (p *Parser) parseImport() *ast.Import {
	pos := p.cur().Pos
	p.expect(token.IMPORT)
	var names []ast.Alias
	for {
		name := p.parseDottedName()
		as := ""
		if p.at(token.AS) {
			p.advance()
			as = p.expect(token.IDENT).Literal
		}
		names = append(names, ast.Alias{Name: name, AsName: as})
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	p.expectSimpleStmtEnd()
	return &ast.Import{Base: ast.Base{Pos: pos}, Names: names}
}

func (p *Parser) parseDottedName() string {
	name := p.expect(token.IDENT).Literal
	for p.at(token.DOT) {
		p.advance()
		name += "." + p.expect(token.IDENT).Literal
	}
	return name
}

func (p *Parser) parseImportFrom() *ast.ImportFrom {
	pos := p.cur().Pos
	p.expect(token.FROM)
	level := 0
	for p.at(token.DOT) || p.at(token.ELLIPSIS) {
		if p.at(token.ELLIPSIS) {
			level += 3
		} else {
			level++
		}
		p.advance()
	}
	module := ""
	if p.at(token.IDENT) {
		module = p.parseDottedName()
	}
	p.expect(token.IMPORT)
	node := &ast.ImportFrom{Base: ast.Base{Pos: pos}, Level: level, Module: module}
	if p.at(token.STAR) {
		p.advance()
		node.Star = true
		p.expectSimpleStmtEnd()
		return node
	}
	paren := p.at(token.LPAREN)
	if paren {
		p.advance()
		p.skipNewlines()
	}
	for {
		name := p.expect(token.IDENT).Literal
		as := ""
		if p.at(token.AS) {
			p.advance()
			as = p.expect(token.IDENT).Literal
		}
		node.Names = append(node.Names, ast.Alias{Name: name, AsName: as})
		if p.at(token.COMMA) {
			p.advance()
			p.skipNewlines()
			if paren && p.at(token.RPAREN) {
				break
			}
			continue
		}
		break
	}
	if paren {
		p.skipNewlines()
		p.expect(token.RPAREN)
	}
	p.expectSimpleStmtEnd()
	return node
}

func (p *Parser) expectSimpleStmtEnd() {
	if p.at(token.SEMI) {
		return
	}
	if p.at(token.NEWLINE) || p.at(token.EOF) {
		return
	}
	p.errorf(p.cur().Pos, "expected end of statement, got %s %q", p.cur().Kind, p.cur().Literal)
}

// --- simple statements -------------------------------------------------------

// parseSimpleStatementLine parses one or more semicolon-separated simple
// statements on a single logical line. A lone statement is returned as is;
// several are returned grouped in one seqStmt.
func (p *Parser) parseSimpleStatementLine() ast.Stmt {
	first := p.parseOneSimpleStatement()
	if p.at(token.SEMI) {
		// Multiple simple statements on one line: group them in a seqStmt.
		rest := []ast.Stmt{first}
		for p.at(token.SEMI) {
			p.advance()
			if p.at(token.NEWLINE) || p.at(token.EOF) {
				break
			}
			rest = append(rest, p.parseOneSimpleStatement())
		}
		p.skipNewlines()
		return &seqStmt{stmts: rest}
	}
	if p.at(token.NEWLINE) {
		p.advance()
	}
	return first
}

// seqStmt groups several semicolon-separated simple statements so the parser
// can return a single ast.Stmt for one logical source line. The transformer
// and emitter both flatten it back out (see ast.Inspect / emit).
type seqStmt struct {
	ast.Pass // supplies ast.Stmt's unexported marker method
	stmts    []ast.Stmt
}

func (s *seqStmt) String() string { return "<seq>" }
func (s *seqStmt) Position() token.Pos {
	if len(s.stmts) == 0 {
		return token.Pos{}
	}
	return s.stmts[0].Position()
}

// Flatten exposes the grouped statements for packages outside parser that
// need to iterate a flat statement list (symbol collection, transformation,
// emission).
func Flatten(stmts []ast.Stmt) []ast.Stmt {
	var out []ast.Stmt
	for _, s := range stmts {
		if seq, ok := s.(*seqStmt); ok {
			out = append(out, Flatten(seq.stmts)...)
			continue
		}
		out = append(out, s)
	}
	return out
}

func (p *Parser) parseOneSimpleStatement() ast.Stmt {
	pos := p.cur().Pos
	switch p.cur().Kind {
	case token.GLOBAL:
		p.advance()
		return &ast.Global{Base: ast.Base{Pos: pos}, Names: p.parseNameList()}
	case token.NONLOCAL:
		p.advance()
		return &ast.Nonlocal{Base: ast.Base{Pos: pos}, Names: p.parseNameList()}
	case token.DEL:
		p.advance()
		var targets []ast.Expr
		for {
			targets = append(targets, p.parseTarget())
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
		return &ast.Delete{Base: ast.Base{Pos: pos}, Targets: targets}
	case token.RETURN:
		p.advance()
		if p.at(token.NEWLINE) || p.at(token.SEMI) || p.at(token.EOF) {
			return &ast.Return{Base: ast.Base{Pos: pos}}
		}
		return &ast.Return{Base: ast.Base{Pos: pos}, Value: p.parseExprList()}
	case token.RAISE:
		p.advance()
		if p.at(token.NEWLINE) || p.at(token.SEMI) || p.at(token.EOF) {
			return &ast.Raise{Base: ast.Base{Pos: pos}}
		}
		exc := p.parseExpr()
		var cause ast.Expr
		if p.at(token.FROM) {
			p.advance()
			cause = p.parseExpr()
		}
		return &ast.Raise{Base: ast.Base{Pos: pos}, Exc: exc, Cause: cause}
	case token.PASS:
		p.advance()
		return &ast.Pass{Base: ast.Base{Pos: pos}}
	case token.BREAK:
		p.advance()
		return &ast.Break{Base: ast.Base{Pos: pos}}
	case token.CONTINUE:
		p.advance()
		return &ast.Continue{Base: ast.Base{Pos: pos}}
	case token.IMPORT:
		return p.parseImport()
	case token.FROM:
		return p.parseImportFrom()
	default:
		return p.parseExprOrAssign(pos)
	}
}

func (p *Parser) parseNameList() []string {
	var names []string
	names = append(names, p.expect(token.IDENT).Literal)
	for p.at(token.COMMA) {
		p.advance()
		names = append(names, p.expect(token.IDENT).Literal)
	}
	return names
}

var augOps = map[token.Kind]bool{
	token.PLUSEQ: true, token.MINUSEQ: true, token.STAREQ: true, token.SLASHEQ: true,
	token.DSLASHEQ: true, token.PERCENTEQ: true, token.AMPEQ: true, token.VBAREQ: true,
	token.CARETEQ: true, token.RSHIFTEQ: true, token.LSHIFTEQ: true, token.DOUBSTAREQ: true,
}

func (p *Parser) parseExprOrAssign(pos token.Pos) ast.Stmt {
	first := p.parseExprList()

	if p.at(token.COLON) {
		p.advance()
		annotation := p.parseExpr()
		var value ast.Expr
		if p.at(token.ASSIGN) {
			p.advance()
			value = p.parseExprList()
		}
		return &ast.AnnAssign{Base: ast.Base{Pos: pos}, Target: first, Annotation: annotation, Value: value}
	}

	if augOps[p.cur().Kind] {
		op := p.advance().Kind
		value := p.parseExprList()
		return &ast.AugAssign{Base: ast.Base{Pos: pos}, Target: first, Op: op, Value: value}
	}

	if p.at(token.ASSIGN) {
		targets := []ast.Expr{first}
		var value ast.Expr
		for p.at(token.ASSIGN) {
			p.advance()
			value = p.parseExprList()
			if p.at(token.ASSIGN) {
				targets = append(targets, value)
			}
		}
		return &ast.Assign{Base: ast.Base{Pos: pos}, Targets: targets, Value: value}
	}

	return &ast.ExprStmt{Base: ast.Base{Pos: pos}, Value: first}
}
