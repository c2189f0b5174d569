// Package unparse renders an AST back into source-language text. The
// bundler's own design treats AST-to-text rendering as an external,
// swappable service (spec.md §4.I); this package is Cribo's implementation
// of that service, since there is no separate pretty-printer binary to
// shell out to from a Go module.
package unparse

import (
	"fmt"
	"strings"

	"github.com/tinovyatkin/cribo/internal/ast"
	"github.com/tinovyatkin/cribo/internal/token"
)

const indentUnit = "    "

// printer accumulates rendered source text for one File.
type printer struct {
	sb     strings.Builder
	indent int
}

// File renders a complete module to source text, each top-level statement
// starting on its own line, with no blank lines between statements.
func File(f *ast.File) string {
	p := &printer{}
	for _, s := range f.Body {
		p.stmt(s)
	}
	return p.sb.String()
}

// Stmt renders a single statement (and its nested body, if any) to source
// text, starting at zero indentation. Used by the emitter to render one
// inlined module's statements individually when interleaving is needed.
func Stmt(s ast.Stmt) string {
	p := &printer{}
	p.stmt(s)
	return p.sb.String()
}

// Expr renders a single expression to source text.
func Expr(e ast.Expr) string {
	p := &printer{}
	p.expr(e)
	return p.sb.String()
}

func (p *printer) line(s string) {
	p.sb.WriteString(strings.Repeat(indentUnit, p.indent))
	p.sb.WriteString(s)
	p.sb.WriteString("\n")
}

func (p *printer) block(body []ast.Stmt) {
	p.indent++
	if len(body) == 0 {
		p.line("pass")
	}
	for _, s := range body {
		p.stmt(s)
	}
	p.indent--
}

func (p *printer) stmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Import:
		names := make([]string, len(n.Names))
		for i, a := range n.Names {
			names[i] = a.String()
		}
		p.line("import " + strings.Join(names, ", "))

	case *ast.ImportFrom:
		mod := strings.Repeat(".", n.Level) + n.Module
		if n.Star {
			p.line(fmt.Sprintf("from %s import *", mod))
			return
		}
		names := make([]string, len(n.Names))
		for i, a := range n.Names {
			names[i] = a.String()
		}
		p.line(fmt.Sprintf("from %s import %s", mod, strings.Join(names, ", ")))

	case *ast.FunctionDef:
		for _, d := range n.Decorators {
			p.line("@" + render(d))
		}
		prefix := "def"
		if n.IsAsync {
			prefix = "async def"
		}
		p.line(fmt.Sprintf("%s %s(%s):", prefix, n.Name, paramList(n.Params)))
		p.block(n.Body)

	case *ast.ClassDef:
		for _, d := range n.Decorators {
			p.line("@" + render(d))
		}
		if len(n.Bases) == 0 {
			p.line("class " + n.Name + ":")
		} else {
			bases := make([]string, len(n.Bases))
			for i, b := range n.Bases {
				bases[i] = render(b)
			}
			p.line(fmt.Sprintf("class %s(%s):", n.Name, strings.Join(bases, ", ")))
		}
		p.block(n.Body)

	case *ast.Assign:
		targets := make([]string, len(n.Targets))
		for i, t := range n.Targets {
			targets[i] = render(t)
		}
		p.line(strings.Join(targets, " = ") + " = " + render(n.Value))

	case *ast.AnnAssign:
		if n.Value != nil {
			p.line(fmt.Sprintf("%s: %s = %s", render(n.Target), render(n.Annotation), render(n.Value)))
		} else {
			p.line(fmt.Sprintf("%s: %s", render(n.Target), render(n.Annotation)))
		}

	case *ast.AugAssign:
		p.line(fmt.Sprintf("%s %s= %s", render(n.Target), n.Op, render(n.Value)))

	case *ast.Global:
		p.line("global " + strings.Join(n.Names, ", "))

	case *ast.Nonlocal:
		p.line("nonlocal " + strings.Join(n.Names, ", "))

	case *ast.Delete:
		parts := make([]string, len(n.Targets))
		for i, t := range n.Targets {
			parts[i] = render(t)
		}
		p.line("del " + strings.Join(parts, ", "))

	case *ast.Return:
		if n.Value == nil {
			p.line("return")
		} else {
			p.line("return " + render(n.Value))
		}

	case *ast.ExprStmt:
		p.line(render(n.Value))

	case *ast.Pass:
		p.line("pass")
	case *ast.Break:
		p.line("break")
	case *ast.Continue:
		p.line("continue")

	case *ast.Raise:
		switch {
		case n.Exc == nil:
			p.line("raise")
		case n.Cause != nil:
			p.line(fmt.Sprintf("raise %s from %s", render(n.Exc), render(n.Cause)))
		default:
			p.line("raise " + render(n.Exc))
		}

	case *ast.If:
		p.line("if " + render(n.Test) + ":")
		p.block(n.Body)
		p.elseClause(n.Orelse)

	case *ast.For:
		prefix := "for"
		if n.IsAsync {
			prefix = "async for"
		}
		p.line(fmt.Sprintf("%s %s in %s:", prefix, render(n.Target), render(n.Iter)))
		p.block(n.Body)
		if len(n.Orelse) > 0 {
			p.line("else:")
			p.block(n.Orelse)
		}

	case *ast.While:
		p.line("while " + render(n.Test) + ":")
		p.block(n.Body)
		if len(n.Orelse) > 0 {
			p.line("else:")
			p.block(n.Orelse)
		}

	case *ast.With:
		prefix := "with"
		if n.IsAsync {
			prefix = "async with"
		}
		items := make([]string, len(n.Items))
		for i, it := range n.Items {
			if it.OptionalVar != nil {
				items[i] = render(it.ContextExpr) + " as " + render(it.OptionalVar)
			} else {
				items[i] = render(it.ContextExpr)
			}
		}
		p.line(fmt.Sprintf("%s %s:", prefix, strings.Join(items, ", ")))
		p.block(n.Body)

	case *ast.Try:
		p.line("try:")
		p.block(n.Body)
		for _, h := range n.Handlers {
			switch {
			case h.Type == nil:
				p.line("except:")
			case h.Name != "":
				p.line(fmt.Sprintf("except %s as %s:", render(h.Type), h.Name))
			default:
				p.line("except " + render(h.Type) + ":")
			}
			p.block(h.Body)
		}
		if len(n.Orelse) > 0 {
			p.line("else:")
			p.block(n.Orelse)
		}
		if len(n.Finally) > 0 {
			p.line("finally:")
			p.block(n.Finally)
		}

	default:
		p.line(fmt.Sprintf("# unrenderable statement %T", s))
	}
}

func (p *printer) elseClause(orelse []ast.Stmt) {
	if len(orelse) == 0 {
		return
	}
	if len(orelse) == 1 {
		if nested, ok := orelse[0].(*ast.If); ok {
			p.line("elif " + render(nested.Test) + ":")
			p.block(nested.Body)
			p.elseClause(nested.Orelse)
			return
		}
	}
	p.line("else:")
	p.block(orelse)
}

func paramList(params []ast.Param) string {
	parts := make([]string, len(params))
	for i, pm := range params {
		switch {
		case pm.Star:
			parts[i] = "*" + pm.Name
		case pm.DoubStar:
			parts[i] = "**" + pm.Name
		case pm.Default != nil:
			parts[i] = pm.Name + "=" + render(pm.Default)
		default:
			parts[i] = pm.Name
		}
	}
	return strings.Join(parts, ", ")
}

// render is the expression entry point shared by statement rendering.
func render(e ast.Expr) string {
	p := &printer{}
	p.expr(e)
	return p.sb.String()
}

func (p *printer) expr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Name:
		p.sb.WriteString(n.Id)
	case *ast.Attribute:
		p.expr(n.Value)
		p.sb.WriteString(".")
		p.sb.WriteString(n.Attr)
	case *ast.Subscript:
		p.expr(n.Value)
		p.sb.WriteString("[")
		p.expr(n.Index)
		p.sb.WriteString("]")
	case *ast.Call:
		if fn, ok := n.Func.(*ast.Name); ok {
			switch fn.Id {
			case "__slice__":
				p.writeSlice(n.Args)
				return
			case "__await__":
				p.sb.WriteString("await " + render(n.Args[0]))
				return
			case "__yield__":
				if len(n.Args) == 0 {
					p.sb.WriteString("(yield)")
				} else {
					p.sb.WriteString("(yield " + render(n.Args[0]) + ")")
				}
				return
			case "__yield_from__":
				p.sb.WriteString("(yield from " + render(n.Args[0]) + ")")
				return
			}
		}
		p.expr(n.Func)
		p.sb.WriteString("(")
		parts := make([]string, 0, len(n.Args)+len(n.Keywords))
		for _, a := range n.Args {
			parts = append(parts, render(a))
		}
		for _, k := range n.Keywords {
			if k.Name == "" {
				parts = append(parts, "**"+render(k.Value))
			} else {
				parts = append(parts, k.Name+"="+render(k.Value))
			}
		}
		p.sb.WriteString(strings.Join(parts, ", "))
		p.sb.WriteString(")")
	case *ast.Constant:
		p.sb.WriteString(renderConstant(n))
	case *ast.JoinedStr:
		p.sb.WriteString(`f"`)
		for _, v := range n.Values {
			switch piece := v.(type) {
			case *ast.Constant:
				p.sb.WriteString(piece.Value)
			case *ast.FormattedValue:
				p.sb.WriteString("{")
				p.sb.WriteString(render(piece.Value))
				if piece.Spec != "" {
					p.sb.WriteString(":" + piece.Spec)
				}
				p.sb.WriteString("}")
			}
		}
		p.sb.WriteString(`"`)
	case *ast.List:
		p.sb.WriteString("[" + renderExprList(n.Elts) + "]")
	case *ast.Tuple:
		p.sb.WriteString("(" + renderExprList(n.Elts) + ")")
	case *ast.Set:
		p.sb.WriteString("{" + renderExprList(n.Elts) + "}")
	case *ast.Dict:
		parts := make([]string, len(n.Entries))
		for i, ent := range n.Entries {
			if ent.Key == nil {
				parts[i] = "**" + render(ent.Value)
			} else {
				parts[i] = render(ent.Key) + ": " + render(ent.Value)
			}
		}
		p.sb.WriteString("{" + strings.Join(parts, ", ") + "}")
	case *ast.Starred:
		p.sb.WriteString("*" + render(n.Value))
	case *ast.BinOp:
		p.sb.WriteString(fmt.Sprintf("(%s %s %s)", render(n.Left), n.Op, render(n.Right)))
	case *ast.BoolOp:
		parts := make([]string, len(n.Values))
		for i, v := range n.Values {
			parts[i] = render(v)
		}
		sep := " and "
		if n.Op == token.OR {
			sep = " or "
		}
		p.sb.WriteString("(" + strings.Join(parts, sep) + ")")
	case *ast.UnaryOp:
		op := n.Op.String()
		if n.Op == token.NOT {
			op = "not "
		}
		p.sb.WriteString("(" + op + render(n.Operand) + ")")
	case *ast.Compare:
		var sb strings.Builder
		sb.WriteString(render(n.Left))
		for i, op := range n.Ops {
			sb.WriteString(" " + op.String() + " " + render(n.Comps[i]))
		}
		p.sb.WriteString(sb.String())
	case *ast.IfExp:
		p.sb.WriteString(fmt.Sprintf("(%s if %s else %s)", render(n.Body), render(n.Test), render(n.Orelse)))
	case *ast.Lambda:
		p.sb.WriteString("lambda " + paramList(n.Params) + ": " + render(n.Body))
	case *ast.Comp:
		p.sb.WriteString(renderComp(n))
	default:
		p.sb.WriteString(fmt.Sprintf("<unrenderable %T>", e))
	}
}

// writeSlice renders the parser's synthetic `__slice__(lower, upper, step)`
// call back into `lower:upper:step` subscript text, omitting any piece that
// is a bare `None` constant (the parser's placeholder for an elided bound).
func (p *printer) writeSlice(args []ast.Expr) {
	parts := make([]string, len(args))
	for i, a := range args {
		if c, ok := a.(*ast.Constant); ok && c.Kind == ast.ConstNone {
			parts[i] = ""
			continue
		}
		parts[i] = render(a)
	}
	p.sb.WriteString(strings.Join(parts, ":"))
}

func renderExprList(elts []ast.Expr) string {
	parts := make([]string, len(elts))
	for i, e := range elts {
		parts[i] = render(e)
	}
	return strings.Join(parts, ", ")
}

func renderConstant(c *ast.Constant) string {
	switch c.Kind {
	case ast.ConstStr:
		return fmt.Sprintf("%q", c.Value)
	default:
		return c.Value
	}
}

func renderComp(n *ast.Comp) string {
	var open, close, body string
	switch n.Kind {
	case ast.CompList:
		open, close = "[", "]"
		body = render(n.Elt)
	case ast.CompSet:
		open, close = "{", "}"
		body = render(n.Elt)
	case ast.CompGenerator:
		open, close = "(", ")"
		body = render(n.Elt)
	case ast.CompDict:
		open, close = "{", "}"
		body = render(n.Elt) + ": " + render(n.ValueElt)
	}
	var clauses strings.Builder
	for _, g := range n.Generators {
		clauses.WriteString(fmt.Sprintf(" for %s in %s", render(g.Target), render(g.Iter)))
		for _, cond := range g.Ifs {
			clauses.WriteString(" if " + render(cond))
		}
	}
	return open + body + clauses.String() + close
}
