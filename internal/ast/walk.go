package ast

// Visitor is called once per node during Inspect; returning false skips the
// node's children (mirrors the shape of go/ast.Inspect's visitor func,
// adapted to this package's own Node type).
type Visitor func(Node) bool

// Inspect traverses n depth-first, calling v for each node reached. Nested
// function/class bodies are visited too — callers that need to distinguish
// "this scope" from "a nested scope" check the node type themselves.
func Inspect(n Node, v Visitor) {
	if n == nil {
		return
	}
	if !v(n) {
		return
	}
	switch x := n.(type) {
	case *File:
		walkStmts(x.Body, v)
	case *Import, *Global, *Nonlocal, *Pass, *Break, *Continue, *Name, *Constant:
		// leaves
	case *ImportFrom:
		// leaf at the statement level (no nested expressions)
	case *FunctionDef:
		for _, d := range x.Decorators {
			Inspect(d, v)
		}
		for _, p := range x.Params {
			if p.Default != nil {
				Inspect(p.Default, v)
			}
		}
		walkStmts(x.Body, v)
	case *ClassDef:
		for _, d := range x.Decorators {
			Inspect(d, v)
		}
		for _, b := range x.Bases {
			Inspect(b, v)
		}
		walkStmts(x.Body, v)
	case *Assign:
		for _, t := range x.Targets {
			Inspect(t, v)
		}
		Inspect(x.Value, v)
	case *AnnAssign:
		Inspect(x.Target, v)
		Inspect(x.Annotation, v)
		if x.Value != nil {
			Inspect(x.Value, v)
		}
	case *AugAssign:
		Inspect(x.Target, v)
		Inspect(x.Value, v)
	case *Delete:
		for _, t := range x.Targets {
			Inspect(t, v)
		}
	case *Return:
		if x.Value != nil {
			Inspect(x.Value, v)
		}
	case *ExprStmt:
		Inspect(x.Value, v)
	case *Raise:
		if x.Exc != nil {
			Inspect(x.Exc, v)
		}
		if x.Cause != nil {
			Inspect(x.Cause, v)
		}
	case *If:
		Inspect(x.Test, v)
		walkStmts(x.Body, v)
		walkStmts(x.Orelse, v)
	case *For:
		Inspect(x.Target, v)
		Inspect(x.Iter, v)
		walkStmts(x.Body, v)
		walkStmts(x.Orelse, v)
	case *While:
		Inspect(x.Test, v)
		walkStmts(x.Body, v)
		walkStmts(x.Orelse, v)
	case *With:
		for _, it := range x.Items {
			Inspect(it.ContextExpr, v)
			if it.OptionalVar != nil {
				Inspect(it.OptionalVar, v)
			}
		}
		walkStmts(x.Body, v)
	case *Try:
		walkStmts(x.Body, v)
		for _, h := range x.Handlers {
			if h.Type != nil {
				Inspect(h.Type, v)
			}
			walkStmts(h.Body, v)
		}
		walkStmts(x.Orelse, v)
		walkStmts(x.Finally, v)
	case *Attribute:
		Inspect(x.Value, v)
	case *Subscript:
		Inspect(x.Value, v)
		Inspect(x.Index, v)
	case *Call:
		Inspect(x.Func, v)
		for _, a := range x.Args {
			Inspect(a, v)
		}
		for _, k := range x.Keywords {
			Inspect(k.Value, v)
		}
	case *FormattedValue:
		Inspect(x.Value, v)
	case *JoinedStr:
		for _, p := range x.Values {
			Inspect(p, v)
		}
	case *List:
		for _, e := range x.Elts {
			Inspect(e, v)
		}
	case *Tuple:
		for _, e := range x.Elts {
			Inspect(e, v)
		}
	case *Set:
		for _, e := range x.Elts {
			Inspect(e, v)
		}
	case *Dict:
		for _, e := range x.Entries {
			if e.Key != nil {
				Inspect(e.Key, v)
			}
			Inspect(e.Value, v)
		}
	case *Starred:
		Inspect(x.Value, v)
	case *BinOp:
		Inspect(x.Left, v)
		Inspect(x.Right, v)
	case *BoolOp:
		for _, val := range x.Values {
			Inspect(val, v)
		}
	case *UnaryOp:
		Inspect(x.Operand, v)
	case *Compare:
		Inspect(x.Left, v)
		for _, c := range x.Comps {
			Inspect(c, v)
		}
	case *IfExp:
		Inspect(x.Test, v)
		Inspect(x.Body, v)
		Inspect(x.Orelse, v)
	case *Lambda:
		for _, p := range x.Params {
			if p.Default != nil {
				Inspect(p.Default, v)
			}
		}
		Inspect(x.Body, v)
	case *Comp:
		Inspect(x.Elt, v)
		if x.ValueElt != nil {
			Inspect(x.ValueElt, v)
		}
		for _, g := range x.Generators {
			Inspect(g.Target, v)
			Inspect(g.Iter, v)
			for _, i := range g.Ifs {
				Inspect(i, v)
			}
		}
	}
}

func walkStmts(stmts []Stmt, v Visitor) {
	for _, s := range stmts {
		Inspect(s, v)
	}
}

// FreeNames returns every top-level Name reference found directly inside
// expr (not descending into nested FunctionDef/ClassDef/Lambda bodies,
// which introduce their own scope).
func FreeNames(expr Expr) []string {
	var names []string
	Inspect(expr, func(n Node) bool {
		switch x := n.(type) {
		case *Name:
			names = append(names, x.Id)
		case *Lambda, *FunctionDef, *ClassDef:
			return false
		}
		return true
	})
	return names
}
