// Package emit implements component I: ordering every module's rewritten
// body into the final section layout and delegating AST-to-text rendering
// to the unparse service (spec §4.I / §6).
package emit

import (
	"strings"

	"github.com/tinovyatkin/cribo/internal/ast"
	"github.com/tinovyatkin/cribo/internal/unparse"
)

// WrappedModule is one Wrap-disposition module's emitted pieces: its
// generated init function body and the handle name the rename plan
// reserved for it.
type WrappedModule struct {
	Handle     string
	DottedName string
	InitBody   []ast.Stmt // the module's rewritten top-level statements, run once
	// Exports lists the module's top-level bindings (spec §4.F's
	// ExportedNames set) that must be forwarded onto the handle once the
	// init body has run, so `from this import name` elsewhere resolves via
	// handle.name exactly as it would against the original module object.
	Exports []string
}

// InlinedModule is one Inline-disposition module's rewritten body, in the
// order the emitter must place it.
type InlinedModule struct {
	DottedName string
	Body       []ast.Stmt
}

// Artifact is everything the emitter assembles before rendering to text.
type Artifact struct {
	FutureImports   []ast.Stmt // `__future__` imports; must appear first in the output
	HoistedImports  []ast.Stmt // stdlib/third-party imports, deduplicated
	Wrapped         []WrappedModule
	Inlined         []InlinedModule
	EntryBody       []ast.Stmt
	RuntimeShimName string // not read by Render, which spells the `__cribo_` prefix itself
}

// Render produces the final output text, in the section order spec §6
// mandates: future imports, hoisted imports, wrapped-module init functions,
// the module registry/import-hook shim, topologically ordered inlined
// modules (leaves first — callers populate Inlined in that order already),
// then the entry script body.
func Render(a *Artifact) string {
	var sb strings.Builder

	writeSection(&sb, a.FutureImports)
	writeSection(&sb, a.HoistedImports)

	for _, w := range a.Wrapped {
		sb.WriteString(renderInitFunction(w))
		sb.WriteString("\n\n")
	}

	if len(a.Wrapped) > 0 {
		sb.WriteString(renderRegistry(a.Wrapped))
		sb.WriteString("\n\n")
		sb.WriteString(renderImportHook())
		sb.WriteString("\n\n")
	}

	for _, m := range a.Inlined {
		for _, s := range m.Body {
			sb.WriteString(unparse.Stmt(s))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	for _, s := range a.EntryBody {
		sb.WriteString(unparse.Stmt(s))
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeSection(sb *strings.Builder, stmts []ast.Stmt) {
	if len(stmts) == 0 {
		return
	}
	for _, s := range stmts {
		sb.WriteString(unparse.Stmt(s))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// renderInitFunction emits the idempotent wrapper protocol from spec §6:
// return the existing module object if already registered, otherwise build
// it, register it, and return it.
func renderInitFunction(w WrappedModule) string {
	var sb strings.Builder
	sb.WriteString("def __init_" + w.Handle + "():\n")
	sb.WriteString("    if \"" + w.DottedName + "\" in __cribo_modules__:\n")
	sb.WriteString("        return __cribo_modules__[\"" + w.DottedName + "\"]\n")
	sb.WriteString("    " + w.Handle + " = __cribo_new_module__(\"" + w.DottedName + "\")\n")
	sb.WriteString("    __cribo_modules__[\"" + w.DottedName + "\"] = " + w.Handle + "\n")
	for _, s := range w.InitBody {
		for _, line := range strings.Split(unparse.Stmt(s), "\n") {
			sb.WriteString("    " + line + "\n")
		}
	}
	for _, name := range w.Exports {
		sb.WriteString("    " + w.Handle + "." + name + " = " + name + "\n")
	}
	sb.WriteString("    return " + w.Handle + "\n")
	return sb.String()
}

// renderRegistry emits the synthetic-id mapping and initializer table the
// import hook consults (spec §6's "module registry literal" and "module
// initializer table"), plus the __cribo_new_module__ helper the init
// functions call to create a fresh module object.
func renderRegistry(wrapped []WrappedModule) string {
	var sb strings.Builder
	sb.WriteString("def __cribo_new_module__(name):\n")
	sb.WriteString("    import types\n")
	sb.WriteString("    return types.ModuleType(name)\n")
	sb.WriteString("__cribo_modules__ = {}\n")
	sb.WriteString("__cribo_init_table__ = {\n")
	for _, w := range wrapped {
		sb.WriteString("    \"" + w.DottedName + "\": __init_" + w.Handle + ",\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

// renderImportHook emits the shim that routes imports of wrapped modules'
// original dotted names through the init-function table, so `from x import
// y` anywhere in the output resolves exactly as at source-time (spec §6).
func renderImportHook() string {
	return "" +
		"def __cribo_import_hook__(name, *args, **kwargs):\n" +
		"    if name in __cribo_init_table__:\n" +
		"        return __cribo_init_table__[name]()\n" +
		"    return __cribo_real_import__(name, *args, **kwargs)\n" +
		"\n" +
		"__cribo_real_import__ = __builtins__.__import__\n" +
		"__builtins__.__import__ = __cribo_import_hook__\n"
}
