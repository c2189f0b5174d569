// Package resolve implements component C: mapping an import spec, as seen
// from some importing module, to a concrete resolved target — a first-party
// source file, a namespace package, or a third-party/stdlib name recorded
// without a path.
package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinovyatkin/cribo/internal/ciboerr"
	"github.com/tinovyatkin/cribo/internal/token"
)

func zeroPos() token.Pos { return token.Pos{} }

// Kind of import the spec describes (spec §3 ImportEdge tags).
type Kind int

const (
	ImportModule Kind = iota
	FromImport
	StarImport
	RelativeFromImport
)

// ImportSpec is the input to Resolve, built from an ast.Import/ImportFrom
// node by the graph builder.
type ImportSpec struct {
	Kind   Kind
	Module string   // dotted name; may be empty for `from . import x`
	Level  int      // number of leading dots; 0 for absolute
	Names  []string // imported names, for FromImport/RelativeFromImport
	Star   bool
}

// NameOrigin says whether a from-import name resolved to a submodule file or
// to an attribute expected inside the package's init module.
type NameOrigin int

const (
	OriginUnknown NameOrigin = iota
	OriginSubmodule
	OriginAttribute
)

// ResolvedTarget is the result of resolving an ImportSpec against the
// configured first-party roots.
type ResolvedTarget struct {
	DottedName    string
	Path          string // file path; empty if not first-party
	IsNamespace   bool   // a directory with no __init__ file
	NameOrigins   map[string]NameOrigin
}

// Resolver searches first-party roots, in declared order, for modules and
// packages. It also answers classify.FirstPartyChecker so the classifier
// can delegate first-party detection to it without an import cycle.
type Resolver struct {
	roots []string
	ext   string
}

// New returns a Resolver searching roots in the given order. ext is the
// source file suffix (e.g. ".src"); callers pass the one the loader expects.
func New(roots []string, ext string) *Resolver {
	return &Resolver{roots: roots, ext: ext}
}

// IsFirstParty implements classify.FirstPartyChecker.
func (r *Resolver) IsFirstParty(dottedName string) bool {
	_, _, ok := r.findAbsolute(dottedName)
	return ok
}

// findAbsolute searches the roots for dottedName, returning its file path
// (or "" for a namespace package) and whether it was found at all.
func (r *Resolver) findAbsolute(dottedName string) (path string, isNamespace bool, found bool) {
	rel := filepath.Join(strings.Split(dottedName, ".")...)
	for _, root := range r.roots {
		filePath := filepath.Join(root, rel+r.ext)
		if fileExists(filePath) {
			return filePath, false, true
		}
		initPath := filepath.Join(root, rel, "__init__"+r.ext)
		if fileExists(initPath) {
			return initPath, false, true
		}
		dirPath := filepath.Join(root, rel)
		if dirExists(dirPath) {
			return "", true, true
		}
	}
	return "", false, false
}

// Resolve maps spec, as imported by importerDotted (the dotted name of the
// importing module, used to compute relative-import ascent), to a
// ResolvedTarget. A RES002 report is returned if a relative import ascends
// past the top-level package, and a RES001 report (with a nearest-name
// suggestion when one exists) if the target is found under no root. Callers
// only call Resolve for names the classifier already said are FirstParty.
func (r *Resolver) Resolve(importerDotted string, spec ImportSpec) (*ResolvedTarget, error) {
	target := spec.Module
	if spec.Level > 0 {
		base, err := ascend(importerDotted, spec.Level)
		if err != nil {
			return nil, ciboerr.Wrap(ciboerr.ResolutionError(ciboerr.RES002, importerDotted, spec.Module, zeroPos()))
		}
		switch {
		case target == "":
			target = base
		case base != "":
			target = base + "." + target
		}
	}

	path, isNamespace, found := r.findAbsolute(target)
	if !found {
		rep := ciboerr.ResolutionError(ciboerr.RES001, importerDotted, spec.Module, zeroPos())
		if suggestion := ciboerr.Suggest(target, r.knownDottedNames()); suggestion != "" {
			rep = rep.WithFix(suggestion, 0.5)
		}
		return nil, ciboerr.Wrap(rep)
	}

	rt := &ResolvedTarget{DottedName: target, Path: path, IsNamespace: isNamespace}

	if spec.Kind == FromImport || spec.Kind == RelativeFromImport {
		rt.NameOrigins = make(map[string]NameOrigin, len(spec.Names))
		for _, name := range spec.Names {
			// Submodules take precedence over init-level attributes (spec §4.C).
			_, _, subFound := r.findAbsolute(target + "." + name)
			if subFound {
				rt.NameOrigins[name] = OriginSubmodule
			} else {
				rt.NameOrigins[name] = OriginAttribute
			}
		}
	}

	return rt, nil
}

// knownDottedNames lists every first-party module/package dotted name
// reachable under r's roots, used as candidates for the "did you mean"
// suggestion attached to a RES001 report.
func (r *Resolver) knownDottedNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, root := range r.roots {
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() || !strings.HasSuffix(path, r.ext) {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			rel = strings.TrimSuffix(rel, r.ext)
			rel = strings.TrimSuffix(rel, string(filepath.Separator)+"__init__")
			dotted := strings.ReplaceAll(rel, string(filepath.Separator), ".")
			if dotted != "" && !seen[dotted] {
				seen[dotted] = true
				names = append(names, dotted)
			}
			return nil
		})
	}
	return names
}

// ascend strips d trailing dotted segments from dotted, returning the
// remaining prefix (possibly ""). An error is returned if d exceeds the
// number of segments, per spec's RelativeBeyondTopLevel.
func ascend(dotted string, d int) (string, error) {
	segs := strings.Split(dotted, ".")
	// The importer's own module is one segment "deep"; ascending 1 level
	// means "the package containing the importer", i.e. drop the importer's
	// own leaf segment.
	if d > len(segs) {
		return "", fmt.Errorf("relative import ascends %d levels past %q", d, dotted)
	}
	remaining := segs[:len(segs)-d]
	return strings.Join(remaining, "."), nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
