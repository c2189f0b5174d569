// Package loader implements component A of the bundling pipeline: it reads a
// source file once, parses it, and caches the result by canonicalized
// absolute path so a module reached via two different dotted names still
// yields a single SourceUnit.
package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tinovyatkin/cribo/internal/ast"
	"github.com/tinovyatkin/cribo/internal/ciboerr"
	"github.com/tinovyatkin/cribo/internal/lexer"
	"github.com/tinovyatkin/cribo/internal/parser"
	"github.com/tinovyatkin/cribo/internal/token"
)

// Classification tags a SourceUnit by where it was found.
type Classification int

const (
	Unclassified Classification = iota
	FirstParty
	ThirdParty
	Stdlib
	EntryScript
)

func (c Classification) String() string {
	switch c {
	case FirstParty:
		return "FirstParty"
	case ThirdParty:
		return "ThirdParty"
	case Stdlib:
		return "Stdlib"
	case EntryScript:
		return "EntryScript"
	default:
		return "Unclassified"
	}
}

// SourceUnit is an immutable, loaded-and-parsed source file. Classification
// is assigned by the graph builder immediately after Load
// returns and before the unit is shared with any other component — from
// that point on it is never mutated again, honoring the spec's immutability
// requirement without needing the loader to know about classification.
type SourceUnit struct {
	Path           string // canonicalized absolute filesystem path
	DottedName     string // dotted module name by which it was first reached
	File           *ast.File
	Classification Classification
}

// Loader reads and parses source files, caching by canonical path.
type Loader struct {
	cache map[string]*SourceUnit
}

// New returns an empty Loader.
func New() *Loader {
	return &Loader{cache: make(map[string]*SourceUnit)}
}

// Load reads and parses the file at path, returning the cached SourceUnit if
// this canonical path has already been loaded under a different dotted name.
// dottedName is only recorded the first time a path is loaded; later calls
// with a different dottedName for the same path still return the original
// unit (spec §3: "a file reached via two different dotted names yields one
// SourceUnit").
func (l *Loader) Load(path, dottedName string) (*SourceUnit, error) {
	canonical, err := CanonicalPath(path)
	if err != nil {
		return nil, ciboerr.Wrap(ciboerr.IoError(path, err))
	}

	if cached, ok := l.cache[canonical]; ok {
		return cached, nil
	}

	content, err := os.ReadFile(canonical)
	if err != nil {
		return nil, ciboerr.Wrap(ciboerr.IoError(path, err))
	}
	content = NormalizeContent(content)

	lx := lexer.New(string(content), canonical)
	p := parser.New(lx)
	file := p.ParseFile()
	if errs := p.Errors(); len(errs) > 0 {
		pos, msg := firstParseError(errs)
		return nil, ciboerr.Wrap(ciboerr.ParseError(canonical, pos, msg))
	}

	unit := &SourceUnit{
		Path:       canonical,
		DottedName: dottedName,
		File:       file,
	}
	l.cache[canonical] = unit
	return unit, nil
}

// Get returns the cached unit for an already-loaded canonical path, if any.
func (l *Loader) Get(canonicalPath string) (*SourceUnit, bool) {
	u, ok := l.cache[canonicalPath]
	return u, ok
}

// firstParseError extracts a position and message from the parser's
// accumulated errors for the diagnostic's Pos/Message fields. The parser
// reports plain errors, not positioned ones, so a zero Pos is used when none
// can be recovered — callers still get file and message.
func firstParseError(errs []error) (token.Pos, string) {
	if len(errs) == 0 {
		return token.Pos{}, "parse failed"
	}
	return token.Pos{}, errs[0].Error()
}

// NormalizeContent strips a UTF-8 BOM and normalizes CRLF/CR line endings to
// LF before lexing, so position arithmetic never has to account for them.
func NormalizeContent(content []byte) []byte {
	if len(content) >= 3 && content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		content = content[3:]
	}
	s := string(content)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return []byte(s)
}

// CanonicalPath resolves path to an absolute, symlink-resolved form. If the
// file does not yet exist (it will — loader paths only come from a resolver
// that already checked existence) the cleaned absolute form is used.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return filepath.Clean(abs), nil
	}
	return resolved, nil
}
