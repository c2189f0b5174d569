// Package ciboerr provides the structured error taxonomy shared by every
// pipeline stage: a typed Report plus stable error codes, carried through
// Go's error chain via ReportError so callers can still errors.As() it.
package ciboerr

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tinovyatkin/cribo/internal/token"
)

// Error codes, grouped by pipeline stage. IO/PAR map to the loader (A),
// RES to the resolver (C), CYC to the cycle analyzer (E), ALL to symbol
// collection (F)'s __all__ handling, DYN to dynamic-import detection.
const (
	IO001 = "IO001" // source file could not be read
	IO002 = "IO002" // source file could not be canonicalized

	PAR001 = "PAR001" // source does not parse

	RES001 = "RES001" // absolute import not found under any first-party root
	RES002 = "RES002" // relative import ascends past the top-level package

	CYC001 = "CYC001" // SCC contains a temporal-paradox edge

	DYN001 = "DYN001" // dynamic import target (non-literal) reaches first-party code

	ALL001 = "ALL001" // __all__ lists a name not bound at module level
)

// Report is the canonical structured diagnostic type. Every pipeline stage
// returns *Report (wrapped via Wrap) rather than a bare error, so
// diagnostics collected across modules retain code/phase/position.
type Report struct {
	Schema  string         `json:"schema"`
	Code    string         `json:"code"`
	Phase   string         `json:"phase"`
	Message string         `json:"message"`
	Pos     *token.Pos     `json:"pos,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Fix     *Fix           `json:"fix,omitempty"`
}

// Fix is an optional suggested remediation, surfaced to the CLI.
type Fix struct {
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
}

// ReportError wraps a Report so it survives errors.As() unwrapping while
// still satisfying the error interface.
type ReportError struct {
	Rep *Report
}

func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown error"
	}
	if e.Rep.Pos != nil {
		return fmt.Sprintf("%s: %s: %s", e.Rep.Pos, e.Rep.Code, e.Rep.Message)
	}
	return e.Rep.Code + ": " + e.Rep.Message
}

// AsReport extracts a Report from an error chain, if present.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// Wrap turns a Report into an error.
func Wrap(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// ToJSON renders the report as indented JSON (deterministic key order via
// struct field order, matching encoding/json's default behavior for structs).
func (r *Report) ToJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func New(phase, code, message string, pos *token.Pos) *Report {
	return &Report{Schema: "cribo.error/v1", Code: code, Phase: phase, Message: message, Pos: pos}
}

// WithFix attaches a suggested fix and returns the report for chaining.
func (r *Report) WithFix(suggestion string, confidence float64) *Report {
	r.Fix = &Fix{Suggestion: suggestion, Confidence: confidence}
	return r
}

// WithData attaches structured context (e.g. the offending module path).
func (r *Report) WithData(key string, value any) *Report {
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	r.Data[key] = value
	return r
}

// IoError builds an IO001 report for a failed file read.
func IoError(path string, cause error) *Report {
	return New("loader", IO001, fmt.Sprintf("failed to read %s: %v", path, cause), nil).
		WithData("path", path)
}

// ParseError builds a PAR001 report from the lexer/parser's accumulated errors.
func ParseError(path string, pos token.Pos, msg string) *Report {
	return New("parser", PAR001, msg, &pos).WithData("path", path)
}

// ResolutionError builds a RES00x report for a failed import resolution.
func ResolutionError(code, importer, spec string, pos token.Pos) *Report {
	return New("resolve", code, fmt.Sprintf("cannot resolve %q from %s", spec, importer), &pos).
		WithData("importer", importer).WithData("spec", spec)
}

// UnresolvableCycle builds a CYC001 report naming the offending SCC members.
func UnresolvableCycle(members []string) *Report {
	return New("cycle", CYC001, "module cycle contains a temporal-paradox edge", nil).
		WithData("members", members)
}

// DynamicImport builds a DYN001 report for a non-literal import target.
func DynamicImport(module string, pos token.Pos) *Report {
	return New("graph", DYN001, "dynamic import target cannot be statically resolved", &pos).
		WithData("module", module)
}

// InvalidAll builds an ALL001 report for an __all__ entry with no binding.
func InvalidAll(module, name string, pos token.Pos) *Report {
	return New("symbols", ALL001, fmt.Sprintf("__all__ names %q, which is not bound at module level", name), &pos).
		WithData("module", module).WithData("name", name)
}

// Diagnostics accumulates non-fatal reports across a pipeline run; a fatal
// report is returned as an error by the stage that raised it and aborts
// emission, while Diagnostics lets every stage surface warnings without
// interrupting the walk.
type Diagnostics struct {
	reports []*Report
}

func (d *Diagnostics) Add(r *Report) {
	if r != nil {
		d.reports = append(d.reports, r)
	}
}

func (d *Diagnostics) Reports() []*Report { return d.reports }
func (d *Diagnostics) Empty() bool        { return len(d.reports) == 0 }

// HasCode reports whether reports contains one with the given code — used by
// the CLI to tell a collected-but-fatal diagnostic (e.g. DYN001, which §7
// requires a nonzero exit status for) apart from a purely informational one.
func HasCode(reports []*Report, code string) bool {
	for _, r := range reports {
		if r.Code == code {
			return true
		}
	}
	return false
}

// Suggest returns the candidate closest to target by Levenshtein edit
// distance, or "" if candidates is empty. Used to attach a "did you mean"
// Fix to RES001 (unresolved import) diagnostics.
func Suggest(target string, candidates []string) string {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := levenshtein(target, c)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
