package variable

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/sqlflow/sqlflow"
)

// Options controls substitution behavior.
type Options struct {
	// Strict makes a reference with neither a stored value nor a default
	// raise ErrVariableSubstitution instead of resolving to "None" (spec
	// §4.1 "strict-substitution context").
	Strict bool
}

// templateCache caches Scan results keyed by the input text, so repeated
// substitution of the same template text (e.g. a Transform step's SQL,
// substituted once per run attempt) doesn't re-scan. Grounded on the
// teacher's query/template_loader.go file-path-keyed cache, generalized to a
// text-keyed cache (spec §4.1 "Performance").
var templateCache sync.Map // string -> ScanResult

func scanCached(text string) ScanResult {
	if v, ok := templateCache.Load(text); ok {
		return v.(ScanResult)
	}

	res := Scan(text)
	templateCache.Store(text, res)

	return res
}

var (
	reQuotedList = regexp.MustCompile(`^\s*'[^']*'(\s*,\s*'[^']*')+\s*$`)
	reFuncCall   = regexp.MustCompile(`^\s*[A-Za-z_][A-Za-z0-9_]*\s*\([^)]*\)\s*$`)
)

// looksLikeSQLExpression reports whether s already reads as a SQL fragment
// (comma-separated quoted list, or an `ident(...)` call) rather than a plain
// scalar, per spec §4.1's quoting rule.
func looksLikeSQLExpression(s string) bool {
	return reQuotedList.MatchString(s) || reFuncCall.MatchString(s)
}

func formatValue(v Value, ctx Context) string {
	switch v.Kind {
	case KindSQLFragment:
		return v.Str
	case KindBool:
		if v.Bool {
			return "True"
		}

		return "False"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindNull:
		return "None"
	case KindString:
		if ctx != ContextBare {
			return v.Str
		}

		if looksLikeSQLExpression(v.Str) {
			return v.Str
		}

		return "'" + v.Str + "'"
	default:
		return v.Str
	}
}

// Substitute resolves every `${name|default}` reference in text against
// store, returning the substituted text, any warnings (malformed references
// left in place), and an error only in strict mode for an unresolvable
// reference with no default.
func Substitute(text string, store *Store, opts Options) (string, []string, error) {
	if !HasReferences(text) {
		return text, nil, nil
	}

	res := scanCached(text)
	warnings := append([]string(nil), res.Warnings...)

	if len(res.References) == 0 {
		return text, warnings, nil
	}

	runes := []rune(text)

	var out []rune

	last := 0

	for _, ref := range res.References {
		out = append(out, runes[last:ref.Start]...)

		replacement, err := resolveReference(ref, store, opts)
		if err != nil {
			return "", warnings, err
		}

		out = append(out, []rune(replacement)...)
		last = ref.End
	}

	out = append(out, runes[last:]...)

	return string(out), warnings, nil
}

func resolveReference(ref Reference, store *Store, opts Options) (string, error) {
	if v, ok := store.Resolve(ref.Name); ok {
		return formatValue(v, ref.Context), nil
	}

	if ref.HasDefault {
		def, _ := ref.Default()
		return formatValue(String(def), ref.Context), nil
	}

	if opts.Strict {
		return "", fmt.Errorf("%w: variable %q has no value and no default", sqlflow.ErrVariableSubstitution, ref.Name)
	}

	return "None", nil
}

// SubstituteAny recursively substitutes every string leaf of an arbitrary
// map/list/scalar container, returning a new container — originals are never
// mutated (spec §4.1 "Container substitution").
func SubstituteAny(v any, store *Store, opts Options) (any, []string, error) {
	switch vv := v.(type) {
	case string:
		return Substitute(vv, store, opts)
	case map[string]any:
		out := make(map[string]any, len(vv))

		var warnings []string

		for k, val := range vv {
			nv, w, err := SubstituteAny(val, store, opts)
			if err != nil {
				return nil, warnings, err
			}

			warnings = append(warnings, w...)
			out[k] = nv
		}

		return out, warnings, nil
	case []any:
		out := make([]any, len(vv))

		var warnings []string

		for i, val := range vv {
			nv, w, err := SubstituteAny(val, store, opts)
			if err != nil {
				return nil, warnings, err
			}

			warnings = append(warnings, w...)
			out[i] = nv
		}

		return out, warnings, nil
	default:
		return v, nil, nil
	}
}
