package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Kind selects the predicate implementation applied to each line.
type Kind string

const (
	// KindSubstring matches lines containing the term verbatim.
	KindSubstring Kind = "substring"
	// KindFold matches lines containing the term case-insensitively.
	KindFold Kind = "fold"
	// KindRegexp matches lines against a compiled regular expression.
	KindRegexp Kind = "regexp"
	// KindExpr evaluates a boolean expression with the line bound to "line".
	KindExpr Kind = "expr"
)

// ParseKind normalises the textual representation of a matcher kind. The
// empty string selects the substring kind.
func ParseKind(value string) (Kind, error) {
	if value == "" {
		return KindSubstring, nil
	}
	switch Kind(value) {
	case KindSubstring, KindFold, KindRegexp, KindExpr:
		return Kind(value), nil
	default:
		return "", fmt.Errorf("unknown matcher kind %q", value)
	}
}

// Matcher reports whether a line satisfies a fixed predicate. Implementations
// are safe for concurrent use; all state is set at construction.
type Matcher interface {
	Match(line string) bool
	Describe() string
}

// New builds a matcher of the given kind. The pattern is the search term
// for substring and fold matchers, a regular expression for regexp
// matchers and a boolean expression over "line" for expr matchers.
func New(kind Kind, pattern string) (Matcher, error) {
	if pattern == "" {
		return nil, errors.New("matcher pattern must not be empty")
	}
	switch kind {
	case KindSubstring:
		return substringMatcher{term: pattern}, nil
	case KindFold:
		return foldMatcher{term: strings.ToLower(pattern)}, nil
	case KindRegexp:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
		}
		return regexpMatcher{re: re}, nil
	case KindExpr:
		program, err := expr.Compile(pattern, expr.Env(map[string]interface{}{"line": ""}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile expression %q: %w", pattern, err)
		}
		return exprMatcher{program: program, src: pattern}, nil
	default:
		return nil, fmt.Errorf("unknown matcher kind %q", kind)
	}
}

type substringMatcher struct {
	term string
}

func (m substringMatcher) Match(line string) bool {
	return strings.Contains(line, m.term)
}

func (m substringMatcher) Describe() string {
	return fmt.Sprintf("substring %q", m.term)
}

type foldMatcher struct {
	term string
}

func (m foldMatcher) Match(line string) bool {
	return strings.Contains(strings.ToLower(line), m.term)
}

func (m foldMatcher) Describe() string {
	return fmt.Sprintf("fold %q", m.term)
}

type regexpMatcher struct {
	re *regexp.Regexp
}

func (m regexpMatcher) Match(line string) bool {
	return m.re.MatchString(line)
}

func (m regexpMatcher) Describe() string {
	return fmt.Sprintf("regexp %q", m.re.String())
}

type exprMatcher struct {
	program *vm.Program
	src     string
}

// Match treats a runtime evaluation error as a non-match.
func (m exprMatcher) Match(line string) bool {
	out, err := vm.Run(m.program, map[string]interface{}{"line": line})
	if err != nil {
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}

func (m exprMatcher) Describe() string {
	return fmt.Sprintf("expr %q", m.src)
}
