package highlight

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Mode selects how a query is interpreted.
type Mode string

const (
	// ModeLiteral matches the query as a plain substring.
	ModeLiteral Mode = "literal"
	// ModeRegex compiles the query as a regular expression and falls back
	// to literal matching when it does not compile.
	ModeRegex Mode = "regex"
)

// ParseMode converts a config or request value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeLiteral):
		return ModeLiteral, nil
	case string(ModeRegex):
		return ModeRegex, nil
	}
	return "", fmt.Errorf("unknown match mode %q: must be literal or regex", s)
}

// Matcher finds case-insensitive occurrences of a query.
type Matcher struct {
	Query string
	Mode  Mode
	// Fallback is set when a regex query failed to compile and the
	// matcher degraded to literal matching. CompileErr holds the reason.
	Fallback   bool
	CompileErr error

	re *regexp.Regexp
}

// Compile builds a Matcher. It never fails: an empty query yields a
// matcher that matches nothing, and an invalid regex degrades to literal.
func Compile(query string, mode Mode) *Matcher {
	m := &Matcher{Query: query, Mode: mode}
	if query == "" {
		return m
	}
	if mode == ModeRegex {
		re, err := regexp.Compile("(?i)" + query)
		if err == nil {
			m.re = re
			return m
		}
		m.Fallback = true
		m.CompileErr = err
	}
	m.re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
	return m
}

// Empty reports whether the matcher can never match.
func (m *Matcher) Empty() bool {
	return m == nil || m.re == nil
}

// Find returns the byte offsets of the first non-empty match in s.
// Zero-length regex matches are stepped over one rune at a time.
func (m *Matcher) Find(s string) (start, end int, ok bool) {
	if m.Empty() {
		return 0, 0, false
	}
	for off := 0; off <= len(s); {
		loc := m.re.FindStringIndex(s[off:])
		if loc == nil {
			return 0, 0, false
		}
		if loc[1] > loc[0] {
			return off + loc[0], off + loc[1], true
		}
		_, size := utf8.DecodeRuneInString(s[off+loc[0]:])
		if size == 0 {
			return 0, 0, false
		}
		off += loc[0] + size
	}
	return 0, 0, false
}
