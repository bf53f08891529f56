package executor

import (
	"regexp"
	"strings"
)

// translateGlob compiles a shell-style wildcard pattern into a regexp.
// `*` matches any run of characters including path separators, `?` matches
// a single character, and `[...]` character classes pass through. The
// whole path must match.
func translateGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`\A`)
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := pattern[i : i+end+1]
			if strings.HasPrefix(class, "[!") {
				class = "[^" + class[2:]
			}
			b.WriteString(class)
			i += end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString(`\z`)
	return regexp.Compile(b.String())
}

// matchAny reports whether path matches any of the wildcard patterns.
// Malformed patterns never match.
func matchAny(path string, patterns []string) bool {
	for _, p := range patterns {
		re, err := translateGlob(p)
		if err != nil {
			continue
		}
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
