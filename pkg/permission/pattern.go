package permission

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/komodo-sh/komodo/pkg/types"
)

// Name patterns select resources for batch executions. A pattern list is
// comma-separated; each entry matches with '*' and '?' wildcards, unless
// wrapped in backslashes, in which case the inner text is a full regex.

// compilePattern turns one pattern entry into a regexp.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	pattern = strings.TrimSpace(pattern)
	if len(pattern) >= 2 && strings.HasPrefix(pattern, `\`) && strings.HasSuffix(pattern, `\`) {
		re, err := regexp.Compile(pattern[1 : len(pattern)-1])
		if err != nil {
			return nil, types.NewValidationError("pattern", fmt.Sprintf("invalid regex %q: %v", pattern, err))
		}
		return re, nil
	}

	// Wildcard form: escape everything, then restore * and ?.
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	escaped = strings.ReplaceAll(escaped, `\?`, ".")
	re, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return nil, types.NewValidationError("pattern", fmt.Sprintf("invalid pattern %q: %v", pattern, err))
	}
	return re, nil
}

// MatchNames returns the names matching the pattern list, preserving input
// order and dropping duplicates.
func MatchNames(patterns string, names []string) ([]string, error) {
	var regexps []*regexp.Regexp
	for _, p := range strings.Split(patterns, ",") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		regexps = append(regexps, re)
	}
	if len(regexps) == 0 {
		return nil, types.NewValidationError("pattern", "empty pattern")
	}

	seen := make(map[string]bool, len(names))
	var out []string
	for _, name := range names {
		if seen[name] {
			continue
		}
		for _, re := range regexps {
			if re.MatchString(name) {
				seen[name] = true
				out = append(out, name)
				break
			}
		}
	}
	return out, nil
}
