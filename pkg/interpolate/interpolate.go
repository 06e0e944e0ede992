// Package interpolate resolves [[variable]] references in configured strings
// against the variable store, and redacts secret values from anything headed
// for persistence. No log line may contain a secret variable's value.
package interpolate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/komodo-sh/komodo/pkg/types"
)

var refPattern = regexp.MustCompile(`\[\[([A-Za-z0-9_\-\.]+)\]\]`)

// Interpolator substitutes variable references in strings. Build one per
// operation from the current variable set; it is not safe to share across
// variable mutations.
type Interpolator struct {
	vars map[string]types.Variable

	// usedPlain collects non-secret names substituted so far, in first-use
	// order. Secret substitutions are tracked only by count.
	usedPlain    []string
	usedPlainSet map[string]bool
	secretsUsed  int
}

// New creates an interpolator over the given variables.
func New(vars []types.Variable) *Interpolator {
	m := make(map[string]types.Variable, len(vars))
	for _, v := range vars {
		m[v.Name] = v
	}
	return &Interpolator{vars: m, usedPlainSet: make(map[string]bool)}
}

// String replaces every [[name]] reference in s. Referencing an unknown
// variable is an error: silently deploying with a literal placeholder is
// worse than failing.
func (i *Interpolator) String(s string) (string, error) {
	if !strings.Contains(s, "[[") {
		return s, nil
	}
	var missing string
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		v, ok := i.vars[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return ref
		}
		if v.IsSecret {
			i.secretsUsed++
		} else if !i.usedPlainSet[name] {
			i.usedPlainSet[name] = true
			i.usedPlain = append(i.usedPlain, name)
		}
		return v.Value
	})
	if missing != "" {
		return "", fmt.Errorf("unknown variable [[%s]]", missing)
	}
	return out, nil
}

// EnvironmentVars interpolates the value of each pair in place.
func (i *Interpolator) EnvironmentVars(vars []types.EnvironmentVar) ([]types.EnvironmentVar, error) {
	out := make([]types.EnvironmentVar, len(vars))
	for idx, v := range vars {
		value, err := i.String(v.Value)
		if err != nil {
			return nil, fmt.Errorf("environment variable %s: %w", v.Variable, err)
		}
		out[idx] = types.EnvironmentVar{Variable: v.Variable, Value: value}
	}
	return out, nil
}

// SummaryLog renders the substitutions performed so far as an update log, or
// nil when nothing was replaced. Secret substitutions appear only as a count,
// never by name or value.
func (i *Interpolator) SummaryLog() *types.Log {
	if len(i.usedPlain) == 0 && i.secretsUsed == 0 {
		return nil
	}
	var b strings.Builder
	if len(i.usedPlain) > 0 {
		fmt.Fprintf(&b, "interpolated variables: %s", strings.Join(i.usedPlain, ", "))
	}
	if i.secretsUsed > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "interpolated %d secret reference(s)", i.secretsUsed)
	}
	now := types.NowMS()
	log := types.SimpleLog("interpolate variables", b.String(), now, now)
	return &log
}

// Redactor scrubs secret values out of strings before persistence.
type Redactor struct {
	replacer *strings.Replacer
}

// NewRedactor builds a redactor over the secret variables in vars. Longer
// values are replaced first so a secret that is a prefix of another cannot
// leave a partial leak.
func NewRedactor(vars []types.Variable) *Redactor {
	secrets := make([]types.Variable, 0, len(vars))
	for _, v := range vars {
		if v.IsSecret && v.Value != "" {
			secrets = append(secrets, v)
		}
	}
	sort.Slice(secrets, func(a, b int) bool {
		return len(secrets[a].Value) > len(secrets[b].Value)
	})
	pairs := make([]string, 0, 2*len(secrets))
	for _, v := range secrets {
		pairs = append(pairs, v.Value, "<"+v.Name+">")
	}
	return &Redactor{replacer: strings.NewReplacer(pairs...)}
}

// NewValueRedactor builds a redactor over ad-hoc secret values, like the
// ephemeral api credentials handed to action runs.
func NewValueRedactor(values map[string]string) *Redactor {
	type kv struct{ name, value string }
	items := make([]kv, 0, len(values))
	for name, value := range values {
		if value != "" {
			items = append(items, kv{name, value})
		}
	}
	sort.Slice(items, func(a, b int) bool {
		return len(items[a].value) > len(items[b].value)
	})
	pairs := make([]string, 0, 2*len(items))
	for _, item := range items {
		pairs = append(pairs, item.value, "<"+item.name+">")
	}
	return &Redactor{replacer: strings.NewReplacer(pairs...)}
}

// Redact replaces every secret value in s with its <name> placeholder.
func (r *Redactor) Redact(s string) string {
	return r.replacer.Replace(s)
}

// RedactLog scrubs all text fields of a log.
func (r *Redactor) RedactLog(l types.Log) types.Log {
	l.Command = r.Redact(l.Command)
	l.Stdout = r.Redact(l.Stdout)
	l.Stderr = r.Redact(l.Stderr)
	return l
}

// RedactLogs scrubs a log slice.
func (r *Redactor) RedactLogs(logs []types.Log) []types.Log {
	out := make([]types.Log, len(logs))
	for i, l := range logs {
		out[i] = r.RedactLog(l)
	}
	return out
}
