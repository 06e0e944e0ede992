// Package resource implements the persistence engine shared by all resource
// kinds: partial-config merge and diff, id-or-name resolution, generic CRUD,
// the kind registry, and name pattern matching.
package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/komodo-sh/komodo/pkg/types"
)

// FieldChange records one field's before and after values as raw JSON.
type FieldChange struct {
	From json.RawMessage `json:"from"`
	To   json.RawMessage `json:"to"`
}

// ConfigDiff maps changed top-level config fields to their change.
type ConfigDiff map[string]FieldChange

// ToPartial converts a full config struct into its partial representation.
func ToPartial(config any) (types.Partial, error) {
	data, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var partial types.Partial
	if err := json.Unmarshal(data, &partial); err != nil {
		return nil, fmt.Errorf("failed to build partial: %w", err)
	}
	return partial, nil
}

// MergePartial overlays partial's top-level fields onto base and returns the
// merged config. Unknown fields and type mismatches are rejected with a
// ValidationError, so a typo in a request cannot silently vanish.
func MergePartial[C any](base C, partial types.Partial) (C, error) {
	var zero C

	baseMap, err := ToPartial(base)
	if err != nil {
		return zero, err
	}
	for k, v := range partial {
		baseMap[k] = v
	}

	merged, err := json.Marshal(baseMap)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal merged config: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(merged))
	dec.DisallowUnknownFields()
	var out C
	if err := dec.Decode(&out); err != nil {
		return zero, types.NewValidationError("config", err.Error())
	}
	return out, nil
}

// Diff compares partial against the current config and returns the fields
// that would change. Fields absent from partial are ignored: a partial only
// ever speaks for the keys it carries.
func Diff(current any, partial types.Partial) (ConfigDiff, error) {
	currentMap, err := ToPartial(current)
	if err != nil {
		return nil, err
	}

	diff := make(ConfigDiff)
	for field, to := range partial {
		from, ok := currentMap[field]
		if !ok {
			from = json.RawMessage("null")
		}
		equal, err := jsonEqual(from, to)
		if err != nil {
			return nil, types.NewValidationError(field, err.Error())
		}
		if !equal {
			diff[field] = FieldChange{From: from, To: to}
		}
	}
	return diff, nil
}

// ToUpdatePartial converts a diff back into the partial that applies it.
func (d ConfigDiff) ToUpdatePartial() types.Partial {
	partial := make(types.Partial, len(d))
	for field, change := range d {
		partial[field] = change.To
	}
	return partial
}

// SortedFields returns the changed field names in stable order.
func (d ConfigDiff) SortedFields() []string {
	fields := make([]string, 0, len(d))
	for f := range d {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Render formats the diff for update logs and sync plans, one field per
// line in stable order.
func (d ConfigDiff) Render() string {
	var b strings.Builder
	for _, field := range d.SortedFields() {
		change := d[field]
		fmt.Fprintf(&b, "%s: %s => %s\n",
			field, compactJSON(change.From), compactJSON(change.To))
	}
	return b.String()
}

// jsonEqual compares two raw values semantically. Null compares equal to the
// zero of the other side, so a stored config that omits a zero field does
// not diff against a declaration that spells the zero out.
func jsonEqual(a, b json.RawMessage) (bool, error) {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false, fmt.Errorf("invalid JSON value: %v", err)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false, fmt.Errorf("invalid JSON value: %v", err)
	}
	if isJSONZero(av) && isJSONZero(bv) {
		return true, nil
	}
	return reflect.DeepEqual(av, bv), nil
}

func isJSONZero(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return t == 0
	case bool:
		return !t
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
