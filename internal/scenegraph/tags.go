package scenegraph

import (
	"reflect"
	"strings"
)

// Tags is the open-ended extension map of a node. Keys may be dotted paths
// into nested maps ("faction.name").
type Tags map[string]any

// Has reports whether the key is present and not explicitly falsy.
func (t Tags) Has(key string) bool {
	v, ok := t.Get(key)
	return ok && truthy(v)
}

// HasAny reports whether any of the keys is set.
func (t Tags) HasAny(keys ...string) bool {
	for _, k := range keys {
		if t.Has(k) {
			return true
		}
	}
	return false
}

// Get returns the value at key, following dots into nested maps.
func (t Tags) Get(key string) (any, bool) {
	if t == nil {
		return nil, false
	}
	if !strings.Contains(key, ".") {
		v, ok := t[key]
		return v, ok
	}
	current := any(map[string]any(t))
	for _, k := range strings.Split(key, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		if current, ok = m[k]; !ok {
			return nil, false
		}
	}
	return current, true
}

// Set stores value at key, creating intermediate maps and the map itself.
// Returns false when the stored value was already equal.
func (t *Tags) Set(key string, value any) bool {
	if *t == nil {
		*t = Tags{}
	}
	keys := strings.Split(key, ".")
	current := map[string]any(*t)
	for _, k := range keys[:len(keys)-1] {
		next, ok := asMap(current[k])
		if !ok {
			next = make(map[string]any)
			current[k] = next
		}
		current = next
	}
	last := keys[len(keys)-1]
	if old, exists := current[last]; exists && reflect.DeepEqual(old, value) {
		return false
	}
	current[last] = value
	return true
}

// Merge writes every leaf of src into t by its dotted path, keeping keys
// that src does not mention. Returns true if anything changed.
func (t *Tags) Merge(src Tags) bool {
	changed := false
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			path := prefix + k
			if nested, ok := asMap(v); ok && len(nested) > 0 {
				walk(path+".", nested)
				continue
			}
			if t.Set(path, v) {
				changed = true
			}
		}
	}
	walk("", src)
	return changed
}

// Clone returns a deep copy of the nested map structure.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	return Tags(cloneMap(t))
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Tags:
		return m, true
	default:
		return nil, false
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := asMap(v); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// truthy treats presence as true unless the value is an explicit false,
// zero, or a "false"/"no"/"0" string.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "false", "no", "0", "off":
			return false
		}
		return true
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	default:
		return true
	}
}
