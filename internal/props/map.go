package props

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Map is an insertion-ordered string map. Setting an existing key keeps its
// original position.
type Map struct {
	keys   []string
	values map[string]string
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{values: make(map[string]string)}
}

// FromPairs builds a map from alternating keys and values.
func FromPairs(kv ...string) *Map {
	m := NewMap()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

// Set inserts or replaces a value.
func (m *Map) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key.
func (m *Map) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// Delete removes key, keeping the order of the remaining keys.
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Range calls fn for every entry in order until fn returns false.
func (m *Map) Range(fn func(key, value string) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns an independent copy.
func (m *Map) Clone() *Map {
	c := NewMap()
	m.Range(func(k, v string) bool {
		c.Set(k, v)
		return true
	})
	return c
}

// Merge sets every entry of other on m, so other wins on shared keys.
func (m *Map) Merge(other *Map) {
	other.Range(func(k, v string) bool {
		m.Set(k, v)
		return true
	})
}

// UnmarshalYAML decodes a YAML mapping preserving document order. Duplicate
// keys are rejected.
func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of string values", node.Line)
	}
	*m = Map{values: make(map[string]string, len(node.Content)/2)}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		if valueNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: value of %q must be a scalar", valueNode.Line, keyNode.Value)
		}
		if _, dup := m.values[keyNode.Value]; dup {
			return fmt.Errorf("line %d: duplicate key %q", keyNode.Line, keyNode.Value)
		}
		m.Set(keyNode.Value, valueNode.Value)
	}
	return nil
}

// MarshalYAML encodes the map as an ordered YAML mapping.
func (m Map) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: m.values[k]},
		)
	}
	return node, nil
}
