package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SectionSpec is the static definition of one document section.
type SectionSpec struct {
	Name        string `json:"name" yaml:"name"`
	MinWords    int    `json:"min_words" yaml:"min_words"`
	MaxWords    int    `json:"max_words" yaml:"max_words"`
	Instruction string `json:"instruction" yaml:"instruction"`
}

// SectionMap is an ordered mapping from section name to section text.
// Iteration, JSON and YAML encodings all follow insertion order, which for an
// assembled document is catalog order. The zero value is an empty map.
type SectionMap struct {
	names []string
	text  map[string]string
}

// NewSectionMap builds a SectionMap from alternating name/text pairs in order.
func NewSectionMap(pairs ...string) SectionMap {
	var m SectionMap
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return m
}

// Set replaces the text of name, appending it at the end if it is new.
func (m *SectionMap) Set(name, text string) {
	if m.text == nil {
		m.text = make(map[string]string)
	}
	if _, ok := m.text[name]; !ok {
		m.names = append(m.names, name)
	}
	m.text[name] = text
}

// Get returns the text for name and whether the key exists.
func (m SectionMap) Get(name string) (string, bool) {
	text, ok := m.text[name]
	return text, ok
}

// Has reports whether name is a key.
func (m SectionMap) Has(name string) bool {
	_, ok := m.text[name]
	return ok
}

// Len returns the number of sections.
func (m SectionMap) Len() int {
	return len(m.names)
}

// Names returns the keys in order. The returned slice is a copy.
func (m SectionMap) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Clone returns a deep copy.
func (m SectionMap) Clone() SectionMap {
	out := SectionMap{
		names: make([]string, len(m.names)),
		text:  make(map[string]string, len(m.text)),
	}
	copy(out.names, m.names)
	for k, v := range m.text {
		out.text[k] = v
	}
	return out
}

// ToMap returns an unordered copy.
func (m SectionMap) ToMap() map[string]string {
	out := make(map[string]string, len(m.text))
	for k, v := range m.text {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the map as a JSON object in key order.
func (m SectionMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range m.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.text[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the key order of the input.
func (m *SectionMap) UnmarshalJSON(data []byte) error {
	*m = SectionMap{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("sections: expected JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("sections: expected string key")
		}
		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("sections: value for %q: %w", key, err)
		}
		m.Set(key, text)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalYAML encodes the map as a YAML mapping in key order. Multi-line
// section text uses literal block style.
func (m SectionMap) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range m.names {
		text := m.text[name]
		val := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: text}
		if strings.Contains(text, "\n") {
			val.Style = yaml.LiteralStyle
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			val,
		)
	}
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping, keeping the key order of the input.
func (m *SectionMap) UnmarshalYAML(node *yaml.Node) error {
	*m = SectionMap{}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("sections: expected mapping, got line %d", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		var text string
		if err := node.Content[i+1].Decode(&text); err != nil {
			return fmt.Errorf("sections: value for %q: %w", node.Content[i].Value, err)
		}
		m.Set(node.Content[i].Value, text)
	}
	return nil
}
