package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLLimits bounds the size and shape of a YAML configuration document.
type YAMLLimits struct {
	MaxFileSize  int64
	MaxDepth     int
	MaxNodes     int
	MaxKeyLength int
	MaxValueSize int64
}

// DefaultYAMLLimits suits a server configuration file.
func DefaultYAMLLimits() YAMLLimits {
	return YAMLLimits{
		MaxFileSize:  1 << 20,
		MaxDepth:     10,
		MaxNodes:     2000,
		MaxKeyLength: 128,
		MaxValueSize: 64 << 10,
	}
}

// SafeYAMLParser decodes YAML after checking it against limits. Alias
// expansion counts toward the node budget, so billion-laughs documents fail.
type SafeYAMLParser struct {
	limits YAMLLimits
	strict bool
}

// NewSafeYAMLParser creates a parser. With strict set, keys that do not map to
// a struct field are an error.
func NewSafeYAMLParser(limits YAMLLimits, strict bool) *SafeYAMLParser {
	return &SafeYAMLParser{limits: limits, strict: strict}
}

// Unmarshal validates data and decodes it into v. An empty document leaves v
// untouched.
func (p *SafeYAMLParser) Unmarshal(data []byte, v any) error {
	if int64(len(data)) > p.limits.MaxFileSize {
		return fmt.Errorf("yaml: document is %d bytes, limit %d", len(data), p.limits.MaxFileSize)
	}

	var root yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("yaml: parse: %w", err)
	}
	w := &yamlWalker{limits: p.limits}
	if err := w.walk(&root, 0); err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(p.strict)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("yaml: decode: %w", err)
	}
	return nil
}

// UnmarshalReader reads at most MaxFileSize bytes from r and decodes them.
func (p *SafeYAMLParser) UnmarshalReader(r io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(r, p.limits.MaxFileSize+1))
	if err != nil {
		return fmt.Errorf("yaml: read: %w", err)
	}
	return p.Unmarshal(data, v)
}

type yamlWalker struct {
	limits YAMLLimits
	nodes  int
}

func (w *yamlWalker) walk(node *yaml.Node, depth int) error {
	if depth > w.limits.MaxDepth {
		return fmt.Errorf("yaml: nesting depth exceeds %d", w.limits.MaxDepth)
	}
	w.nodes++
	if w.nodes > w.limits.MaxNodes {
		return fmt.Errorf("yaml: more than %d nodes", w.limits.MaxNodes)
	}

	switch node.Kind {
	case yaml.DocumentNode:
		for _, c := range node.Content {
			if err := w.walk(c, depth); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if len(key.Value) > w.limits.MaxKeyLength {
				return fmt.Errorf("yaml: key %.20q... longer than %d bytes", key.Value, w.limits.MaxKeyLength)
			}
			if err := w.walk(node.Content[i+1], depth+1); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for _, c := range node.Content {
			if err := w.walk(c, depth+1); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if int64(len(node.Value)) > w.limits.MaxValueSize {
			return fmt.Errorf("yaml: value of %d bytes exceeds %d", len(node.Value), w.limits.MaxValueSize)
		}
	case yaml.AliasNode:
		if node.Alias != nil {
			return w.walk(node.Alias, depth+1)
		}
	}
	return nil
}
