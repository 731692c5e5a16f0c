package scopeconfig

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed directory_defaults.yaml
var embeddedFS embed.FS

// Defaults are the built-in values consulted after every database scope
// misses. Keys are slash separated paths.
type Defaults map[string]string

// LoadDefaults returns the embedded defaults.
func LoadDefaults() (Defaults, error) {
	b, err := fs.ReadFile(embeddedFS, "directory_defaults.yaml")
	if err != nil {
		return nil, err
	}
	return ParseDefaults(b)
}

// LoadDefaultsFile reads defaults from path and layers them over the embedded
// ones.
func LoadDefaultsFile(path string) (Defaults, error) {
	base, err := LoadDefaults()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defaults %s: %w", path, err)
	}
	extra, err := ParseDefaults(b)
	if err != nil {
		return nil, fmt.Errorf("parse defaults %s: %w", path, err)
	}
	for k, v := range extra {
		base[k] = v
	}
	return base, nil
}

// ParseDefaults flattens a nested YAML document into path/value pairs.
// Scalars are kept in their literal form, so `display_all: 1` reads as "1".
func ParseDefaults(b []byte) (Defaults, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	out := Defaults{}
	if len(doc.Content) == 0 {
		return out, nil
	}
	if err := flatten(doc.Content[0], "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(n *yaml.Node, prefix string, out Defaults) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if prefix != "" {
				key = prefix + "/" + key
			}
			if err := flatten(n.Content[i+1], key, out); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if prefix == "" {
			return fmt.Errorf("line %d: scalar without a path", n.Line)
		}
		if n.Tag == "!!null" {
			return nil
		}
		out[prefix] = n.Value
	case yaml.SequenceNode:
		items := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: %s: lists may only hold scalars", item.Line, prefix)
			}
			items = append(items, item.Value)
		}
		out[prefix] = strings.Join(items, ",")
	default:
		return fmt.Errorf("line %d: %s: unsupported node", n.Line, prefix)
	}
	return nil
}

// Paths returns the configured paths in sorted order.
func (d Defaults) Paths() []string {
	paths := make([]string, 0, len(d))
	for p := range d {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
