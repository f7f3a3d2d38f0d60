package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// layerExtensions are probed in order for a logical ".yaml" path.
var layerExtensions = []string{".yaml", ".yml", ".toml", ".json"}

// candidates returns the files that may back a logical path.
func candidates(dir, rel string) []string {
	ext := filepath.Ext(rel)
	if ext != ".yaml" && ext != ".yml" {
		return []string{filepath.Join(dir, filepath.FromSlash(rel))}
	}
	stem := strings.TrimSuffix(rel, ext)
	out := make([]string, len(layerExtensions))
	for i, e := range layerExtensions {
		out[i] = filepath.Join(dir, filepath.FromSlash(stem+e))
	}
	return out
}

// locate returns the first existing candidate for rel, or "" when none exists.
func locate(dir, rel string) string {
	for _, path := range candidates(dir, rel) {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// readLayer reads and decodes the file backing rel. It returns
// fs.ErrNotExist when no candidate exists.
func readLayer(dir, rel string) (any, string, error) {
	path := locate(dir, rel)
	if path == "" {
		return nil, "", fs.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}
	v, err := decode(path, data)
	if err != nil {
		return nil, path, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, path, nil
}

// decode picks the decoder from the file extension.
func decode(path string, data []byte) (any, error) {
	var v any
	var err error
	switch filepath.Ext(path) {
	case ".toml":
		var m map[string]any
		err = toml.Unmarshal(data, &m)
		v = m
	case ".json":
		err = json.Unmarshal(data, &v)
	default:
		err = yaml.Unmarshal(data, &v)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// asMap returns v as a string-keyed map, or nil when it is not one.
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// convert re-encodes a generic value into a typed struct through YAML so the
// same struct tags serve every layer format.
func convert(v any, out any) error {
	if v == nil {
		return nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// orderedVendors decodes the vendor pattern file keeping declared order.
// YAML keeps document order; other formats are ordered by vendor name.
func orderedVendors(path string, data []byte) ([]VendorPattern, error) {
	ext := filepath.Ext(path)
	if ext == ".yaml" || ext == ".yml" {
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if len(doc.Content) == 0 {
			return nil, nil
		}
		root := doc.Content[0]
		if root.Kind != yaml.MappingNode {
			return nil, errors.New("vendor patterns: top level must be a mapping")
		}

		var out []VendorPattern
		for i := 0; i+1 < len(root.Content); i += 2 {
			name, body := root.Content[i].Value, root.Content[i+1]
			if body.Kind != yaml.MappingNode {
				continue
			}
			var p VendorPattern
			if err := body.Decode(&p); err != nil {
				return nil, fmt.Errorf("vendor %q: %w", name, err)
			}
			p.Name = name
			out = append(out, p)
		}
		return out, nil
	}

	generic, err := decode(path, data)
	if err != nil {
		return nil, err
	}
	m := asMap(generic)
	names := sortedKeys(m)
	out := make([]VendorPattern, 0, len(names))
	for _, name := range names {
		body := asMap(m[name])
		if body == nil {
			continue
		}
		var p VendorPattern
		if err := convert(body, &p); err != nil {
			return nil, fmt.Errorf("vendor %q: %w", name, err)
		}
		p.Name = name
		out = append(out, p)
	}
	return out, nil
}
