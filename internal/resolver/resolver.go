// Package resolver loads the layered configuration tree: mapping layers,
// vendor patterns, validation rules, the entity dictionary and CDM schemas.
//
// Layout under the configuration directory:
//
//	mapping/global.yaml
//	mapping/doc_type/<DOC_TYPE>.yaml
//	mapping/vendors/<vendor>/<DOC_TYPE>.yaml
//	classifier/vendors.yaml
//	validation/rules.yaml
//	entity/dictionary.yaml
//	cdm/<doc_type>.schema.json
//
// Any ".yaml" file may instead be written as ".yml", ".toml" or ".json".
// Loaded files are cached until Reload is called.
package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/cdm/internal/cdm"
)

// Logical paths of the fixed configuration files.
const (
	GlobalMappingPath   = "mapping/global.yaml"
	VendorPatternsPath  = "classifier/vendors.yaml"
	ValidationRulesPath = "validation/rules.yaml"
	EntityDictPath      = "entity/dictionary.yaml"
	schemaDir           = "cdm"
	vendorMappingDir    = "mapping/vendors"
)

// DocTypeMappingPath returns the default mapping path for a doc type.
func DocTypeMappingPath(docType string) string {
	return "mapping/doc_type/" + docType + ".yaml"
}

// VendorMappingPath returns the vendor override path for a doc type.
func VendorMappingPath(vendor, docType string) string {
	return vendorMappingDir + "/" + vendor + "/" + docType + ".yaml"
}

// SchemaPath returns the CDM schema path for a doc type.
func SchemaPath(docType string) string {
	return schemaDir + "/" + strings.ToLower(docType) + ".schema.json"
}

type entry struct {
	value any
	found bool
	err   error
}

// Resolver is a cached view of one configuration directory. It is safe for
// concurrent use.
type Resolver struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	gen   uint64
	cache map[string]entry
	group singleflight.Group
}

// New returns a resolver rooted at dir.
func New(dir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("config resolver initialized", "config_dir", dir)
	return &Resolver{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]entry),
	}
}

// Dir returns the configuration directory.
func (r *Resolver) Dir() string { return r.dir }

// Reload drops every cached file so the next access reads from disk.
func (r *Resolver) Reload() {
	r.mu.Lock()
	r.cache = make(map[string]entry)
	r.gen++
	r.mu.Unlock()
	r.logger.Info("configuration cache cleared")
}

// load returns the cached entry for key, running fn at most once per key
// across concurrent callers. Results computed across a Reload are not cached.
func (r *Resolver) load(key string, fn func() entry) entry {
	r.mu.RLock()
	e, ok := r.cache[key]
	gen := r.gen
	r.mu.RUnlock()
	if ok {
		return e
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		e := fn()
		r.mu.Lock()
		if r.gen == gen {
			r.cache[key] = e
		}
		r.mu.Unlock()
		return e, nil
	})
	return v.(entry)
}

// Get returns the decoded contents of a configuration file by logical path.
// Missing or unreadable files report false.
func (r *Resolver) Get(rel string) (any, bool) {
	e := r.load(rel, func() entry {
		v, path, err := readLayer(r.dir, rel)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			r.logger.Debug("config file not found", "path", rel)
			return entry{}
		case err != nil:
			r.logger.Error("failed to load config file", "path", path, "error", err)
			return entry{err: err}
		}
		r.logger.Debug("loaded config file", "path", path)
		return entry{value: v, found: true}
	})
	return e.value, e.found
}

// GetMap is Get for files whose top level is a mapping.
func (r *Resolver) GetMap(rel string) map[string]any {
	v, ok := r.Get(rel)
	if !ok {
		return nil
	}
	return asMap(v)
}

// MappingConfig merges the global, doc-type and vendor layers, in rising
// priority, and decodes the result. An empty vendor skips the vendor layer.
func (r *Resolver) MappingConfig(docType, vendor string) (MappingConfig, error) {
	merged := map[string]any{}

	layers := []string{GlobalMappingPath, DocTypeMappingPath(docType)}
	if vendor != "" {
		if safeSegment(vendor) {
			layers = append(layers, VendorMappingPath(vendor, docType))
		} else {
			r.logger.Warn("ignoring vendor with unsafe name", "vendor", vendor)
		}
	}
	for _, rel := range layers {
		if layer := r.GetMap(rel); layer != nil {
			merged = Merge(merged, layer)
		}
	}

	var cfg MappingConfig
	if err := convert(merged, &cfg); err != nil {
		return MappingConfig{}, fmt.Errorf("mapping config %s/%s: %w", docType, vendor, err)
	}
	return cfg, nil
}

// ValidationRules returns the decoded validation rules. A missing file
// yields zero rules.
func (r *Resolver) ValidationRules() (ValidationRules, error) {
	e := r.load("#validation_rules", func() entry {
		var rules ValidationRules
		if err := convert(r.GetMap(ValidationRulesPath), &rules); err != nil {
			return entry{err: fmt.Errorf("validation rules: %w", err)}
		}
		return entry{value: rules, found: true}
	})
	if e.err != nil {
		return ValidationRules{}, e.err
	}
	return e.value.(ValidationRules), nil
}

// EntityDictionary returns the decoded entity dictionary. A missing file
// yields an empty dictionary.
func (r *Resolver) EntityDictionary() (EntityDictionary, error) {
	e := r.load("#entity_dictionary", func() entry {
		var dict EntityDictionary
		if err := convert(r.GetMap(EntityDictPath), &dict); err != nil {
			return entry{err: fmt.Errorf("entity dictionary: %w", err)}
		}
		return entry{value: dict, found: true}
	})
	if e.err != nil {
		return EntityDictionary{}, e.err
	}
	return e.value.(EntityDictionary), nil
}

// VendorPatterns returns vendor identification patterns in declared order.
func (r *Resolver) VendorPatterns() ([]VendorPattern, error) {
	e := r.load("#vendor_patterns", func() entry {
		path := locate(r.dir, VendorPatternsPath)
		if path == "" {
			return entry{}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return entry{err: err}
		}
		patterns, err := orderedVendors(path, data)
		if err != nil {
			return entry{err: fmt.Errorf("vendor patterns: %w", err)}
		}
		return entry{value: patterns, found: true}
	})
	if e.err != nil {
		return nil, e.err
	}
	patterns, _ := e.value.([]VendorPattern)
	return patterns, nil
}

// CDMSchema returns the raw JSON schema document for a doc type.
func (r *Resolver) CDMSchema(docType string) ([]byte, bool) {
	rel := SchemaPath(docType)
	e := r.load("#schema:"+rel, func() entry {
		data, err := os.ReadFile(filepath.Join(r.dir, filepath.FromSlash(rel)))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				r.logger.Error("failed to load schema", "path", rel, "error", err)
			} else {
				r.logger.Warn("schema file not found", "path", rel)
			}
			return entry{}
		}
		return entry{value: data, found: true}
	})
	if !e.found {
		return nil, false
	}
	return e.value.([]byte), true
}

// VendorMappings lists vendor override directories and the doc types each
// one provides, sorted by vendor.
func (r *Resolver) VendorMappings() []VendorMapping {
	root := filepath.Join(r.dir, filepath.FromSlash(vendorMappingDir))
	dirs, err := os.ReadDir(root)
	if err != nil {
		return []VendorMapping{}
	}

	out := []VendorMapping{}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, d.Name()))
		if err != nil {
			continue
		}
		seen := map[string]bool{}
		var docTypes []string
		for _, f := range files {
			ext := filepath.Ext(f.Name())
			if f.IsDir() || !isLayerExt(ext) {
				continue
			}
			docType := strings.TrimSuffix(f.Name(), ext)
			if !seen[docType] {
				seen[docType] = true
				docTypes = append(docTypes, docType)
			}
		}
		if len(docTypes) == 0 {
			continue
		}
		sort.Strings(docTypes)
		out = append(out, VendorMapping{Vendor: d.Name(), Mappings: docTypes})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vendor < out[j].Vendor })
	return out
}

// SelfCheck reports missing configuration. Missing schemas are errors;
// missing mapping and rule files are warnings.
func (r *Resolver) SelfCheck() Issues {
	issues := Issues{Errors: []string{}, Warnings: []string{}}

	if info, err := os.Stat(filepath.Join(r.dir, schemaDir)); err != nil || !info.IsDir() {
		issues.Errors = append(issues.Errors, "CDM schema directory not found")
	}
	if locate(r.dir, GlobalMappingPath) == "" {
		issues.Warnings = append(issues.Warnings, "Global mapping configuration not found")
	}
	if locate(r.dir, ValidationRulesPath) == "" {
		issues.Warnings = append(issues.Warnings, "Validation rules not found")
	}

	for _, docType := range cdm.DocTypes {
		if locate(r.dir, SchemaPath(docType)) == "" {
			issues.Errors = append(issues.Errors, fmt.Sprintf("Schema for %s not found", docType))
		}
		if locate(r.dir, DocTypeMappingPath(docType)) == "" {
			issues.Warnings = append(issues.Warnings, fmt.Sprintf("Default mapping for %s not found", docType))
		}
	}
	return issues
}

func isLayerExt(ext string) bool {
	for _, e := range layerExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// safeSegment reports whether name can be used as a single path element.
func safeSegment(name string) bool {
	return name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
