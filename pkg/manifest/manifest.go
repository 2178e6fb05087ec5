package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/interpose/pkg/recipe"
)

// File is the YAML document layout.
type File struct {
	Recipes []RecipeSpec `yaml:"recipes"`
}

// RecipeSpec declares one recipe.
type RecipeSpec struct {
	Name      string        `yaml:"name"`
	Contracts []string      `yaml:"contracts"`
	Features  []FeatureSpec `yaml:"features"`
}

// FeatureSpec names a feature and its options. In YAML it is either a bare
// feature name or a mapping with name and options keys.
type FeatureSpec struct {
	Name    string
	Options map[string]any
	line    int
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (f *FeatureSpec) UnmarshalYAML(n *yaml.Node) error {
	f.line = n.Line
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Decode(&f.Name)
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			switch key.Value {
			case "name":
				if err := val.Decode(&f.Name); err != nil {
					return err
				}
			case "options":
				if err := val.Decode(&f.Options); err != nil {
					return err
				}
			default:
				return fmt.Errorf("line %d: field %s not found in feature", key.Line, key.Value)
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: feature must be a name or a mapping", n.Line)
	}
}

// Set is an immutable collection of recipes built from one manifest.
type Set struct {
	path     string
	version  string
	loadedAt time.Time
	names    []string
	recipes  map[string]*recipe.Recipe
}

// Recipe returns the named recipe.
func (s *Set) Recipe(name string) (*recipe.Recipe, error) {
	r, ok := s.recipes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecipe, name)
	}
	return r, nil
}

// Names returns the recipe names in manifest order.
func (s *Set) Names() []string { return append([]string(nil), s.names...) }

// Len returns the number of recipes.
func (s *Set) Len() int { return len(s.names) }

// Path returns the file the set was loaded from, if any.
func (s *Set) Path() string { return s.path }

// Version is a short content hash of the manifest.
func (s *Set) Version() string { return s.version }

// LoadedAt returns when the set was built.
func (s *Set) LoadedAt() time.Time { return s.loadedAt }

// ClearTypeCache clears the verified state types of every recipe.
func (s *Set) ClearTypeCache() {
	for _, r := range s.recipes {
		r.ClearTypeCache()
	}
}

// Load reads and parses the manifest at path.
func Load(path string, catalog *Catalog, opts ...recipe.Option) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Cause: err}
	}
	return parse(path, data, catalog, opts)
}

// Parse parses a manifest held in memory. opts are applied to every recipe
// after its name.
func Parse(data []byte, catalog *Catalog, opts ...recipe.Option) (*Set, error) {
	return parse("", data, catalog, opts)
}

func parse(path string, data []byte, catalog *Catalog, opts []recipe.Option) (*Set, error) {
	if catalog == nil {
		return nil, errors.New("manifest: catalog is required")
	}

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ParseError{FilePath: path, Message: "invalid YAML", Cause: err}
	}

	sum := sha256.Sum256(data)
	set := &Set{
		path:     path,
		version:  hex.EncodeToString(sum[:])[:12],
		loadedAt: time.Now(),
		recipes:  make(map[string]*recipe.Recipe, len(file.Recipes)),
	}

	for _, spec := range file.Recipes {
		if spec.Name == "" {
			return nil, &ParseError{FilePath: path, Message: "recipe name is required"}
		}
		if _, dup := set.recipes[spec.Name]; dup {
			return nil, &ParseError{FilePath: path, Recipe: spec.Name, Message: "duplicate recipe"}
		}
		r, err := build(path, spec, catalog, opts)
		if err != nil {
			return nil, err
		}
		set.recipes[spec.Name] = r
		set.names = append(set.names, spec.Name)
	}
	return set, nil
}

func build(path string, spec RecipeSpec, catalog *Catalog, opts []recipe.Option) (*recipe.Recipe, error) {
	contracts := make([]reflect.Type, 0, len(spec.Contracts))
	for _, name := range spec.Contracts {
		t, err := catalog.Contract(name)
		if err != nil {
			return nil, &ParseError{FilePath: path, Recipe: spec.Name, Cause: err}
		}
		contracts = append(contracts, t)
	}

	providers := make([]recipe.FeatureProvider, 0, len(spec.Features))
	for _, fs := range spec.Features {
		factory, err := catalog.Feature(fs.Name)
		if err != nil {
			return nil, &ParseError{FilePath: path, Line: fs.line, Recipe: spec.Name, Cause: err}
		}
		p, err := factory(NewOptions(fs.Options, catalog))
		if err != nil {
			return nil, &ParseError{FilePath: path, Line: fs.line, Recipe: spec.Name, Feature: fs.Name, Cause: err}
		}
		providers = append(providers, p)
	}

	ropts := append([]recipe.Option{recipe.WithName(spec.Name)}, opts...)
	r := recipe.New(providers, contracts, nil, ropts...)
	if len(r.Contracts()) == 0 {
		return nil, &ParseError{FilePath: path, Recipe: spec.Name, Message: "recipe has no contracts"}
	}
	return r, nil
}
