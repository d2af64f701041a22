// Package templates provides the built-in function catalog offered by the
// node palette.
package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ritzau/flowc/pkg/model"
	"github.com/ritzau/flowc/pkg/pyparse"
)

//go:embed catalog.yaml
var catalogYAML []byte

// ErrUnknownTemplate is returned when a template name is not in the catalog
var ErrUnknownTemplate = errors.New("unknown template")

var (
	numpyImport    = regexp.MustCompile(`^\s*import\s+numpy\s+as\s+np\s*$`)
	pandasImport   = regexp.MustCompile(`^\s*import\s+pandas\s+as\s+pd\s*$`)
	relativeImport = regexp.MustCompile(`^\s*from\s+\.`)
	usesNumpy      = regexp.MustCompile(`\bnp\.`)
	usesPandas     = regexp.MustCompile(`\bpd\.`)
)

// entry is the on-disk shape of one catalog item
type entry struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Code         string   `yaml:"code"`
	Dependencies []string `yaml:"dependencies"`
}

// Template is a ready-to-place function
type Template struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Code        string   `json:"code"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
	Packages    []string `json:"packages,omitempty"` // python packages the code imports
	Requires    []string `json:"requires,omitempty"` // other catalog functions the code calls
}

// NewNode builds a function node for the template at the given position
func (t *Template) NewNode(pos model.Position) (*model.Node, error) {
	return model.NewNode(model.KindFunction, t.Name, pos, model.NodeOptions{
		Code:        t.Code,
		TemplateID:  t.ID,
		Description: t.Description,
	})
}

// Catalog is an ordered set of templates
type Catalog struct {
	templates []*Template
	byName    map[string]*Template
}

// All returns the templates in catalog order
func (c *Catalog) All() []*Template {
	return c.templates
}

// Get returns the template with the given name
func (c *Catalog) Get(name string) (*Template, error) {
	t, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return t, nil
}

// Requires returns every catalog function name needs, transitively, with
// dependencies listed before their dependents
func (c *Catalog) Requires(name string) ([]string, error) {
	t, err := c.Get(name)
	if err != nil {
		return nil, err
	}

	var order []string
	state := make(map[string]int) // 1 visiting, 2 done
	var visit func(t *Template) error
	visit = func(t *Template) error {
		switch state[t.Name] {
		case 1:
			return fmt.Errorf("template %s depends on itself", t.Name)
		case 2:
			return nil
		}
		state[t.Name] = 1
		for _, dep := range t.Requires {
			d, err := c.Get(dep)
			if err != nil {
				return fmt.Errorf("template %s: %w", t.Name, err)
			}
			if err := visit(d); err != nil {
				return err
			}
		}
		state[t.Name] = 2
		order = append(order, t.Name)
		return nil
	}
	if err := visit(t); err != nil {
		return nil, err
	}
	return order[:len(order)-1], nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Load returns the embedded catalog. It is parsed once.
func Load() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(catalogYAML)
	})
	return defaultCatalog, defaultErr
}

// Parse decodes a YAML catalog and normalises each entry's imports
func Parse(data []byte) (*Catalog, error) {
	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{
		templates: make([]*Template, 0, len(entries)),
		byName:    make(map[string]*Template, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, errors.New("catalog entry without a name")
		}
		if _, exists := c.byName[e.Name]; exists {
			return nil, fmt.Errorf("duplicate catalog entry %s", e.Name)
		}
		t := build(e)
		c.templates = append(c.templates, t)
		c.byName[t.Name] = t
	}
	return c, nil
}

// build normalises an entry: numpy and pandas imports are moved to the top
// when declared or used, and relative imports of sibling functions are
// dropped in favour of Requires
func build(e entry) *Template {
	t := &Template{
		ID:          "base_" + e.Name,
		Name:        e.Name,
		Description: e.Description,
	}

	needNumpy := usesNumpy.MatchString(e.Code)
	needPandas := usesPandas.MatchString(e.Code)
	for _, dep := range e.Dependencies {
		switch strings.ToLower(dep) {
		case "numpy":
			needNumpy = true
		case "pandas":
			needPandas = true
		default:
			t.Requires = append(t.Requires, dep)
		}
	}

	var header []string
	if needNumpy {
		header = append(header, "import numpy as np")
		t.Packages = append(t.Packages, "numpy")
	}
	if needPandas {
		header = append(header, "import pandas as pd")
		t.Packages = append(t.Packages, "pandas")
	}

	var body []string
	for _, line := range strings.Split(strings.ReplaceAll(e.Code, "\r\n", "\n"), "\n") {
		if numpyImport.MatchString(line) || pandasImport.MatchString(line) || relativeImport.MatchString(line) {
			continue
		}
		body = append(body, line)
	}

	code := strings.TrimSpace(strings.Join(body, "\n"))
	code = strings.TrimSpace(strings.TrimSuffix(code, ";"))
	t.Code = strings.TrimSpace(strings.Join(append(header, code), "\n"))

	sig := pyparse.ParseFunction(t.Code)
	t.Inputs = sig.Inputs
	t.Outputs = sig.Outputs
	return t
}
