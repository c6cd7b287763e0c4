// Package catalog seeds the planner from a YAML file: tags, templates with
// their options, and optionally a set of planned entries.
package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/valerioformato/nutrition-helper/internal/storage"
)

// Catalog is the YAML document.
//
//	tags:
//	  - name: pasta
//	    display_name: Pasta
//	    category: ingredient
//	    weekly_suggestion: 3
//	templates:
//	  - name: Pasta dish
//	    compatible_slots: [lunch, dinner]
//	    location_type: home
//	    weekly_limit: 3
//	    options:
//	      - name: Carbonara
//	        tags: [pasta]
//	entries:
//	  - option: Carbonara
//	    date: "2024-11-04"
//	    slot: lunch
//	    location: home
type Catalog struct {
	Tags      []Tag      `yaml:"tags"`
	Templates []Template `yaml:"templates"`
	Entries   []Entry    `yaml:"entries"`
}

type Tag struct {
	Name             string              `yaml:"name"`
	DisplayName      string              `yaml:"display_name"`
	Category         storage.TagCategory `yaml:"category"`
	WeeklySuggestion *int                `yaml:"weekly_suggestion"`
	Parent           string              `yaml:"parent"` // parent tag name
}

type Template struct {
	Name            string               `yaml:"name"`
	Description     *string              `yaml:"description"`
	CompatibleSlots []storage.SlotType   `yaml:"compatible_slots"`
	LocationType    storage.LocationType `yaml:"location_type"`
	WeeklyLimit     *int                 `yaml:"weekly_limit"`
	Options         []Option             `yaml:"options"`
}

type Option struct {
	Name             string   `yaml:"name"`
	Description      *string  `yaml:"description"`
	NutritionalNotes *string  `yaml:"nutritional_notes"`
	Tags             []string `yaml:"tags"`
}

type Entry struct {
	Option    string               `yaml:"option"`
	Template  string               `yaml:"template"` // disambiguates equal option names
	Date      string               `yaml:"date"`
	Slot      storage.SlotType     `yaml:"slot"`
	Location  storage.LocationType `yaml:"location"`
	Servings  *float64             `yaml:"servings"`
	Notes     *string              `yaml:"notes"`
	Completed bool                 `yaml:"completed"`
}

// Load decodes a catalog. Unknown keys are rejected so typos surface early.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if err == io.EOF {
			return &c, nil
		}
		return nil, storage.Invalid("catalog", "%v", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile opens and decodes the catalog at path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// validate checks the references inside the document. Field rules are left
// to the services that import it.
func (c *Catalog) validate() error {
	tags := map[string]bool{}
	for _, t := range c.Tags {
		if tags[t.Name] {
			return storage.Invalid("tags", "duplicate tag %q", t.Name)
		}
		tags[t.Name] = true
	}
	for _, t := range c.Tags {
		if t.Parent != "" && !tags[t.Parent] {
			return storage.Invalid("tags", "tag %q has unknown parent %q", t.Name, t.Parent)
		}
	}

	templates := map[string]bool{}
	for _, tmpl := range c.Templates {
		if templates[tmpl.Name] {
			return storage.Invalid("templates", "duplicate template %q", tmpl.Name)
		}
		templates[tmpl.Name] = true

		options := map[string]bool{}
		for _, o := range tmpl.Options {
			if options[o.Name] {
				return storage.Invalid("options", "duplicate option %q in template %q", o.Name, tmpl.Name)
			}
			options[o.Name] = true
			for _, name := range o.Tags {
				if !tags[name] {
					return storage.Invalid("options", "option %q references unknown tag %q", o.Name, name)
				}
			}
		}
	}

	for i, e := range c.Entries {
		if e.Option == "" {
			return storage.Invalid("entries", "entry %d has no option", i)
		}
		if e.Template != "" && !templates[e.Template] {
			return storage.Invalid("entries", "entry %d references unknown template %q", i, e.Template)
		}
	}
	return nil
}

func (c *Catalog) String() string {
	options := 0
	for _, t := range c.Templates {
		options += len(t.Options)
	}
	return fmt.Sprintf("catalog(tags=%d templates=%d options=%d entries=%d)", len(c.Tags), len(c.Templates), options, len(c.Entries))
}
