// Package catalog holds the static pools that lesson and grammar prompts draw from.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultDocument []byte

// Template is a named chat message body that can be posted as is.
type Template struct {
	Label   string `yaml:"label"`
	Content string `yaml:"content"`
}

type document struct {
	Topics     []string   `yaml:"topics"`
	Structures []string   `yaml:"structures"`
	Tenses     []string   `yaml:"tenses"`
	Templates  []Template `yaml:"templates"`
}

// Catalog is read-only once loaded and safe for concurrent use.
type Catalog struct {
	topics     []string
	structures []string
	tenses     []string
	templates  []Template
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultDocument)
}

// Load reads a catalog from path. An empty path yields the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML catalog document. Blank entries are dropped.
// Structures and tenses must not be empty; an empty topic pool is allowed.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{
		topics:     clean(doc.Topics),
		structures: clean(doc.Structures),
		tenses:     clean(doc.Tenses),
	}
	for _, t := range doc.Templates {
		if strings.TrimSpace(t.Label) == "" || strings.TrimSpace(t.Content) == "" {
			continue
		}
		c.templates = append(c.templates, Template{Label: strings.TrimSpace(t.Label), Content: t.Content})
	}

	if len(c.structures) == 0 {
		return nil, errors.New("catalog has no sentence structures")
	}
	if len(c.tenses) == 0 {
		return nil, errors.New("catalog has no tenses")
	}

	slog.Debug("catalog loaded",
		"topics", len(c.topics),
		"structures", len(c.structures),
		"tenses", len(c.tenses),
		"templates", len(c.templates),
	)
	return c, nil
}

// Topics returns a copy of the topic pool.
func (c *Catalog) Topics() []string { return append([]string(nil), c.topics...) }

// Structures returns a copy of the sentence structure pool.
func (c *Catalog) Structures() []string { return append([]string(nil), c.structures...) }

// Tenses returns a copy of the tense pool.
func (c *Catalog) Tenses() []string { return append([]string(nil), c.tenses...) }

// Templates returns the notification templates in file order.
func (c *Catalog) Templates() []Template { return append([]Template(nil), c.templates...) }

// Template looks a notification template up by label, ignoring case.
func (c *Catalog) Template(label string) (Template, bool) {
	for _, t := range c.templates {
		if strings.EqualFold(t.Label, strings.TrimSpace(label)) {
			return t, true
		}
	}
	return Template{}, false
}

func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
