package practices

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed practices.yaml
var embedded []byte

// Practice is the cultivation guidance for one crop.
type Practice struct {
	Label             string   `yaml:"label" json:"label"`
	SeedSpacing       string   `yaml:"seed_spacing" json:"seed_spacing"`
	WaterRequirements string   `yaml:"water_requirements" json:"water_requirements"`
	SoilQuality       string   `yaml:"soil_quality" json:"soil_quality"`
	PlotShape         string   `yaml:"plot_shape" json:"plot_shape"`
	Tips              []string `yaml:"tips" json:"tips"`
}

// Text renders the guidance as a markdown list.
func (p Practice) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "- **Seed Spacing**: %s\n", p.SeedSpacing)
	fmt.Fprintf(&b, "- **Water Requirements**: %s\n", p.WaterRequirements)
	fmt.Fprintf(&b, "- **Soil Quality**: %s\n", p.SoilQuality)
	fmt.Fprintf(&b, "- **Plot Shape**: %s\n", p.PlotShape)
	if len(p.Tips) > 0 {
		b.WriteString("- **Additional Tips**:\n")
		for _, tip := range p.Tips {
			fmt.Fprintf(&b, "    - %s\n", tip)
		}
	}
	return b.String()
}

// UnknownLabelError is returned for a label with no guidance.
type UnknownLabelError struct {
	Label string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("no farming practices for %q", e.Label)
}

// Result is the lookup outcome as presented to a user.
type Result struct {
	Label     string    `json:"label"`
	Available bool      `json:"available"`
	Practice  *Practice `json:"practice,omitempty"`
	Text      string    `json:"text,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Catalog is a read-only label to guidance mapping.
type Catalog struct {
	byLabel map[string]Practice
	order   []string
}

// Embedded returns the catalog compiled into the binary.
func Embedded() (*Catalog, error) {
	return Parse(embedded)
}

// LoadFile reads a catalog from a YAML file. An empty path yields the
// embedded catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Embedded()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read practices: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var entries []Practice
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse practices: %w", err)
	}
	c := &Catalog{byLabel: make(map[string]Practice, len(entries))}
	for i, p := range entries {
		p.Label = strings.TrimSpace(p.Label)
		if p.Label == "" {
			return nil, fmt.Errorf("parse practices: entry %d has no label", i)
		}
		if _, dup := c.byLabel[p.Label]; dup {
			return nil, fmt.Errorf("parse practices: duplicate label %q", p.Label)
		}
		c.byLabel[p.Label] = p
		c.order = append(c.order, p.Label)
	}
	return c, nil
}

// Lookup returns the guidance for label or an *UnknownLabelError.
func (c *Catalog) Lookup(label string) (Practice, error) {
	p, ok := c.byLabel[label]
	if !ok {
		return Practice{}, &UnknownLabelError{Label: label}
	}
	return p, nil
}

// Describe never fails; unknown labels produce a not-available result.
func (c *Catalog) Describe(label string) Result {
	p, err := c.Lookup(label)
	var unknown *UnknownLabelError
	if errors.As(err, &unknown) {
		return Result{
			Label:   label,
			Message: fmt.Sprintf("The farming practices for %s are not available. Please select a valid crop.", label),
		}
	}
	return Result{Label: label, Available: true, Practice: &p, Text: p.Text()}
}

func (c *Catalog) Has(label string) bool {
	_, ok := c.byLabel[label]
	return ok
}

// Labels returns the labels with guidance in file order.
func (c *Catalog) Labels() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Coverage pairs each dataset label with whether guidance exists for it.
type Coverage struct {
	Label     string `json:"label"`
	Available bool   `json:"available"`
}

// Cover reports availability for labels, keeping their order.
func (c *Catalog) Cover(labels []string) []Coverage {
	out := make([]Coverage, len(labels))
	for i, l := range labels {
		out[i] = Coverage{Label: l, Available: c.Has(l)}
	}
	return out
}
