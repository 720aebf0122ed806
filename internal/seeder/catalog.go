package seeder

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Product is one catalog entry before chunking.
type Product struct {
	ID               string   `yaml:"id" json:"id"`
	Name             string   `yaml:"name" json:"name"`
	Description      string   `yaml:"description" json:"description,omitempty"`
	Benefits         []string `yaml:"benefits" json:"benefits"`
	PainPointsSolved []string `yaml:"pain_points_solved" json:"pain_points_solved"`
	Pricing          string   `yaml:"pricing" json:"pricing"`
	TargetAudience   []string `yaml:"target_audience" json:"target_audience"`
	URL              string   `yaml:"url" json:"url,omitempty"`
}

// Catalog is the YAML file layout.
type Catalog struct {
	Products []Product `yaml:"products"`
}

// LoadCatalog reads and validates a YAML product catalog.
func LoadCatalog(path string) ([]Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	seen := make(map[string]bool, len(catalog.Products))
	for i, p := range catalog.Products {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("catalog product %d has no name", i)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("catalog product %q has no id", p.Name)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate catalog product id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return catalog.Products, nil
}

// Text renders the product as the plain text that gets embedded and later
// handed to the model as search context.
func (p Product) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product ID: %s\nName: %s\n", p.ID, p.Name)
	if p.Pricing != "" {
		fmt.Fprintf(&b, "Pricing: %s\n", p.Pricing)
	}
	writeList(&b, "Benefits", p.Benefits)
	writeList(&b, "Pain points solved", p.PainPointsSolved)
	writeList(&b, "Target audience", p.TargetAudience)
	if p.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", p.URL)
	}
	if p.Description != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(p.Description))
	}
	return strings.TrimSpace(b.String())
}

// Header is repeated at the top of every chunk after the first so each chunk
// names its product.
func (p Product) Header() string {
	return fmt.Sprintf("Product ID: %s\nName: %s", p.ID, p.Name)
}

// JSON is stored in json_content next to each chunk.
func (p Product) JSON() string {
	out := p
	for _, list := range []*[]string{&out.Benefits, &out.PainPointsSolved, &out.TargetAudience} {
		if *list == nil {
			*list = []string{}
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, "; "))
}
