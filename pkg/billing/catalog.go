package billing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog maps plan names to provider price ids. It is server-side
// configuration loaded at startup; price ids are never accepted from clients.
type Catalog struct {
	plans map[string]CatalogPlan
}

// CatalogPlan describes one purchasable plan.
type CatalogPlan struct {
	Name    string `yaml:"name"`
	PriceID string `yaml:"price_id"`
}

type catalogFile struct {
	Plans map[string]CatalogPlan `yaml:"plans"`
}

// LoadCatalog reads a YAML plan catalog:
//
//	plans:
//	  pro:
//	    name: Pro
//	    price_id: price_123
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog parses a YAML plan catalog from raw bytes.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog is empty")
	}
	for id, plan := range f.Plans {
		if plan.PriceID == "" {
			return nil, fmt.Errorf("plan %q has no price_id", id)
		}
	}
	return &Catalog{plans: f.Plans}, nil
}

// PriceID resolves a plan name to its provider price id.
func (c *Catalog) PriceID(plan string) (string, error) {
	p, ok := c.plans[plan]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPlan, plan)
	}
	return p.PriceID, nil
}

// Has reports whether the catalog contains the plan.
func (c *Catalog) Has(plan string) bool {
	_, ok := c.plans[plan]
	return ok
}
