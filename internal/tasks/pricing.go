package tasks

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	DefaultCostPerEpoch = 1.0

	lowCostModelId   int64 = 1
	lowCostModelName       = "gemma-3-270m"
	lowCostPerEpoch        = 1.0
)

type NamePrice struct {
	Contains     string  `yaml:"contains"`
	CostPerEpoch float64 `yaml:"cost_per_epoch"`
}

// Pricing maps a base model to its cost per training epoch in dollars.
// Id overrides win over name overrides; everything else uses the default.
type Pricing struct {
	DefaultCostPerEpoch float64           `yaml:"default_cost_per_epoch"`
	ModelOverrides      map[int64]float64 `yaml:"model_overrides"`
	NameOverrides       []NamePrice       `yaml:"name_overrides"`
}

func DefaultPricing() Pricing {
	return Pricing{
		DefaultCostPerEpoch: DefaultCostPerEpoch,
		ModelOverrides:      map[int64]float64{lowCostModelId: lowCostPerEpoch},
		NameOverrides:       []NamePrice{{Contains: lowCostModelName, CostPerEpoch: lowCostPerEpoch}},
	}
}

func ParsePricing(data []byte) (Pricing, error) {
	pricing := DefaultPricing()
	if err := yaml.UnmarshalStrict(data, &pricing); err != nil {
		return Pricing{}, fmt.Errorf("error parsing pricing: %w", err)
	}

	if pricing.DefaultCostPerEpoch < 0 {
		return Pricing{}, fmt.Errorf("default_cost_per_epoch must be non-negative, got %v", pricing.DefaultCostPerEpoch)
	}
	for id, cost := range pricing.ModelOverrides {
		if cost < 0 {
			return Pricing{}, fmt.Errorf("cost for model %d must be non-negative, got %v", id, cost)
		}
	}
	for _, np := range pricing.NameOverrides {
		if np.Contains == "" || np.CostPerEpoch < 0 {
			return Pricing{}, fmt.Errorf("invalid name override %+v", np)
		}
	}

	return pricing, nil
}

// LoadPricing reads a YAML pricing file. An empty path yields DefaultPricing.
func LoadPricing(path string) (Pricing, error) {
	if path == "" {
		return DefaultPricing(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Pricing{}, fmt.Errorf("error reading pricing file %s: %w", path, err)
	}

	return ParsePricing(data)
}

func (p Pricing) CostPerEpoch(baseModelId int64, baseModelName string) float64 {
	if cost, ok := p.ModelOverrides[baseModelId]; ok {
		return cost
	}

	name := strings.ToLower(baseModelName)
	for _, np := range p.NameOverrides {
		if name != "" && strings.Contains(name, strings.ToLower(np.Contains)) {
			return np.CostPerEpoch
		}
	}

	return p.DefaultCostPerEpoch
}
