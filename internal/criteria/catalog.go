// Package criteria loads the acceptance criteria catalog: the
// configuration that names each criterion, binds it to an evaluation
// rule, and lists the data points the extraction collaborator should
// look for. The catalog ships embedded so a deployment cannot start
// with a missing or divergent criteria file.
package criteria

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/donor-eligibility-engine/internal/domain"
)

//go:embed criteria.json
var catalogJSON []byte

// Catalog is the read-only set of configured acceptance criteria.
type Catalog struct {
	byName map[string]domain.CriterionConfig
	names  []string
}

// Load parses and validates the embedded catalog.
func Load() (*Catalog, error) {
	var raw map[string]struct {
		DisplayName        string   `json:"display_name"`
		EvaluationLogic    string   `json:"evaluation_logic"`
		RequiredDataPoints []string `json:"required_data_points"`
		TissueSpecific     bool     `json:"tissue_specific"`
	}
	if err := json.Unmarshal(catalogJSON, &raw); err != nil {
		return nil, fmt.Errorf("parsing criteria catalog: %w", err)
	}

	c := &Catalog{byName: make(map[string]domain.CriterionConfig, len(raw))}
	for name, entry := range raw {
		cfg := domain.CriterionConfig{
			Name:           name,
			DisplayName:    entry.DisplayName,
			RuleID:         entry.EvaluationLogic,
			DataPoints:     entry.RequiredDataPoints,
			TissueSpecific: entry.TissueSpecific,
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("criterion %q: %w", name, err)
		}
		c.byName[name] = cfg
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Get returns the configuration for a criterion name.
func (c *Catalog) Get(name string) (domain.CriterionConfig, bool) {
	cfg, ok := c.byName[name]
	return cfg, ok
}

// Names returns all configured criterion names, sorted.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of configured criteria.
func (c *Catalog) Len() int {
	return len(c.byName)
}

// TissueTypesFor returns the tissue rows a criterion contributes to: a
// tissue-specific criterion is evaluated once per concrete tissue type,
// anything else once with the BOTH tag.
func (c *Catalog) TissueTypesFor(name string) []domain.TissueType {
	cfg, ok := c.byName[name]
	if !ok || !cfg.TissueSpecific {
		return []domain.TissueType{domain.BOTH}
	}
	return []domain.TissueType{domain.MUSCULOSKELETAL, domain.SKIN}
}
